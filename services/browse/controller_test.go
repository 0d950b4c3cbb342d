package browse_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cartelera/models"
	"cartelera/services/browse"
)

type fakeCatalog struct {
	mu sync.Mutex

	popular    []models.Title
	popularErr error
	genre      map[int64][]models.Title
	genreErr   error
	entries    []models.SearchEntry
	searchErr  error
	clips      []models.VideoClip
	clipsErr   error

	popularCalls int
	searchCalls  int
	genreCalls   int
}

func (f *fakeCatalog) PopularMovies(context.Context) ([]models.Title, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.popularCalls++
	return f.popular, f.popularErr
}

func (f *fakeCatalog) MoviesByGenre(_ context.Context, genreID int64) ([]models.Title, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.genreCalls++
	if f.genreErr != nil {
		return nil, f.genreErr
	}
	return f.genre[genreID], nil
}

func (f *fakeCatalog) SearchMulti(context.Context, string) ([]models.SearchEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	return f.entries, f.searchErr
}

func (f *fakeCatalog) MovieVideos(context.Context, int64) ([]models.VideoClip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clips, f.clipsErr
}

// qrData is a canned QR payload whose data URL is the target it encodes.
type qrData string

func (d qrData) DataURL() string { return string(d) }

type fakeQR struct {
	mu      sync.Mutex
	err     error
	gates   map[string]chan struct{} // target -> gate blocking the response
	started chan string
}

func (f *fakeQR) Generate(_ context.Context, target string) (browse.QRPayload, error) {
	if f.started != nil {
		f.started <- target
	}
	f.mu.Lock()
	gate := f.gates[target]
	err := f.err
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return qrData(target), nil
}

const detailTemplate = "https://example.org/title/%d"

func title(id int64, name string) models.Title {
	return models.Title{ID: id, Name: name, MediaType: models.MediaTypeMovie}
}

func newController(catalog *fakeCatalog, qr *fakeQR) *browse.Controller {
	return browse.NewController(catalog, qr, detailTemplate)
}

func TestSelectCategoryLoadsGenreFeed(t *testing.T) {
	catalog := &fakeCatalog{
		genre: map[int64][]models.Title{28: {title(1, "Heat")}},
	}
	c := newController(catalog, &fakeQR{})

	if err := c.SelectCategory(context.Background(), "28"); err != nil {
		t.Fatalf("select category returned error: %v", err)
	}

	state := c.State()
	if state.ActiveCategory != "28" {
		t.Fatalf("expected active category 28, got %q", state.ActiveCategory)
	}
	if len(state.Titles) != 1 || state.Titles[0].Name != "Heat" {
		t.Fatalf("unexpected titles: %+v", state.Titles)
	}
	if state.Searching {
		t.Fatal("expected search mode off")
	}
}

func TestSelectCategoryErrorKeepsPriorState(t *testing.T) {
	catalog := &fakeCatalog{
		popular: []models.Title{title(1, "Heat")},
		genre:   map[int64][]models.Title{},
	}
	c := newController(catalog, &fakeQR{})
	if err := c.SelectCategory(context.Background(), models.CategoryFeed); err != nil {
		t.Fatalf("select feed returned error: %v", err)
	}

	catalog.mu.Lock()
	catalog.genreErr = errors.New("upstream down")
	catalog.mu.Unlock()

	if err := c.SelectCategory(context.Background(), "28"); err != nil {
		t.Fatalf("expected silent failure, got %v", err)
	}

	state := c.State()
	if state.ActiveCategory != models.CategoryFeed {
		t.Fatalf("expected category unchanged, got %q", state.ActiveCategory)
	}
	if len(state.Titles) != 1 || state.Titles[0].Name != "Heat" {
		t.Fatalf("expected prior titles preserved, got %+v", state.Titles)
	}
}

func TestSelectGenreCategoryIsNoopInSearchMode(t *testing.T) {
	movie := models.SearchEntry{Title: title(7, "Found")}
	catalog := &fakeCatalog{
		entries: []models.SearchEntry{movie},
		genre:   map[int64][]models.Title{28: {title(1, "Heat")}},
	}
	c := newController(catalog, &fakeQR{})

	if err := c.UpdateSearch(context.Background(), "found"); err != nil {
		t.Fatalf("search returned error: %v", err)
	}
	if err := c.SelectCategory(context.Background(), "28"); err != nil {
		t.Fatalf("select category returned error: %v", err)
	}

	state := c.State()
	if !state.Searching {
		t.Fatal("expected to stay in search mode")
	}
	if len(state.Titles) != 1 || state.Titles[0].ID != 7 {
		t.Fatalf("expected search results preserved, got %+v", state.Titles)
	}
	if got := catalog.genreCalls; got != 0 {
		t.Fatalf("expected no genre request, got %d", got)
	}
}

func TestSelectFeedCategoryClearsSearchMode(t *testing.T) {
	catalog := &fakeCatalog{
		popular: []models.Title{title(1, "Heat")},
		entries: []models.SearchEntry{{Title: title(7, "Found")}},
	}
	c := newController(catalog, &fakeQR{})

	if err := c.UpdateSearch(context.Background(), "found"); err != nil {
		t.Fatalf("search returned error: %v", err)
	}
	if err := c.SelectCategory(context.Background(), models.CategoryFeed); err != nil {
		t.Fatalf("select feed returned error: %v", err)
	}

	state := c.State()
	if state.Searching {
		t.Fatal("expected search mode cleared")
	}
	if state.SearchQuery != "" {
		t.Fatalf("expected query cleared, got %q", state.SearchQuery)
	}
	if len(state.Titles) != 1 || state.Titles[0].Name != "Heat" {
		t.Fatalf("expected default feed, got %+v", state.Titles)
	}
}

func TestSearchDeadZoneKeepsListUnchanged(t *testing.T) {
	catalog := &fakeCatalog{
		popular: []models.Title{title(1, "Heat")},
		entries: []models.SearchEntry{{Title: title(7, "Found")}},
	}
	c := newController(catalog, &fakeQR{})
	if err := c.SelectCategory(context.Background(), models.CategoryFeed); err != nil {
		t.Fatalf("select feed returned error: %v", err)
	}

	for _, q := range []string{"a", "ab"} {
		if err := c.UpdateSearch(context.Background(), q); err != nil {
			t.Fatalf("search %q returned error: %v", q, err)
		}
		state := c.State()
		if state.SearchQuery != q {
			t.Fatalf("expected stored query %q, got %q", q, state.SearchQuery)
		}
		if state.Searching {
			t.Fatalf("query %q must not enter search mode", q)
		}
		if len(state.Titles) != 1 || state.Titles[0].Name != "Heat" {
			t.Fatalf("query %q changed the list: %+v", q, state.Titles)
		}
	}

	if catalog.searchCalls != 0 {
		t.Fatalf("expected no search requests, got %d", catalog.searchCalls)
	}
}

func TestSearchEmptyQueryResetsToFeed(t *testing.T) {
	catalog := &fakeCatalog{
		popular: []models.Title{title(1, "Heat")},
		entries: []models.SearchEntry{{Title: title(7, "Found")}},
	}
	c := newController(catalog, &fakeQR{})

	if err := c.UpdateSearch(context.Background(), "found"); err != nil {
		t.Fatalf("search returned error: %v", err)
	}
	if err := c.UpdateSearch(context.Background(), ""); err != nil {
		t.Fatalf("empty search returned error: %v", err)
	}

	state := c.State()
	if state.Searching {
		t.Fatal("expected search mode off after reset")
	}
	if state.ActiveCategory != models.CategoryFeed {
		t.Fatalf("expected feed category, got %q", state.ActiveCategory)
	}
	if len(state.Titles) != 1 || state.Titles[0].Name != "Heat" {
		t.Fatalf("expected default feed titles, got %+v", state.Titles)
	}
}

func TestSearchReducesPersonEntriesAndDedupes(t *testing.T) {
	entries := []models.SearchEntry{
		{Title: models.Title{ID: 1, Name: "Direct Hit", MediaType: models.MediaTypeMovie}},
		{
			Title: models.Title{ID: 50, Name: "Some Actor", MediaType: models.MediaTypePerson},
			KnownFor: []models.Title{
				{ID: 2, Name: "Known Movie", MediaType: models.MediaTypeMovie},
				{ID: 3, Name: "Known Show", MediaType: models.MediaTypeTV},
				{ID: 1, Name: "Direct Hit Duplicate", MediaType: models.MediaTypeMovie},
			},
		},
		{Title: models.Title{ID: 60, Name: "Some Show", MediaType: models.MediaTypeTV}},
	}

	got := browse.ReduceSearchEntries(entries)
	if len(got) != 2 {
		t.Fatalf("expected 2 titles, got %d: %+v", len(got), got)
	}
	if got[0].ID != 1 || got[0].Name != "Direct Hit" {
		t.Fatalf("expected first occurrence of id 1 to win, got %+v", got[0])
	}
	if got[1].ID != 2 {
		t.Fatalf("expected person-derived movie second, got %+v", got[1])
	}

	// Reduction is idempotent on its dedup key.
	again := browse.ReduceSearchEntries(entries)
	if len(again) != len(got) {
		t.Fatalf("expected stable result, got %d then %d", len(got), len(again))
	}
	for i := range got {
		if got[i].ID != again[i].ID {
			t.Fatalf("order changed between runs at %d: %d vs %d", i, got[i].ID, again[i].ID)
		}
	}
}

func TestSearchWithNoMoviesFallsBackToFeed(t *testing.T) {
	catalog := &fakeCatalog{
		popular: []models.Title{title(1, "Heat"), title(2, "Ran")},
		entries: []models.SearchEntry{
			{Title: models.Title{ID: 60, Name: "Some Show", MediaType: models.MediaTypeTV}},
		},
	}
	c := newController(catalog, &fakeQR{})

	if err := c.UpdateSearch(context.Background(), "nothing here"); err != nil {
		t.Fatalf("search returned error: %v", err)
	}

	state := c.State()
	if !state.Searching {
		t.Fatal("expected to stay in search mode for the no-results hint")
	}
	if len(state.Titles) != 2 {
		t.Fatalf("expected fallback feed, got %+v", state.Titles)
	}
}

func TestSearchErrorKeepsPriorList(t *testing.T) {
	catalog := &fakeCatalog{
		popular:   []models.Title{title(1, "Heat")},
		searchErr: errors.New("upstream down"),
	}
	c := newController(catalog, &fakeQR{})
	if err := c.SelectCategory(context.Background(), models.CategoryFeed); err != nil {
		t.Fatalf("select feed returned error: %v", err)
	}

	if err := c.UpdateSearch(context.Background(), "anything"); err != nil {
		t.Fatalf("expected silent failure, got %v", err)
	}

	state := c.State()
	if len(state.Titles) != 1 || state.Titles[0].Name != "Heat" {
		t.Fatalf("expected prior list preserved, got %+v", state.Titles)
	}
}

func TestPickTrailer(t *testing.T) {
	spanish := models.VideoClip{Key: "es-key", Site: "YouTube", Type: "Trailer", Language: "es"}
	regional := models.VideoClip{Key: "mx-key", Site: "YouTube", Type: "Trailer", Language: "es-MX"}
	english := models.VideoClip{Key: "en-key", Site: "YouTube", Type: "Trailer", Language: "en"}
	teaser := models.VideoClip{Key: "teaser-key", Site: "YouTube", Type: "Teaser", Language: "ja"}
	vimeo := models.VideoClip{Key: "vimeo-key", Site: "Vimeo", Type: "Trailer", Language: "es"}

	cases := []struct {
		name  string
		clips []models.VideoClip
		want  string
	}{
		{"spanish preferred over english", []models.VideoClip{english, spanish}, "es-key"},
		{"regional spanish matches", []models.VideoClip{english, regional}, "mx-key"},
		{"english fallback", []models.VideoClip{teaser, english}, "en-key"},
		{"first clip fallback", []models.VideoClip{vimeo, teaser}, "vimeo-key"},
		{"no clips", nil, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := browse.PickTrailer(tc.clips); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestSelectTitleOpensOverlayBeforeFills(t *testing.T) {
	catalog := &fakeCatalog{clipsErr: errors.New("videos down")}
	qr := &fakeQR{err: errors.New("qr down")}
	c := newController(catalog, qr)

	selected := title(9, "Stalker")
	c.SelectTitle(selected)

	state := c.State()
	if state.Overlay == nil {
		t.Fatal("expected overlay open immediately")
	}
	if state.Overlay.Title.ID != 9 {
		t.Fatalf("expected selected title, got %+v", state.Overlay.Title)
	}

	c.Close()

	state = c.State()
	if state.Overlay == nil {
		t.Fatal("failed fills must not close the overlay")
	}
	if state.Overlay.QR != "" || state.Overlay.TrailerKey != "" {
		t.Fatalf("expected empty fills after failures, got %+v", state.Overlay)
	}
}

func TestOverlayFillsPopulate(t *testing.T) {
	catalog := &fakeCatalog{
		clips: []models.VideoClip{{Key: "es-key", Site: "YouTube", Type: "Trailer", Language: "es"}},
	}
	c := newController(catalog, &fakeQR{})

	c.SelectTitle(title(9, "Stalker"))
	c.Close()

	state := c.State()
	if state.Overlay == nil {
		t.Fatal("expected overlay open")
	}
	if state.Overlay.QR != "https://example.org/title/9" {
		t.Fatalf("unexpected qr payload: %q", state.Overlay.QR)
	}
	if state.Overlay.TrailerKey != "es-key" {
		t.Fatalf("unexpected trailer key: %q", state.Overlay.TrailerKey)
	}
}

func TestCloseOverlayDiscardsPendingFill(t *testing.T) {
	gate := make(chan struct{})
	qr := &fakeQR{
		gates:   map[string]chan struct{}{"https://example.org/title/9": gate},
		started: make(chan string, 1),
	}
	c := newController(&fakeCatalog{}, qr)

	c.SelectTitle(title(9, "Stalker"))
	<-qr.started
	c.CloseOverlay()
	close(gate)
	c.Close()

	if state := c.State(); state.Overlay != nil {
		t.Fatalf("stale fill reopened the overlay: %+v", state.Overlay)
	}
}

func TestReopenForDifferentTitleDiscardsStaleFill(t *testing.T) {
	gate := make(chan struct{})
	qr := &fakeQR{
		gates:   map[string]chan struct{}{"https://example.org/title/9": gate},
		started: make(chan string, 4),
	}
	c := newController(&fakeCatalog{}, qr)

	c.SelectTitle(title(9, "Stalker"))
	<-qr.started

	c.SelectTitle(title(10, "Solaris"))

	// Wait for the second title's QR fill to land.
	deadline := time.Now().Add(2 * time.Second)
	for {
		state := c.State()
		if state.Overlay != nil && state.Overlay.QR != "" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for second overlay fill")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Release the first title's delayed response; it must be discarded.
	close(gate)
	c.Close()

	state := c.State()
	if state.Overlay == nil || state.Overlay.Title.ID != 10 {
		t.Fatalf("expected overlay for title 10, got %+v", state.Overlay)
	}
	if state.Overlay.QR != "https://example.org/title/10" {
		t.Fatalf("stale response overwrote the overlay: %q", state.Overlay.QR)
	}
}
