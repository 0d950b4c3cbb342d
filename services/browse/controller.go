package browse

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"golang.org/x/text/language"

	"cartelera/models"
)

// minSearchLength is the shortest query that triggers an upstream search.
// Queries of length 1-2 are stored but issue no request, so rapid typing
// does not fan out into requests for every keystroke.
const minSearchLength = 3

const fillTimeout = 15 * time.Second

// CatalogClient is the upstream catalog boundary the controller drives.
type CatalogClient interface {
	PopularMovies(ctx context.Context) ([]models.Title, error)
	MoviesByGenre(ctx context.Context, genreID int64) ([]models.Title, error)
	SearchMulti(ctx context.Context, query string) ([]models.SearchEntry, error)
	MovieVideos(ctx context.Context, titleID int64) ([]models.VideoClip, error)
}

// QRGenerator produces a displayable QR payload for a target URL.
type QRGenerator interface {
	Generate(ctx context.Context, target string) (QRPayload, error)
}

// QRPayload is the minimal surface the controller needs from a QR result.
type QRPayload interface {
	DataURL() string
}

// Controller owns the view state of one browse session and translates user
// actions into upstream requests and deterministic state transitions.
// Upstream failures never surface: the prior visible state is kept.
type Controller struct {
	catalog   CatalogClient
	qr        QRGenerator
	detailURL string // fmt template, %d = title id

	mu    sync.Mutex
	state models.ViewState

	// fillToken identifies the current overlay-open event. Asynchronous QR
	// and trailer fills carry the token they were started with and are
	// discarded when it no longer matches.
	fillToken string

	fills conc.WaitGroup
}

// NewController creates a controller showing the default feed once loaded.
func NewController(catalog CatalogClient, qr QRGenerator, detailURL string) *Controller {
	return &Controller{
		catalog:   catalog,
		qr:        qr,
		detailURL: detailURL,
		state: models.ViewState{
			Titles:         []models.Title{},
			ActiveCategory: models.CategoryFeed,
		},
	}
}

// State returns a snapshot of the current view state.
func (c *Controller) State() models.ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return snapshot(c.state)
}

// SelectCategory replaces the title list with the category's feed and marks
// the category active. Selecting the sentinel clears search mode; any other
// category is a no-op while a search is active. Upstream errors leave the
// prior state untouched.
func (c *Controller) SelectCategory(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectCategoryLocked(ctx, id)
}

func (c *Controller) selectCategoryLocked(ctx context.Context, id string) error {
	if c.state.Searching && id != models.CategoryFeed {
		return nil
	}

	titles, err := c.fetchCategory(ctx, id)
	if err != nil {
		log.Printf("[browse] category %s load failed: %v", id, err)
		return nil
	}

	c.state.Titles = titles
	c.state.ActiveCategory = id
	c.state.Searching = false
	c.state.SearchQuery = ""
	return nil
}

func (c *Controller) fetchCategory(ctx context.Context, id string) ([]models.Title, error) {
	if id == models.CategoryFeed {
		return c.catalog.PopularMovies(ctx)
	}
	genreID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("unknown category %q", id)
	}
	return c.catalog.MoviesByGenre(ctx, genreID)
}

// UpdateSearch stores the query text and, when it is long enough, enters
// search mode and replaces the list with the reduced multi-search result.
// An emptied query exits search mode and restores the default feed. Queries
// of length 1-2 change nothing but the stored text.
func (c *Controller) UpdateSearch(ctx context.Context, query string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.SearchQuery = query

	switch n := utf8.RuneCountInString(query); {
	case n == 0:
		c.state.Searching = false
		return c.selectCategoryLocked(ctx, models.CategoryFeed)
	case n < minSearchLength:
		return nil
	}

	c.state.Searching = true

	entries, err := c.catalog.SearchMulti(ctx, query)
	if err != nil {
		log.Printf("[browse] search %q failed: %v", query, err)
		return nil
	}

	titles := ReduceSearchEntries(entries)
	if len(titles) == 0 {
		// Never leave the grid empty: fall back to the default feed while
		// staying in search mode so the caller can show a "no results" hint.
		fallback, err := c.catalog.PopularMovies(ctx)
		if err != nil {
			log.Printf("[browse] search fallback failed: %v", err)
			return nil
		}
		c.state.Titles = fallback
		return nil
	}

	c.state.Titles = titles
	return nil
}

// SelectTitle opens the detail overlay for the title. The overlay is visible
// immediately with empty QR and trailer fields; both are filled by
// independent background fetches that are discarded if the overlay has been
// closed or reopened for another title in the meantime. The fetches outlive
// the caller's request, so they run on their own deadline-bound contexts.
func (c *Controller) SelectTitle(title models.Title) {
	c.mu.Lock()
	c.state.Overlay = &models.OverlayState{Title: title}
	token := uuid.NewString()
	c.fillToken = token
	c.mu.Unlock()

	c.fills.Go(func() { c.fillQR(token, title) })
	c.fills.Go(func() { c.fillTrailer(token, title) })
}

// CloseOverlay clears the overlay and invalidates pending fills.
func (c *Controller) CloseOverlay() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Overlay = nil
	c.fillToken = ""
}

// Close waits for in-flight overlay fills to finish.
func (c *Controller) Close() {
	c.fills.Wait()
}

func (c *Controller) fillQR(token string, title models.Title) {
	ctx, cancel := context.WithTimeout(context.Background(), fillTimeout)
	defer cancel()

	payload, err := c.qr.Generate(ctx, fmt.Sprintf(c.detailURL, title.ID))
	if err != nil {
		log.Printf("[browse] qr fill for %d failed: %v", title.ID, err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fillToken != token || c.state.Overlay == nil {
		return // stale: overlay closed or reopened since this fetch started
	}
	c.state.Overlay.QR = payload.DataURL()
}

func (c *Controller) fillTrailer(token string, title models.Title) {
	ctx, cancel := context.WithTimeout(context.Background(), fillTimeout)
	defer cancel()

	clips, err := c.catalog.MovieVideos(ctx, title.ID)
	if err != nil {
		log.Printf("[browse] trailer fill for %d failed: %v", title.ID, err)
		return
	}

	key := PickTrailer(clips)
	if key == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fillToken != token || c.state.Overlay == nil {
		return
	}
	c.state.Overlay.TrailerKey = key
}

// ReduceSearchEntries flattens a mixed multi-search response to a movie
// list: movie entries are kept directly, person entries contribute their
// known-for movies. The result is deduplicated by id, first occurrence
// wins, direct movies ahead of person-derived ones.
func ReduceSearchEntries(entries []models.SearchEntry) []models.Title {
	var collected []models.Title
	for _, e := range entries {
		if e.MediaType == models.MediaTypeMovie {
			collected = append(collected, e.Title)
		}
	}
	for _, e := range entries {
		if e.MediaType != models.MediaTypePerson {
			continue
		}
		for _, kf := range e.KnownFor {
			if kf.MediaType == models.MediaTypeMovie {
				collected = append(collected, kf)
			}
		}
	}

	seen := make(map[int64]struct{}, len(collected))
	out := make([]models.Title, 0, len(collected))
	for _, t := range collected {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}

// PickTrailer selects the clip key to embed: a Spanish YouTube trailer if
// one exists, then an English one, then the first clip of any kind, then
// nothing.
func PickTrailer(clips []models.VideoClip) string {
	for _, want := range []language.Tag{language.Spanish, language.English} {
		for _, clip := range clips {
			if clip.Site == "YouTube" && clip.Type == "Trailer" && matchesLanguage(clip.Language, want) {
				return clip.Key
			}
		}
	}
	if len(clips) > 0 {
		return clips[0].Key
	}
	return ""
}

// matchesLanguage reports whether an upstream language tag has the wanted
// base language, so region-qualified tags like es-MX still match.
func matchesLanguage(tag string, want language.Tag) bool {
	parsed, err := language.Parse(tag)
	if err != nil {
		return false
	}
	base, _ := parsed.Base()
	wantBase, _ := want.Base()
	return base == wantBase
}

func snapshot(s models.ViewState) models.ViewState {
	out := s
	out.Titles = append([]models.Title(nil), s.Titles...)
	if s.Overlay != nil {
		overlay := *s.Overlay
		out.Overlay = &overlay
	}
	return out
}
