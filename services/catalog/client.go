package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"cartelera/models"
)

const (
	tmdbBaseURL      = "https://api.themoviedb.org/3"
	tmdbImageBaseURL = "https://image.tmdb.org/t/p"
	// Optimized image sizes instead of "original" to keep payloads small.
	tmdbPosterSize   = "w500"
	tmdbBackdropSize = "w1280"
)

var ErrNotConfigured = errors.New("tmdb api key not configured")

// Client talks to the external catalog API (TMDB). All methods return
// normalized records; callers treat any error as non-fatal.
type Client struct {
	apiKey   string
	language string
	baseURL  string
	httpc    *http.Client

	// Rate limiting
	throttleMu  sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
}

// NewClient creates a catalog client. A nil http.Client gets a sane default.
func NewClient(apiKey, language string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		apiKey:      strings.TrimSpace(apiKey),
		language:    language,
		baseURL:     tmdbBaseURL,
		httpc:       httpc,
		minInterval: 20 * time.Millisecond, // TMDB has generous rate limits
	}
}

// SetBaseURL overrides the upstream base URL. Used by tests.
func (c *Client) SetBaseURL(base string) {
	c.baseURL = strings.TrimRight(base, "/")
}

func (c *Client) isConfigured() bool {
	return c != nil && c.apiKey != ""
}

// doGET performs a throttled GET with bounded retry on transport errors,
// 429 and 5xx responses.
func (c *Client) doGET(ctx context.Context, endpoint string, query url.Values, v any) error {
	if !c.isConfigured() {
		return ErrNotConfigured
	}

	u, err := url.JoinPath(c.baseURL, endpoint)
	if err != nil {
		return err
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("api_key", c.apiKey)
	if lang := strings.TrimSpace(c.language); lang != "" {
		query.Set("language", normalizeLanguage(lang))
	} else {
		query.Set("language", "en-US")
	}

	return retry.Do(
		func() error {
			c.throttle()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.URL.RawQuery = query.Encode()

			resp, err := c.httpc.Do(req)
			if err != nil {
				log.Printf("[catalog] http error for %s: %v", endpoint, err)
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				log.Printf("[catalog] retryable status for %s: %s", endpoint, resp.Status)
				return fmt.Errorf("catalog request failed: %s", resp.Status)
			}
			if resp.StatusCode >= 400 {
				return retry.Unrecoverable(fmt.Errorf("catalog request failed: %s", resp.Status))
			}

			if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
				return retry.Unrecoverable(err)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(300*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}

func (c *Client) throttle() {
	c.throttleMu.Lock()
	defer c.throttleMu.Unlock()
	if since := time.Since(c.lastRequest); since < c.minInterval {
		time.Sleep(c.minInterval - since)
	}
	c.lastRequest = time.Now()
}

type listResponse struct {
	Results []rawEntry `json:"results"`
}

type rawEntry struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Name         string     `json:"name"`
	Overview     string     `json:"overview"`
	PosterPath   string     `json:"poster_path"`
	BackdropPath string     `json:"backdrop_path"`
	ReleaseDate  string     `json:"release_date"`
	FirstAirDate string     `json:"first_air_date"`
	VoteAverage  float64    `json:"vote_average"`
	MediaType    string     `json:"media_type"`
	KnownFor     []rawEntry `json:"known_for"`
}

type videosResponse struct {
	Results []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Key      string `json:"key"`
		Site     string `json:"site"`
		Type     string `json:"type"`
		Official bool   `json:"official"`
		ISO6391  string `json:"iso_639_1"`
		ISO31661 string `json:"iso_3166_1"`
	} `json:"results"`
}

// PopularMovies returns the default "for you" feed.
func (c *Client) PopularMovies(ctx context.Context) ([]models.Title, error) {
	var payload listResponse
	if err := c.doGET(ctx, "movie/popular", nil, &payload); err != nil {
		return nil, err
	}
	return normalizeTitles(payload.Results, models.MediaTypeMovie), nil
}

// MoviesByGenre returns one page of movies for an upstream genre id.
func (c *Client) MoviesByGenre(ctx context.Context, genreID int64) ([]models.Title, error) {
	q := url.Values{}
	q.Set("with_genres", strconv.FormatInt(genreID, 10))
	q.Set("sort_by", "popularity.desc")

	var payload listResponse
	if err := c.doGET(ctx, "discover/movie", q, &payload); err != nil {
		return nil, err
	}
	return normalizeTitles(payload.Results, models.MediaTypeMovie), nil
}

// SearchMulti issues a multi-type search and returns the raw mixed entries,
// tagged by kind, with person entries carrying their known-for titles.
func (c *Client) SearchMulti(ctx context.Context, query string) ([]models.SearchEntry, error) {
	q := url.Values{}
	q.Set("query", query)

	var payload listResponse
	if err := c.doGET(ctx, "search/multi", q, &payload); err != nil {
		return nil, err
	}

	entries := make([]models.SearchEntry, 0, len(payload.Results))
	for _, r := range payload.Results {
		entry := models.SearchEntry{Title: normalizeTitle(r, r.MediaType)}
		for _, kf := range r.KnownFor {
			entry.KnownFor = append(entry.KnownFor, normalizeTitle(kf, kf.MediaType))
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// MovieVideos returns the clip list for a movie.
func (c *Client) MovieVideos(ctx context.Context, titleID int64) ([]models.VideoClip, error) {
	var payload videosResponse
	endpoint := fmt.Sprintf("movie/%d/videos", titleID)
	if err := c.doGET(ctx, endpoint, nil, &payload); err != nil {
		return nil, err
	}

	clips := make([]models.VideoClip, 0, len(payload.Results))
	for _, v := range payload.Results {
		key := strings.TrimSpace(v.Key)
		if key == "" {
			continue
		}
		clips = append(clips, models.VideoClip{
			ID:       v.ID,
			Name:     strings.TrimSpace(v.Name),
			Key:      key,
			Site:     strings.TrimSpace(v.Site),
			Type:     strings.TrimSpace(v.Type),
			Language: strings.TrimSpace(v.ISO6391),
			Country:  strings.TrimSpace(v.ISO31661),
			Official: v.Official,
		})
	}
	return clips, nil
}

func normalizeTitles(raw []rawEntry, mediaType string) []models.Title {
	titles := make([]models.Title, 0, len(raw))
	for _, r := range raw {
		titles = append(titles, normalizeTitle(r, mediaType))
	}
	return titles
}

func normalizeTitle(r rawEntry, mediaType string) models.Title {
	if mediaType == "" {
		mediaType = models.MediaTypeMovie
	}
	t := models.Title{
		ID:          r.ID,
		Name:        pickName(mediaType, r.Name, r.Title),
		Overview:    r.Overview,
		PosterPath:  r.PosterPath,
		ReleaseDate: firstNonEmpty(r.ReleaseDate, r.FirstAirDate),
		VoteAverage: r.VoteAverage,
		MediaType:   mediaType,
	}
	if year := parseYear(r.ReleaseDate, r.FirstAirDate); year != 0 {
		t.Year = year
	}
	if poster := buildImageURL(r.PosterPath, tmdbPosterSize); poster != "" {
		t.PosterURL = poster
	}
	if backdrop := buildImageURL(r.BackdropPath, tmdbBackdropSize); backdrop != "" {
		t.BackdropURL = backdrop
	}
	return t
}

func pickName(mediaType, seriesName, movieTitle string) string {
	if mediaType == models.MediaTypeMovie && movieTitle != "" {
		return movieTitle
	}
	if seriesName != "" {
		return seriesName
	}
	return movieTitle
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func parseYear(movieDate, seriesDate string) int {
	date := movieDate
	if date == "" {
		date = seriesDate
	}
	if date == "" {
		return 0
	}
	if t, err := time.Parse("2006-01-02", date); err == nil {
		return t.Year()
	}
	if len(date) >= 4 {
		if y, err := strconv.Atoi(date[:4]); err == nil {
			return y
		}
	}
	return 0
}

func buildImageURL(imagePath, size string) string {
	trimmed := strings.TrimSpace(imagePath)
	if trimmed == "" {
		return ""
	}
	fullPath := path.Join(size, strings.TrimPrefix(trimmed, "/"))
	return fmt.Sprintf("%s/%s", tmdbImageBaseURL, fullPath)
}

func normalizeLanguage(lang string) string {
	lang = strings.ReplaceAll(lang, "_", "-")
	if len(lang) == 2 {
		return strings.ToLower(lang) + "-US"
	}
	if len(lang) >= 5 {
		return strings.ToLower(lang[:2]) + "-" + strings.ToUpper(lang[3:])
	}
	return "en-US"
}
