package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"cartelera/models"
	catalogpkg "cartelera/services/catalog"
)

type catalogService interface {
	PopularMovies(ctx context.Context) ([]models.Title, error)
	MoviesByGenre(ctx context.Context, genreID int64) ([]models.Title, error)
	SearchMulti(ctx context.Context, query string) ([]models.SearchEntry, error)
	MovieVideos(ctx context.Context, titleID int64) ([]models.VideoClip, error)
}

var _ catalogService = (*catalogpkg.Client)(nil)

// CatalogHandler exposes the catalog boundary directly, for clients that
// manage their own view state.
type CatalogHandler struct {
	service      catalogService
	embedBaseURL string
}

func NewCatalogHandler(service catalogService, embedBaseURL string) *CatalogHandler {
	return &CatalogHandler{
		service:      service,
		embedBaseURL: strings.TrimRight(embedBaseURL, "/"),
	}
}

// Popular returns the default feed.
func (h *CatalogHandler) Popular(w http.ResponseWriter, r *http.Request) {
	titles, err := h.service.PopularMovies(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, titles)
}

// Genre returns one page of movies for a genre id.
func (h *CatalogHandler) Genre(w http.ResponseWriter, r *http.Request) {
	genreID, err := strconv.ParseInt(mux.Vars(r)["genreID"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid genre id")
		return
	}

	titles, err := h.service.MoviesByGenre(r.Context(), genreID)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, titles)
}

// Search runs a multi-type search and returns the raw tagged entries.
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter is required")
		return
	}

	entries, err := h.service.SearchMulti(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Videos returns the clip list for a movie.
func (h *CatalogHandler) Videos(w http.ResponseWriter, r *http.Request) {
	titleID, err := strconv.ParseInt(mux.Vars(r)["titleID"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid title id")
		return
	}

	clips, err := h.service.MovieVideos(r.Context(), titleID)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, clips)
}

// Embed builds the opaque third-party player URL for a title. Series
// default to season 1 episode 1 when not specified.
func (h *CatalogHandler) Embed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	titleID, err := strconv.ParseInt(q.Get("id"), 10, 64)
	if err != nil || titleID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid title id")
		return
	}

	mediaType := q.Get("type")
	var embedURL string
	switch mediaType {
	case models.MediaTypeMovie, "":
		embedURL = fmt.Sprintf("%s/movie/%d", h.embedBaseURL, titleID)
	case models.MediaTypeTV:
		season := positiveOrDefault(q.Get("season"), 1)
		episode := positiveOrDefault(q.Get("episode"), 1)
		embedURL = fmt.Sprintf("%s/tv/%d/%d/%d", h.embedBaseURL, titleID, season, episode)
	default:
		writeError(w, http.StatusBadRequest, "unsupported media type")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": embedURL})
}

func positiveOrDefault(raw string, def int) int {
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		return v
	}
	return def
}
