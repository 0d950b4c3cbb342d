package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"cartelera/models"
	"cartelera/services/browse"
)

// BrowseHandler exposes browse sessions over HTTP. Each session holds one
// view state server-side; the endpoints mirror the user actions a client
// forwards (category click, search keystroke, title click, overlay close).
type BrowseHandler struct {
	registry *browse.Registry
}

func NewBrowseHandler(registry *browse.Registry) *BrowseHandler {
	return &BrowseHandler{registry: registry}
}

type createSessionResponse struct {
	SessionID string           `json:"sessionId"`
	State     models.ViewState `json:"state"`
}

// CreateSession starts a browse session preloaded with the default feed.
func (h *BrowseHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	id, controller := h.registry.Create(r.Context())
	writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID: id,
		State:     controller.State(),
	})
}

// GetState returns the session's current view state.
func (h *BrowseHandler) GetState(w http.ResponseWriter, r *http.Request) {
	controller, ok := h.controller(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, controller.State())
}

// DeleteSession drops a session explicitly.
func (h *BrowseHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	h.registry.Remove(mux.Vars(r)["sessionID"])
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

type selectCategoryRequest struct {
	Category string `json:"category"`
}

// SelectCategory switches the session to a category feed.
func (h *BrowseHandler) SelectCategory(w http.ResponseWriter, r *http.Request) {
	controller, ok := h.controller(w, r)
	if !ok {
		return
	}

	var req selectCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, known := models.CategoryByID(req.Category); !known {
		writeError(w, http.StatusBadRequest, "unknown category")
		return
	}

	if err := controller.SelectCategory(r.Context(), req.Category); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, controller.State())
}

type searchRequest struct {
	Query string `json:"query"`
}

// Search stores the query text and runs the fan-out search when it is long
// enough.
func (h *BrowseHandler) Search(w http.ResponseWriter, r *http.Request) {
	controller, ok := h.controller(w, r)
	if !ok {
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := controller.UpdateSearch(r.Context(), req.Query); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, controller.State())
}

// SelectTitle opens the detail overlay. The response carries the overlay
// with empty QR/trailer fields; clients poll GetState for the fills.
func (h *BrowseHandler) SelectTitle(w http.ResponseWriter, r *http.Request) {
	controller, ok := h.controller(w, r)
	if !ok {
		return
	}

	var title models.Title
	if err := json.NewDecoder(r.Body).Decode(&title); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if title.ID == 0 {
		writeError(w, http.StatusBadRequest, "title id is required")
		return
	}

	controller.SelectTitle(title)
	writeJSON(w, http.StatusOK, controller.State())
}

// CloseOverlay clears the detail overlay.
func (h *BrowseHandler) CloseOverlay(w http.ResponseWriter, r *http.Request) {
	controller, ok := h.controller(w, r)
	if !ok {
		return
	}
	controller.CloseOverlay()
	writeJSON(w, http.StatusOK, controller.State())
}

// Categories returns the fixed category strip.
func (h *BrowseHandler) Categories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, models.Categories)
}

func (h *BrowseHandler) controller(w http.ResponseWriter, r *http.Request) (*browse.Controller, bool) {
	controller, err := h.registry.Get(mux.Vars(r)["sessionID"])
	if err != nil {
		if errors.Is(err, browse.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "browse session not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return nil, false
	}
	return controller, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
