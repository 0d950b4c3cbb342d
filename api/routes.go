package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"cartelera/handlers"
)

// corsMiddleware handles CORS for API routes.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Register mounts API endpoints onto the provided router. trace attaches
// session info to requests without rejecting anonymous ones; it is the
// identity middleware when auth is enabled, nil otherwise.
func Register(
	r *mux.Router,
	browseHandler *handlers.BrowseHandler,
	catalogHandler *handlers.CatalogHandler,
	authHandler *handlers.AuthHandler,
	imageHandler *handlers.ImageHandler,
	trace func(http.Handler) http.Handler,
) {
	api := r.PathPrefix("/api").Subrouter()
	api.Use(corsMiddleware)
	if trace != nil {
		api.Use(trace)
	}

	// Browse sessions
	api.HandleFunc("/browse", browseHandler.CreateSession).Methods(http.MethodPost)
	api.HandleFunc("/browse/categories", browseHandler.Categories).Methods(http.MethodGet)
	api.HandleFunc("/browse/{sessionID}", browseHandler.GetState).Methods(http.MethodGet)
	api.HandleFunc("/browse/{sessionID}", browseHandler.DeleteSession).Methods(http.MethodDelete)
	api.HandleFunc("/browse/{sessionID}/category", browseHandler.SelectCategory).Methods(http.MethodPost)
	api.HandleFunc("/browse/{sessionID}/search", browseHandler.Search).Methods(http.MethodPost)
	api.HandleFunc("/browse/{sessionID}/select", browseHandler.SelectTitle).Methods(http.MethodPost)
	api.HandleFunc("/browse/{sessionID}/close", browseHandler.CloseOverlay).Methods(http.MethodPost)

	// Direct catalog boundary
	api.HandleFunc("/catalog/popular", catalogHandler.Popular).Methods(http.MethodGet)
	api.HandleFunc("/catalog/genre/{genreID}", catalogHandler.Genre).Methods(http.MethodGet)
	api.HandleFunc("/catalog/search", catalogHandler.Search).Methods(http.MethodGet)
	api.HandleFunc("/catalog/titles/{titleID}/videos", catalogHandler.Videos).Methods(http.MethodGet)
	api.HandleFunc("/catalog/embed", catalogHandler.Embed).Methods(http.MethodGet)

	// Session and profiles
	api.HandleFunc("/auth/session", authHandler.Session).Methods(http.MethodGet)
	api.HandleFunc("/profiles", authHandler.ListProfiles).Methods(http.MethodGet)
	api.HandleFunc("/profiles/{profileID}/role", authHandler.SetRole).Methods(http.MethodPut)

	// Image proxy
	api.HandleFunc("/image", imageHandler.Proxy).Methods(http.MethodGet)

	// CORS preflight for everything under /api
	api.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodOptions)
}
