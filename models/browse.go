package models

// ViewState is a snapshot of a browse session: the visible title list, the
// active category or search query, and the open detail overlay if any.
// Exactly one of category browsing and search mode is active at a time.
type ViewState struct {
	Titles         []Title       `json:"titles"`
	ActiveCategory string        `json:"activeCategory"`
	SearchQuery    string        `json:"searchQuery"`
	Searching      bool          `json:"searching"`
	Overlay        *OverlayState `json:"overlay,omitempty"`
}

// OverlayState describes the open detail overlay. QR and Trailer start empty
// and are filled asynchronously after the overlay opens; either may stay
// empty when its upstream fetch fails.
type OverlayState struct {
	Title      Title  `json:"title"`
	QR         string `json:"qr,omitempty"`         // data URL, empty until generated
	TrailerKey string `json:"trailerKey,omitempty"` // video platform clip key
}
