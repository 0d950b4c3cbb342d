package models

// Catalog structures for titles, search entries and video clips as returned
// by the upstream catalog API after normalization.

const (
	MediaTypeMovie  = "movie"
	MediaTypeTV     = "tv"
	MediaTypePerson = "person"
)

type Title struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Overview    string  `json:"overview"`
	PosterPath  string  `json:"posterPath,omitempty"`
	PosterURL   string  `json:"posterUrl,omitempty"`
	BackdropURL string  `json:"backdropUrl,omitempty"`
	ReleaseDate string  `json:"releaseDate,omitempty"`
	Year        int     `json:"year,omitempty"`
	VoteAverage float64 `json:"voteAverage,omitempty"`
	MediaType   string  `json:"mediaType"` // movie | tv | person
}

// SearchEntry is one raw result of a multi-type search. Person entries carry
// their "known for" titles so the caller can flatten them.
type SearchEntry struct {
	Title
	KnownFor []Title `json:"knownFor,omitempty"`
}

// VideoClip is a single entry of a title's video metadata (trailers, teasers,
// featurettes) as reported upstream.
type VideoClip struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Key      string `json:"key"`
	Site     string `json:"site"`     // YouTube, Vimeo, ...
	Type     string `json:"type"`     // Trailer, Teaser, Clip, ...
	Language string `json:"language"` // iso 639-1
	Country  string `json:"country,omitempty"`
	Official bool   `json:"official,omitempty"`
}

// Category is one entry of the fixed category strip. The sentinel category
// maps to the default feed, every other ID is an upstream genre identifier.
type Category struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// CategoryFeed is the sentinel identifier for the personalized default feed.
const CategoryFeed = "popular"

// Categories is the fixed category strip, sentinel first. Read-only.
var Categories = []Category{
	{ID: CategoryFeed, Label: "Para ti"},
	{ID: "28", Label: "Acción"},
	{ID: "12", Label: "Aventura"},
	{ID: "16", Label: "Animación"},
	{ID: "35", Label: "Comedia"},
	{ID: "80", Label: "Crimen"},
	{ID: "99", Label: "Documental"},
	{ID: "18", Label: "Drama"},
	{ID: "10751", Label: "Familia"},
	{ID: "14", Label: "Fantasía"},
	{ID: "36", Label: "Historia"},
	{ID: "27", Label: "Terror"},
	{ID: "10402", Label: "Música"},
	{ID: "9648", Label: "Misterio"},
	{ID: "10749", Label: "Romance"},
	{ID: "878", Label: "Ciencia Ficción"},
	{ID: "10770", Label: "Película de TV"},
	{ID: "53", Label: "Suspenso"},
	{ID: "10752", Label: "Guerra"},
	{ID: "37", Label: "Western"},
}

// CategoryByID returns the category with the given ID if it exists.
func CategoryByID(id string) (Category, bool) {
	for _, c := range Categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}
