// Package catalog defines the movie types served by the catalog service.
// Entries are produced by deserialising the upstream provider's responses
// and live only in the cache and in-flight responses; nothing is persisted
// locally.
package catalog

// Movie is the short representation of a catalog entry.
type Movie struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	ReleaseDate *string `json:"release_date,omitempty"`
	Overview    string  `json:"overview"`
	VoteAverage float64 `json:"vote_average"`
	PosterPath  string  `json:"poster_path,omitempty"`
}

// SearchResponse is the payload returned by GET /search.
type SearchResponse struct {
	Results []Movie `json:"results"`
}
