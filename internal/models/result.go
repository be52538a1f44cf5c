package models

// SearchResult is a single search hit joined back through the chunk store.
type SearchResult struct {
	BookID         int64   `json:"book_id"`
	LibraryID      int64   `json:"library_id"`
	Title          string  `json:"title"`
	Author         string  `json:"author"`
	Similarity     float64 `json:"similarity"`
	ChapterID      int64   `json:"chapter_id"`
	ChapterTitle   string  `json:"chapter_title"`
	ChapterOrdinal int     `json:"chapter_ordinal"`
	Snippet        string  `json:"snippet"`
	VectorHandle   int     `json:"vector_handle"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	QueryTime int64           `json:"query_time_ms"`
	Query     string          `json:"query"`
}
