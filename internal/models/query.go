package models

import "fmt"

// SearchQuery is a semantic search request.
type SearchQuery struct {
	Query         string  `json:"query"`
	Limit         int     `json:"limit,omitempty"`
	MinSimilarity float64 `json:"min_similarity,omitempty"` // 0..1; results below are dropped after retrieval
}

// Validate checks the query and normalizes the limit.
// Returns an error if the query text is empty.
func (q *SearchQuery) Validate() error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return nil
}
