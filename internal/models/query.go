package models

import "fmt"

// QueryInput represents a free-text question against the FAQ index.
type QueryInput struct {
	Query     string  `json:"query"`
	TopK      int     `json:"top_k,omitempty"`
	Threshold float64 `json:"threshold,omitempty"` // minimum similarity for a candidate to survive
}

// Validate ensures the query has valid fields and sets defaults.
// Returns an error if the query text is empty; otherwise normalizes
// top_k and clamps the threshold into [0, 1].
func (q *QueryInput) Validate(defaultTopK, maxTopK int, defaultThreshold float64) error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.TopK <= 0 {
		q.TopK = defaultTopK
	}
	if maxTopK > 0 && q.TopK > maxTopK {
		q.TopK = maxTopK
	}
	if q.Threshold == 0 {
		q.Threshold = defaultThreshold
	}
	if q.Threshold < 0 {
		q.Threshold = 0
	}
	if q.Threshold > 1 {
		q.Threshold = 1
	}
	return nil
}
