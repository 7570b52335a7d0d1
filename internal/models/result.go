package models

// Candidate is a single match joined from the vector index and the record
// store. Position is the index slot the hit came from; candidates at equal
// similarity are ordered by lowest position (insertion order).
type Candidate struct {
	ID         int64   `json:"id"`
	Question   string  `json:"question"`
	Answer     string  `json:"answer,omitempty"`
	Similarity float64 `json:"similarity"`
	Position   int     `json:"-"`
}

// BestMatch is a high-confidence answer returned verbatim to the caller.
type BestMatch struct {
	Question   string  `json:"question"`
	Answer     string  `json:"answer"`
	Similarity float64 `json:"similarity"`
}

// Alternative is a lower-confidence candidate with the answer stripped;
// the caller is expected to let the user pick a question first.
type Alternative struct {
	ID         int64   `json:"id"`
	Question   string  `json:"question"`
	Similarity float64 `json:"similarity"`
}

// Classification is the outcome of a query: either a single answered match
// (BestMatch set, Alternatives empty) or a ranked list of alternatives,
// which is empty when nothing survived the similarity threshold.
type Classification struct {
	Answered     bool          `json:"answered"`
	BestMatch    *BestMatch    `json:"best_match,omitempty"`
	Alternatives []Alternative `json:"alternatives"`
	QueryTimeMs  int64         `json:"query_time_ms"`
}
