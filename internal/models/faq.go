// Package models defines the data types shared across the tanya service.
package models

// FAQ is an indexed question/answer record. The record's domain id is
// stable across updates; its index position is not.
type FAQ struct {
	ID       int64  `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// FAQItem is the input shape for create, update, and bulk operations, and
// the shape returned by the authoritative source.
type FAQItem struct {
	ID       int64  `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ListEntry is a FAQ record together with its current index position.
type ListEntry struct {
	Position int    `json:"position"`
	ID       int64  `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// IndexStats describes index health. Duplicates maps domain ids that occur
// at more than one position to their occurrence count; a non-empty map
// signals corruption and is surfaced to the caller, never hidden.
type IndexStats struct {
	TotalVectors  int           `json:"total_vectors"`
	Dimensions    int           `json:"dimensions"`
	UniqueIDs     int           `json:"unique_ids"`
	HasDuplicates bool          `json:"has_duplicates"`
	Duplicates    map[int64]int `json:"duplicates,omitempty"`
	LastUpdated   string        `json:"last_updated,omitempty"`
}
