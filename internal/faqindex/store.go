// Package faqindex maintains the FAQ vector index together with its
// position-keyed record store, keeping the two consistent under
// concurrent create/update/delete traffic.
package faqindex

import (
	"fmt"

	"github.com/warunglabs/tanya/internal/models"
)

// recordStore maps dense vector-index positions to FAQ records and back.
// Position i of byPosition always describes the vector at slot i of the
// flat index; byID is the inverse mapping. Both change together under the
// Manager's lock, so the store itself carries no lock.
type recordStore struct {
	byPosition []*models.FAQ
	byID       map[int64]int
}

func newRecordStore() *recordStore {
	return &recordStore{
		byPosition: make([]*models.FAQ, 0),
		byID:       make(map[int64]int),
	}
}

// insert appends rec at the top position and returns it. The caller
// guarantees rec.ID is not already present.
func (s *recordStore) insert(rec *models.FAQ) int {
	pos := len(s.byPosition)
	s.byPosition = append(s.byPosition, rec)
	s.byID[rec.ID] = pos
	return pos
}

// removeAt drops the record at pos and renumbers every higher position
// down by one, matching the flat index's shift-left compaction.
func (s *recordStore) removeAt(pos int) {
	rec := s.byPosition[pos]
	delete(s.byID, rec.ID)
	s.byPosition = append(s.byPosition[:pos], s.byPosition[pos+1:]...)
	for i := pos; i < len(s.byPosition); i++ {
		s.byID[s.byPosition[i].ID] = i
	}
}

// position returns the slot currently holding id.
func (s *recordStore) position(id int64) (int, bool) {
	pos, ok := s.byID[id]
	return pos, ok
}

// at returns the record at pos, or nil when pos holds nothing.
func (s *recordStore) at(pos int) *models.FAQ {
	if pos < 0 || pos >= len(s.byPosition) {
		return nil
	}
	return s.byPosition[pos]
}

func (s *recordStore) size() int {
	return len(s.byPosition)
}

func (s *recordStore) reset() {
	s.byPosition = s.byPosition[:0]
	s.byID = make(map[int64]int)
}

// ids returns all FAQ ids currently indexed, in position order.
func (s *recordStore) ids() []int64 {
	out := make([]int64, len(s.byPosition))
	for i, rec := range s.byPosition {
		out[i] = rec.ID
	}
	return out
}

// records returns copies of all records in position order.
func (s *recordStore) records() []*models.FAQ {
	out := make([]*models.FAQ, len(s.byPosition))
	for i, rec := range s.byPosition {
		cp := *rec
		out[i] = &cp
	}
	return out
}

// restore rebuilds the store from a snapshot ordered by position.
// Duplicate ids in the snapshot are rejected.
func (s *recordStore) restore(recs []*models.FAQ) error {
	byID := make(map[int64]int, len(recs))
	byPosition := make([]*models.FAQ, len(recs))
	for i, rec := range recs {
		if _, dup := byID[rec.ID]; dup {
			return fmt.Errorf("snapshot has duplicate faq id %d", rec.ID)
		}
		cp := *rec
		byPosition[i] = &cp
		byID[rec.ID] = i
	}
	s.byPosition = byPosition
	s.byID = byID
	return nil
}

// duplicates counts how many positions hold each id, keeping only ids
// seen more than once. A non-empty result means the id-to-position
// bijection is broken and must be surfaced, never hidden.
func (s *recordStore) duplicates() map[int64]int {
	counts := make(map[int64]int, len(s.byPosition))
	for _, rec := range s.byPosition {
		counts[rec.ID]++
	}
	dups := make(map[int64]int)
	for id, n := range counts {
		if n > 1 {
			dups[id] = n
		}
	}
	return dups
}

// checkDense verifies the positions form exactly {0, ..., size-1} with a
// bijective id mapping. Used by tests and invariant checks.
func (s *recordStore) checkDense() error {
	if len(s.byID) != len(s.byPosition) {
		return fmt.Errorf("id map has %d entries, %d positions occupied", len(s.byID), len(s.byPosition))
	}
	for id, pos := range s.byID {
		if pos < 0 || pos >= len(s.byPosition) {
			return fmt.Errorf("faq id %d maps to position %d outside [0, %d)", id, pos, len(s.byPosition))
		}
		if s.byPosition[pos] == nil || s.byPosition[pos].ID != id {
			return fmt.Errorf("position %d does not hold faq id %d", pos, id)
		}
	}
	return nil
}
