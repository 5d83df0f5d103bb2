package annotation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store].
// It is suitable for single-session use and testing.
type MemStore struct {
	mu    sync.RWMutex
	notes []Note

	// coverage is the disjoint, sorted set of token intervals covered by at
	// least one note, rebuilt on every mutation that changes ranges. It makes
	// IsTokenAnnotated a binary search instead of a scan over all notes,
	// since the renderer asks once per token.
	coverage []interval
}

// interval is a closed token index range.
type interval struct {
	start, end int
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Create implements [Store.Create].
func (s *MemStore) Create(ctx context.Context, note Note) (Note, error) {
	if err := validate(note); err != nil {
		return Note{}, err
	}

	if note.ID == "" {
		id, err := generateID()
		if err != nil {
			return Note{}, fmt.Errorf("annotation: generate id: %w", err)
		}
		note.ID = id
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.notes = append(s.notes, note)
	sortNotes(s.notes)
	s.rebuildCoverage()
	return note, nil
}

// Get implements [Store.Get].
func (s *MemStore) Get(ctx context.Context, id string) (Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range s.notes {
		if n.ID == id {
			return n, nil
		}
	}
	return Note{}, ErrNotFound
}

// List implements [Store.List]. The returned slice is a copy in display
// order.
func (s *MemStore) List(ctx context.Context) ([]Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Note, len(s.notes))
	copy(out, s.notes)
	return out, nil
}

// UpdateContent implements [Store.UpdateContent]. Content edits do not touch
// any ordering key, so no re-sort is needed.
func (s *MemStore) UpdateContent(ctx context.Context, id string, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.notes {
		if s.notes[i].ID == id {
			s.notes[i].Content = content
			return nil
		}
	}
	return ErrNotFound
}

// Delete implements [Store.Delete]. Removal preserves the relative order of
// the remaining notes; only the coverage set needs rebuilding.
func (s *MemStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.notes {
		if s.notes[i].ID == id {
			s.notes = append(s.notes[:i], s.notes[i+1:]...)
			s.rebuildCoverage()
			return nil
		}
	}
	return ErrNotFound
}

// IsTokenAnnotated implements [Store.IsTokenAnnotated].
func (s *MemStore) IsTokenAnnotated(ctx context.Context, i int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// First interval ending at or after i; covered iff it also starts at or
	// before i.
	j := sort.Search(len(s.coverage), func(k int) bool {
		return s.coverage[k].end >= i
	})
	return j < len(s.coverage) && s.coverage[j].start <= i, nil
}

// rebuildCoverage merges all note ranges into disjoint sorted intervals.
// Caller must hold the write lock. Notes are already sorted by start keys,
// but coverage needs token-index order, which can differ from time order
// only under alignment noise; sort defensively anyway.
func (s *MemStore) rebuildCoverage() {
	if len(s.notes) == 0 {
		s.coverage = nil
		return
	}

	ivs := make([]interval, len(s.notes))
	for i, n := range s.notes {
		ivs[i] = interval{start: n.StartWordIndex, end: n.EndWordIndex}
	}
	sort.Slice(ivs, func(a, b int) bool {
		return ivs[a].start < ivs[b].start
	})

	merged := ivs[:1]
	for _, iv := range ivs[1:] {
		last := &merged[len(merged)-1]
		if iv.start <= last.end+1 {
			if iv.end > last.end {
				last.end = iv.end
			}
			continue
		}
		merged = append(merged, iv)
	}
	s.coverage = merged
}

// generateID produces a random 16-byte hex string using crypto/rand.
func generateID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
