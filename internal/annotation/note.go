// Package annotation manages user-authored notes bound to contiguous word
// token ranges of a transcript.
//
// Notes are created from a resolved selection, edited in place (content
// only), and deleted explicitly. The display order is a 3-key sort —
// (StartTime, StartWordIndex, CreatedAt) ascending — with CreatedAt as the
// authoritative tiebreak for notes starting at the same position; insertion
// order is never relied on. Stores re-apply the sort after every insert.
//
// All store implementations are safe for concurrent use; writes are
// serialized internally.
package annotation

import (
	"sort"
	"time"
)

// Note is a user annotation over a word token range and its time interval.
type Note struct {
	// ID uniquely identifies the note. Assigned by the store on create.
	ID string `json:"id"`

	// StartWordIndex and EndWordIndex bound the annotated token range,
	// inclusive. StartWordIndex <= EndWordIndex.
	StartWordIndex int `json:"start_word_index"`
	EndWordIndex   int `json:"end_word_index"`

	// StartTime and EndTime are the range's playback time bounds in seconds.
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`

	// Quote is the literal selected text the note was attached to.
	Quote string `json:"quote"`

	// Content is the user's free-text note body.
	Content string `json:"content"`

	// CreatedAt is assigned by the store on create and never changes.
	CreatedAt time.Time `json:"created_at"`
}

// Covers reports whether the note's token range includes word index i.
func (n Note) Covers(i int) bool {
	return n.StartWordIndex <= i && i <= n.EndWordIndex
}

// sortNotes applies the display ordering invariant in place:
// (StartTime, StartWordIndex, CreatedAt) ascending. The sort is stable so
// fully identical keys keep their relative order.
func sortNotes(notes []Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		a, b := notes[i], notes[j]
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		if a.StartWordIndex != b.StartWordIndex {
			return a.StartWordIndex < b.StartWordIndex
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}
