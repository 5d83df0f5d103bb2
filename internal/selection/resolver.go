// Package selection resolves user text selections over rendered word tokens
// into normalized token ranges with stable time bounds.
//
// The rendering surface attaches an [Anchor] to every token it draws; a
// selection gesture delivers the two anchors nearest its end points. Given
// those anchors and the word index, resolution is a pure function — no
// rendering state is consulted — so the whole flow is unit-testable.
package selection

import (
	"github.com/rishikanthc/Scriberr-sub000/internal/playback"
	"github.com/rishikanthc/Scriberr-sub000/internal/transcript"
)

// Floating affordance placement constants, in pixels.
const (
	// edgeMargin keeps the affordance off the left/right viewport edges.
	edgeMargin = 16

	// aboveGap separates the affordance from the selection when placed above.
	aboveGap = 10

	// minTop is the minimum distance from the viewport top at which the
	// above placement is still usable.
	minTop = 12

	// belowGap separates the affordance from the selection when it has to
	// fall below instead.
	belowGap = 8
)

// Anchor identifies one rendered token. It carries everything needed to
// resolve a gesture later without touching the rendering surface again.
type Anchor struct {
	// Index is the token's position in the word index that was current when
	// the anchor was rendered. Anchors from an old index must be discarded
	// after retranscription.
	Index int

	// Start is the token's start time in seconds.
	Start float64

	// End is the token's end time in seconds.
	End float64
}

// Event describes a completed selection gesture: two anchor points in either
// order. A nil anchor means that end of the selection could not be resolved
// to a token.
type Event struct {
	// A and B are the anchors nearest the two selection end points. The user
	// may have dragged in either direction; no ordering is implied.
	A, B *Anchor

	// Collapsed reports a zero-length selection (a bare click).
	Collapsed bool
}

// Range is a resolved selection: a contiguous token range, its time bounds,
// and the literal quote. It is ephemeral — created on a selection gesture and
// discarded when the selection collapses or a note is saved or cancelled.
type Range struct {
	// StartIdx and EndIdx bound the token range, inclusive, StartIdx <= EndIdx.
	StartIdx, EndIdx int

	// Start is the start time of the first token, End the end time of the
	// last, in seconds.
	Start, End float64

	// Quote is the space-joined text of the selected tokens.
	Quote string
}

// Resolve maps a selection event to a token [Range] against idx.
//
// ok is false — and the caller must hide any selection UI and clear pending
// state — when the selection is collapsed, either anchor is unresolved, or
// idx has no tokens. Anchor order is irrelevant: dragging token 7 → 3 yields
// the same range as 3 → 7.
func Resolve(idx *transcript.Index, ev Event) (Range, bool) {
	if ev.Collapsed || ev.A == nil || ev.B == nil {
		return Range{}, false
	}
	if idx == nil || idx.Len() == 0 {
		return Range{}, false
	}

	startIdx, endIdx := ev.A.Index, ev.B.Index
	if endIdx < startIdx {
		startIdx, endIdx = endIdx, startIdx
	}

	first, ok := idx.Word(startIdx)
	if !ok {
		return Range{}, false
	}
	last, ok := idx.Word(endIdx)
	if !ok {
		return Range{}, false
	}
	quote, err := idx.Quote(startIdx, endIdx)
	if err != nil {
		return Range{}, false
	}

	return Range{
		StartIdx: startIdx,
		EndIdx:   endIdx,
		Start:    first.Start,
		End:      last.End,
		Quote:    quote,
	}, true
}

// Rect is an axis-aligned box in viewport coordinates (origin top-left,
// pixels).
type Rect struct {
	Left, Top, Width, Height float64
}

// Point is a position in viewport coordinates.
type Point struct {
	X, Y float64
}

// AffordancePosition computes where the floating action affordance (the
// "add note" button) is anchored for a selection bounding box.
//
// Horizontally it centres on the selection, clamped to stay edgeMargin px
// from either viewport edge. Vertically it sits aboveGap px above the
// selection — unless that would land closer than minTop px to the viewport
// top, in which case it falls belowGap px below the selection instead.
func AffordancePosition(sel Rect, viewportWidth float64) Point {
	x := sel.Left + sel.Width/2
	if limit := viewportWidth - edgeMargin; x > limit {
		x = limit
	}
	if x < edgeMargin {
		x = edgeMargin
	}

	y := sel.Top - aboveGap
	if y < minTop {
		y = sel.Top + sel.Height + belowGap
	}

	return Point{X: x, Y: y}
}

// WordSeek resolves the modifier-key (ctrl/cmd) click gesture on a token
// anchor: a seek to the token's start, bypassing selection and annotation
// logic entirely. It returns the clamped ratio for [playback.Transport.SeekTo];
// ok is false when the media duration is unknown and no seek should be issued.
func WordSeek(a Anchor, duration float64) (float64, bool) {
	return playback.SeekRatio(a.Start, duration)
}
