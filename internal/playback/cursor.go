package playback

import (
	"sync"

	"github.com/rishikanthc/Scriberr-sub000/internal/transcript"
)

// guardBandFraction is the share of viewport height at each edge inside
// which the active word triggers an auto-scroll. A word comfortably in the
// middle of the viewport never scrolls, so the view does not jitter on every
// single word change.
const guardBandFraction = 0.20

// Cursor tracks the single active word token for a live playback position.
//
// Update applies hysteresis so the highlight does not flicker near segment
// boundaries and does not spuriously reset while the player sits paused at
// time 0 (the initial/idle state). A Cursor built over an empty index is
// permanently inactive; consumers treat that as "no highlighting available".
//
// All methods are safe for concurrent use, though the expected usage is a
// single event-delivery goroutine.
type Cursor struct {
	mu     sync.Mutex
	idx    *transcript.Index
	active int // -1 when no token is active
}

// NewCursor creates a [Cursor] over idx. The cursor starts inactive.
// idx may be nil or empty; the cursor then never activates.
func NewCursor(idx *transcript.Index) *Cursor {
	return &Cursor{idx: idx, active: -1}
}

// Update consumes one playback progress notification and returns the active
// token index after applying the transition rules. changed reports whether
// the active token moved, so the consumer knows to re-render and possibly
// scroll.
//
// Transition rules, in order:
//
//  1. Paused at time 0 forces the cursor back to inactive — the explicit
//     reset-to-idle state after playback finishes or the user stops and
//     rewinds.
//  2. The candidate token from [transcript.Index.ActiveTokenAt] is committed
//     only when it differs from the current one AND the player is either
//     playing or positioned past 0. A paused player parked at 0 never
//     re-highlights.
func (c *Cursor) Update(u TimeUpdate) (active int, ok bool, changed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !u.Playing && u.Time == 0 {
		changed = c.active != -1
		c.active = -1
		return 0, false, changed
	}

	candidate, found := c.idx.ActiveTokenAt(u.Time)
	if !found {
		return 0, false, false
	}
	if candidate < 0 {
		candidate = 0
	}

	if candidate != c.active && (u.Playing || u.Time > 0) {
		c.active = candidate
		return c.active, true, true
	}
	if c.active < 0 {
		return 0, false, false
	}
	return c.active, true, false
}

// Active returns the current active token index. ok is false when no token
// is active.
func (c *Cursor) Active() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active < 0 {
		return 0, false
	}
	return c.active, true
}

// Reset forces the cursor back to inactive, e.g. when the underlying
// transcript is replaced and old token indices lose their meaning.
func (c *Cursor) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = -1
}

// ShouldReveal decides whether the renderer must scroll the newly active
// token into view. tokenTop and tokenBottom are the token's vertical extent
// in viewport coordinates (0 = viewport top); viewHeight is the viewport
// height.
//
// The token is revealed when any part of it lies outside the viewport or
// inside the top/bottom guard bands (20% of viewport height from each edge).
// The reveal itself — a smooth, centering scroll — is the renderer's job.
func ShouldReveal(tokenTop, tokenBottom, viewHeight float64) bool {
	if viewHeight <= 0 {
		return false
	}
	band := viewHeight * guardBandFraction
	return tokenTop < band || tokenBottom > viewHeight-band
}
