// Package view ties one playback transport, one word index, and one note
// store together into a viewer session.
//
// The session is the sole owner of the [playback.Transport] handle; everything
// else consumes read projections. It mediates the full annotation flow:
// selection gestures resolve against the session's current index, a resolved
// selection can be saved as a note, and per-token render attributes combine
// the live cursor with note coverage.
//
// Replacing the transcript (retranscription) builds a brand-new index and
// invalidates everything that referenced the old one: the cursor resets and
// any pending selection is discarded. Anchors handed out before the swap
// resolve to nothing afterwards.
package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rishikanthc/Scriberr-sub000/internal/annotation"
	"github.com/rishikanthc/Scriberr-sub000/internal/observe"
	"github.com/rishikanthc/Scriberr-sub000/internal/playback"
	"github.com/rishikanthc/Scriberr-sub000/internal/selection"
	"github.com/rishikanthc/Scriberr-sub000/internal/transcript"
)

// TokenAttributes are the render-relevant flags of one word token.
type TokenAttributes struct {
	// Active reports that this token is the current playback cursor position.
	Active bool

	// Annotated reports that at least one note's range covers this token.
	Annotated bool

	// Selected reports that the pending selection covers this token.
	Selected bool

	// Anchor is the selection/seek anchor the renderer attaches to the token.
	Anchor selection.Anchor
}

// Session is one viewer's live state over a single transcript.
// Safe for concurrent use.
type Session struct {
	log       *slog.Logger
	metrics   *observe.Metrics
	transport playback.Transport
	notes     annotation.Store
	closeOnce sync.Once

	mu     sync.Mutex // guards idx/cursor/sel swaps
	idx    *transcript.Index
	cursor *playback.Cursor
	sel    *selection.Range
}

// Option is a functional option for Session.
type Option func(*Session)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithMetrics sets the metrics instance. Default: observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// NewSession creates a session owning the given transport and note store.
// The session starts without a transcript; call [Session.SetTranscript].
// The session counts against the active-views gauge until [Session.Close].
func NewSession(transport playback.Transport, notes annotation.Store, opts ...Option) (*Session, error) {
	if transport == nil {
		return nil, fmt.Errorf("view: transport must not be nil")
	}
	if notes == nil {
		return nil, fmt.Errorf("view: note store must not be nil")
	}
	s := &Session{
		log:       slog.Default(),
		transport: transport,
		notes:     notes,
		cursor:    playback.NewCursor(nil),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	s.metrics.ActiveViews.Add(context.Background(), 1)
	return s, nil
}

// Close releases the session's slot in the active-views gauge. Further calls
// are no-ops; the session itself holds no other resources.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.metrics.ActiveViews.Add(context.Background(), -1)
	})
}

// SetTranscript installs t as the session's transcript. The previous index,
// cursor state, and any pending selection are discarded: token indices are
// only meaningful against the index they were minted from.
func (s *Session) SetTranscript(t *transcript.Transcript) {
	var idx *transcript.Index
	if t != nil && t.HasWords() {
		idx = transcript.NewIndex(t.Words)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.idx = idx
	s.cursor = playback.NewCursor(idx)
	s.sel = nil
}

// Index returns the session's current word index, nil when the transcript has
// no word timestamps (highlighting disabled).
func (s *Session) Index() *transcript.Index {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx
}

// HandleTimeUpdate feeds one playback progress event into the cursor and
// returns the resulting active token. changed signals a re-render.
func (s *Session) HandleTimeUpdate(u playback.TimeUpdate) (active int, ok bool, changed bool) {
	s.mu.Lock()
	cursor := s.cursor
	s.mu.Unlock()
	return cursor.Update(u)
}

// Select resolves a selection gesture against the current index and retains
// the result as the pending selection. ok is false when the gesture does not
// resolve; the pending selection is cleared in that case.
func (s *Session) Select(ev selection.Event) (selection.Range, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := selection.Resolve(s.idx, ev)
	if !ok {
		s.sel = nil
		return selection.Range{}, false
	}
	s.sel = &r
	return r, true
}

// Selection returns the pending selection, if any.
func (s *Session) Selection() (selection.Range, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sel == nil {
		return selection.Range{}, false
	}
	return *s.sel, true
}

// ClearSelection discards the pending selection (escape, click-away, or the
// affordance being dismissed).
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel = nil
}

// SaveNote persists the pending selection as a note with the given content
// and clears the selection. Fails when no selection is pending.
func (s *Session) SaveNote(ctx context.Context, content string) (annotation.Note, error) {
	s.mu.Lock()
	sel := s.sel
	s.mu.Unlock()

	if sel == nil {
		return annotation.Note{}, fmt.Errorf("view: no pending selection")
	}

	note, err := s.notes.Create(ctx, annotation.Note{
		StartWordIndex: sel.StartIdx,
		EndWordIndex:   sel.EndIdx,
		StartTime:      sel.Start,
		EndTime:        sel.End,
		Quote:          sel.Quote,
		Content:        content,
		CreatedAt:      time.Now(),
	})
	if err != nil {
		return annotation.Note{}, fmt.Errorf("view: save note: %w", err)
	}

	s.ClearSelection()
	return note, nil
}

// UpdateNote replaces a note's content. A missing ID is a no-op: the note was
// deleted from elsewhere while the editor was open, which is not an error the
// viewer can act on.
func (s *Session) UpdateNote(ctx context.Context, id, content string) error {
	err := s.notes.UpdateContent(ctx, id, content)
	if errors.Is(err, annotation.ErrNotFound) {
		s.log.Warn("view: update of missing note ignored", "note_id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("view: update note: %w", err)
	}
	return nil
}

// DeleteNote removes a note. A missing ID is a no-op, same as UpdateNote.
func (s *Session) DeleteNote(ctx context.Context, id string) error {
	err := s.notes.Delete(ctx, id)
	if errors.Is(err, annotation.ErrNotFound) {
		s.log.Warn("view: delete of missing note ignored", "note_id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("view: delete note: %w", err)
	}
	return nil
}

// Notes lists all notes in display order.
func (s *Session) Notes(ctx context.Context) ([]annotation.Note, error) {
	return s.notes.List(ctx)
}

// TokenAttributes computes the render attributes of token i against the
// current cursor, note coverage, and pending selection.
func (s *Session) TokenAttributes(ctx context.Context, i int) (TokenAttributes, error) {
	s.mu.Lock()
	idx := s.idx
	cursor := s.cursor
	sel := s.sel
	s.mu.Unlock()

	if idx == nil {
		return TokenAttributes{}, fmt.Errorf("view: no transcript loaded")
	}
	w, ok := idx.Word(i)
	if !ok {
		return TokenAttributes{}, fmt.Errorf("view: token %d out of range", i)
	}

	annotated, err := s.notes.IsTokenAnnotated(ctx, i)
	if err != nil {
		return TokenAttributes{}, fmt.Errorf("view: coverage lookup: %w", err)
	}

	attrs := TokenAttributes{
		Annotated: annotated,
		Anchor:    selection.Anchor{Index: i, Start: w.Start, End: w.End},
	}
	if active, ok := cursor.Active(); ok && active == i {
		attrs.Active = true
	}
	if sel != nil && i >= sel.StartIdx && i <= sel.EndIdx {
		attrs.Selected = true
	}
	return attrs, nil
}

// SeekToWord performs the modifier-click gesture: jump the playhead to the
// anchored token's start time. With an unknown media duration the playhead
// stays put; a token starting at time zero still seeks (rewind to the first
// word).
func (s *Session) SeekToWord(a selection.Anchor) {
	if ratio, ok := selection.WordSeek(a, s.transport.Duration()); ok {
		s.transport.SeekTo(ratio)
	}
}

// PlayPause toggles the transport between playing and paused.
func (s *Session) PlayPause() {
	s.transport.PlayPause()
}
