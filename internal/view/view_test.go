package view_test

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/rishikanthc/Scriberr-sub000/internal/annotation"
	"github.com/rishikanthc/Scriberr-sub000/internal/observe"
	"github.com/rishikanthc/Scriberr-sub000/internal/playback"
	"github.com/rishikanthc/Scriberr-sub000/internal/selection"
	"github.com/rishikanthc/Scriberr-sub000/internal/transcript"
	"github.com/rishikanthc/Scriberr-sub000/internal/view"
)

// fakeTransport records transport calls for assertions.
type fakeTransport struct {
	duration float64
	seeks    []float64
	toggles  int
}

func (f *fakeTransport) Duration() float64    { return f.duration }
func (f *fakeTransport) SeekTo(ratio float64) { f.seeks = append(f.seeks, ratio) }
func (f *fakeTransport) PlayPause()           { f.toggles++ }

func testTranscript() *transcript.Transcript {
	return &transcript.Transcript{
		FullText: "Hi there friend",
		Words: []transcript.WordToken{
			{Text: "Hi", Start: 0.5, End: 0.9},
			{Text: "there", Start: 0.9, End: 1.3},
			{Text: "friend", Start: 1.5, End: 2.0},
		},
	}
}

func newSession(t *testing.T) (*view.Session, *fakeTransport) {
	t.Helper()
	ft := &fakeTransport{duration: 10}
	s, err := view.NewSession(ft, annotation.NewMemStore())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	s.SetTranscript(testTranscript())
	return s, ft
}

func anchorFor(t *testing.T, s *view.Session, i int) *selection.Anchor {
	t.Helper()
	w, ok := s.Index().Word(i)
	if !ok {
		t.Fatalf("no word at %d", i)
	}
	return &selection.Anchor{Index: i, Start: w.Start, End: w.End}
}

func TestSaveNoteFlow(t *testing.T) {
	t.Parallel()

	s, _ := newSession(t)
	ctx := context.Background()

	r, ok := s.Select(selection.Event{A: anchorFor(t, s, 2), B: anchorFor(t, s, 0)})
	if !ok {
		t.Fatal("Select: expected resolution")
	}
	if r.Quote != "Hi there friend" {
		t.Fatalf("Quote = %q", r.Quote)
	}

	note, err := s.SaveNote(ctx, "intro greeting")
	if err != nil {
		t.Fatalf("SaveNote: %v", err)
	}
	if note.Quote != "Hi there friend" || note.Content != "intro greeting" {
		t.Fatalf("note = %+v", note)
	}

	// Saving clears the pending selection.
	if _, ok := s.Selection(); ok {
		t.Fatal("selection still pending after save")
	}
	if _, err := s.SaveNote(ctx, "again"); err == nil {
		t.Fatal("SaveNote: expected error without a selection")
	}

	notes, err := s.Notes(ctx)
	if err != nil {
		t.Fatalf("Notes: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("len(notes) = %d, want 1", len(notes))
	}
}

func TestMissingNoteOpsAreNoOps(t *testing.T) {
	t.Parallel()

	s, _ := newSession(t)
	ctx := context.Background()

	if err := s.UpdateNote(ctx, "nope", "new text"); err != nil {
		t.Fatalf("UpdateNote on missing id: %v", err)
	}
	if err := s.DeleteNote(ctx, "nope"); err != nil {
		t.Fatalf("DeleteNote on missing id: %v", err)
	}
}

func TestTokenAttributes(t *testing.T) {
	t.Parallel()

	s, _ := newSession(t)
	ctx := context.Background()

	// Annotate "there".
	if _, ok := s.Select(selection.Event{A: anchorFor(t, s, 1), B: anchorFor(t, s, 1)}); !ok {
		t.Fatal("Select failed")
	}
	if _, err := s.SaveNote(ctx, "note on there"); err != nil {
		t.Fatalf("SaveNote: %v", err)
	}

	// Move the cursor onto "Hi".
	if _, ok, _ := s.HandleTimeUpdate(playback.TimeUpdate{Time: 0.6, Playing: true}); !ok {
		t.Fatal("HandleTimeUpdate: expected an active token")
	}

	attrs, err := s.TokenAttributes(ctx, 0)
	if err != nil {
		t.Fatalf("TokenAttributes(0): %v", err)
	}
	if !attrs.Active || attrs.Annotated {
		t.Fatalf("attrs(0) = %+v", attrs)
	}
	if attrs.Anchor.Index != 0 || attrs.Anchor.Start != 0.5 {
		t.Fatalf("anchor(0) = %+v", attrs.Anchor)
	}

	attrs, err = s.TokenAttributes(ctx, 1)
	if err != nil {
		t.Fatalf("TokenAttributes(1): %v", err)
	}
	if attrs.Active || !attrs.Annotated {
		t.Fatalf("attrs(1) = %+v", attrs)
	}

	if _, err := s.TokenAttributes(ctx, 99); err == nil {
		t.Fatal("TokenAttributes(99): expected error")
	}
}

func TestRetranscriptionInvalidates(t *testing.T) {
	t.Parallel()

	s, _ := newSession(t)

	if _, ok := s.Select(selection.Event{A: anchorFor(t, s, 0), B: anchorFor(t, s, 2)}); !ok {
		t.Fatal("Select failed")
	}
	if _, ok, _ := s.HandleTimeUpdate(playback.TimeUpdate{Time: 1.0, Playing: true}); !ok {
		t.Fatal("expected an active token before the swap")
	}
	oldIdx := s.Index()

	s.SetTranscript(&transcript.Transcript{
		FullText: "Completely new words here",
		Words: []transcript.WordToken{
			{Text: "Completely", Start: 0.1, End: 0.5},
			{Text: "new", Start: 0.5, End: 0.8},
			{Text: "words", Start: 0.8, End: 1.1},
			{Text: "here", Start: 1.1, End: 1.4},
		},
	})

	if s.Index() == oldIdx {
		t.Fatal("index identity preserved across retranscription")
	}
	if _, ok := s.Selection(); ok {
		t.Fatal("selection survived retranscription")
	}
	// Cursor restarts inactive; a paused-at-zero update keeps it that way.
	if _, ok, _ := s.HandleTimeUpdate(playback.TimeUpdate{Time: 0, Playing: false}); ok {
		t.Fatal("cursor active immediately after retranscription")
	}
}

func TestTranscriptWithoutWordsDisablesHighlighting(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{duration: 10}
	s, err := view.NewSession(ft, annotation.NewMemStore())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	s.SetTranscript(&transcript.Transcript{FullText: "segments only"})

	if s.Index() != nil {
		t.Fatal("expected nil index for a transcript without word timestamps")
	}
	if _, ok, _ := s.HandleTimeUpdate(playback.TimeUpdate{Time: 3, Playing: true}); ok {
		t.Fatal("cursor activated without word timestamps")
	}
	if _, err := s.TokenAttributes(context.Background(), 0); err == nil {
		t.Fatal("TokenAttributes: expected error without a transcript index")
	}
}

func activeViews(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != "scriberr.active_views" {
				continue
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok || len(sum.DataPoints) == 0 {
				t.Fatalf("unexpected data shape: %+v", met.Data)
			}
			return sum.DataPoints[0].Value
		}
	}
	t.Fatal("active views gauge not found")
	return 0
}

func TestSessionCountsAgainstActiveViews(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	s, err := view.NewSession(&fakeTransport{duration: 10}, annotation.NewMemStore(), view.WithMetrics(m))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if got := activeViews(t, reader); got != 1 {
		t.Fatalf("active views after open = %d, want 1", got)
	}

	s.Close()
	s.Close() // repeated close must not drive the gauge negative
	if got := activeViews(t, reader); got != 0 {
		t.Fatalf("active views after close = %d, want 0", got)
	}
}

func TestSeekToWord(t *testing.T) {
	t.Parallel()

	t.Run("seeks to the token start ratio", func(t *testing.T) {
		t.Parallel()
		s, ft := newSession(t)
		s.SeekToWord(selection.Anchor{Index: 2, Start: 1.5, End: 2.0})
		if len(ft.seeks) != 1 || ft.seeks[0] != 0.15 {
			t.Fatalf("seeks = %v", ft.seeks)
		}
	})

	t.Run("first word at time zero rewinds to the start", func(t *testing.T) {
		t.Parallel()
		s, ft := newSession(t)
		s.SeekToWord(selection.Anchor{Index: 0, Start: 0, End: 0.4})
		if len(ft.seeks) != 1 || ft.seeks[0] != 0 {
			t.Fatalf("seeks = %v, want [0]", ft.seeks)
		}
	})

	t.Run("unknown duration leaves the playhead put", func(t *testing.T) {
		t.Parallel()
		ft := &fakeTransport{duration: 0}
		s, err := view.NewSession(ft, annotation.NewMemStore())
		if err != nil {
			t.Fatalf("NewSession: %v", err)
		}
		s.SetTranscript(testTranscript())
		s.SeekToWord(selection.Anchor{Index: 0, Start: 0.5, End: 0.9})
		if len(ft.seeks) != 0 {
			t.Fatalf("seeks = %v, want none", ft.seeks)
		}
	})
}
