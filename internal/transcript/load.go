package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrEmptyTranscript is returned by [Parse] when the document carries no
// text, no segments, and no word tokens.
var ErrEmptyTranscript = errors.New("transcript is empty")

// document is the wire shape produced by the transcription backend
// (WhisperX-style verbose JSON). Both segments and word_segments are
// optional; see [Transcript] for the degradation rules.
type document struct {
	Text     string       `json:"text"`
	Segments []docSegment `json:"segments"`
	Words    []docWord    `json:"word_segments"`
}

type docSegment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker"`
}

type docWord struct {
	Word    string  `json:"word"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
	Score   float64 `json:"score"`
}

// Parse decodes a transcription result from its JSON wire form.
//
// Malformed or missing word timing data degrades rather than fails: a
// document with segments but no word_segments yields a [Transcript] with no
// Words (no highlighting, no selection); a document with word_segments but no
// segments yields a single synthesized pseudo-segment spanning the whole
// recording. Only a document with no usable content at all is an error.
func Parse(data []byte) (*Transcript, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("transcript: decode: %w", err)
	}
	return fromDocument(doc)
}

// FromReader decodes a transcription result from r. See [Parse].
func FromReader(r io.Reader) (*Transcript, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("transcript: decode: %w", err)
	}
	return fromDocument(doc)
}

func fromDocument(doc document) (*Transcript, error) {
	t := &Transcript{FullText: strings.TrimSpace(doc.Text)}

	for _, s := range doc.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		t.Segments = append(t.Segments, Segment{
			Start:     s.Start,
			End:       s.End,
			Text:      text,
			SpeakerID: s.Speaker,
		})
	}

	for _, w := range doc.Words {
		text := strings.TrimSpace(w.Word)
		if text == "" {
			continue
		}
		t.Words = append(t.Words, WordToken{
			Index:     len(t.Words),
			Text:      text,
			Start:     w.Start,
			End:       w.End,
			SpeakerID: w.Speaker,
		})
	}

	if t.FullText == "" {
		t.FullText = synthesizeText(t)
	}
	if t.FullText == "" {
		return nil, ErrEmptyTranscript
	}

	// Words without segments: synthesize one pseudo-segment spanning the
	// whole text so segment-level rendering still works.
	if len(t.Segments) == 0 && len(t.Words) > 0 {
		t.Segments = []Segment{{
			Start: t.Words[0].Start,
			End:   t.Words[len(t.Words)-1].End,
			Text:  t.FullText,
		}}
	}

	return t, nil
}

// synthesizeText rebuilds the full text from segments or words when the
// backend omitted the top-level text field.
func synthesizeText(t *Transcript) string {
	if len(t.Segments) > 0 {
		parts := make([]string, len(t.Segments))
		for i, s := range t.Segments {
			parts[i] = s.Text
		}
		return strings.Join(parts, " ")
	}
	if len(t.Words) > 0 {
		parts := make([]string, len(t.Words))
		for i, w := range t.Words {
			parts[i] = w.Text
		}
		return strings.Join(parts, " ")
	}
	return ""
}
