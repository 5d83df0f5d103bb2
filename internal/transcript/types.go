// Package transcript provides the immutable data model for a time-aligned
// transcript: speaker segments, per-word tokens, and the [Index] that maps a
// playback timestamp to the word being spoken.
//
// A transcript is built once per load and never mutated. Re-transcribing a
// recording produces a brand-new [Transcript] and [Index]; word indices are
// only meaningful relative to the Index instance that produced them, so
// callers holding resolved ranges against an old Index must discard them when
// the transcript changes identity.
package transcript

// WordToken is a single time-stamped word. Tokens are densely indexed from 0
// in document order; Start values are non-decreasing across the sequence and
// End >= Start for every token.
type WordToken struct {
	// Index is the token's 0-based position in the flat word sequence.
	Index int `json:"index"`

	// Text is the word as written in the transcript.
	Text string `json:"text"`

	// Start is the playback offset in seconds at which the word begins.
	Start float64 `json:"start"`

	// End is the playback offset in seconds at which the word ends.
	End float64 `json:"end"`

	// SpeakerID attributes the word to a diarized speaker. Empty when the
	// transcription backend did not diarize.
	SpeakerID string `json:"speaker_id,omitempty"`
}

// Segment is a larger time-stamped span of transcript text, optionally
// attributed to a speaker. Segments may exist without word-level tokens
// underneath them (plain segment rendering) and vice versa.
type Segment struct {
	// Start is the segment's start offset in seconds.
	Start float64 `json:"start"`

	// End is the segment's end offset in seconds.
	End float64 `json:"end"`

	// Text is the segment's transcript text.
	Text string `json:"text"`

	// SpeakerID attributes the segment to a diarized speaker, if known.
	SpeakerID string `json:"speaker_id,omitempty"`
}

// Transcript is the full result of one transcription run.
//
// Either Segments or Words may be empty:
//
//   - Segments without Words: the viewer renders segment text with no word
//     highlighting and no selection-to-token mapping.
//   - Words without Segments: [Parse] synthesizes a single pseudo-segment
//     spanning the whole text so segment-level rendering still works.
type Transcript struct {
	// FullText is the complete transcript text.
	FullText string `json:"text"`

	// Segments is the ordered list of speaker segments.
	Segments []Segment `json:"segments,omitempty"`

	// Words is the ordered flat list of word tokens.
	Words []WordToken `json:"words,omitempty"`
}

// HasWords reports whether word-level tokens are available. When false,
// highlighting, selection, and annotation features are unavailable and the
// viewer degrades to segment or plain-text rendering.
func (t *Transcript) HasWords() bool {
	return t != nil && len(t.Words) > 0
}
