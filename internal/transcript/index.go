package transcript

import (
	"fmt"
	"sort"
	"strings"
)

// Index is an immutable, ordered lookup structure over a transcript's word
// tokens. It answers "which token is active at time T" and "which tokens fall
// inside time window [a, b]".
//
// Index is read-only after construction and safe for concurrent use by any
// number of readers without synchronisation.
type Index struct {
	words []WordToken

	// maxEnd[i] is the maximum End over words[0..i]. Token intervals can
	// overlap slightly under alignment noise, so containment lookups need to
	// know whether any already-started token still covers a given time.
	maxEnd []float64
}

// NewIndex builds an [Index] from the given tokens. The tokens are copied and
// re-numbered with dense 0-based indices in slice order; the caller's slice is
// not retained.
func NewIndex(words []WordToken) *Index {
	copied := make([]WordToken, len(words))
	copy(copied, words)
	maxEnd := make([]float64, len(copied))
	for i := range copied {
		copied[i].Index = i
		maxEnd[i] = copied[i].End
		if i > 0 && maxEnd[i-1] > maxEnd[i] {
			maxEnd[i] = maxEnd[i-1]
		}
	}
	return &Index{words: copied, maxEnd: maxEnd}
}

// Len returns the number of word tokens in the index.
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return len(x.words)
}

// Word returns the token at position i. ok is false when i is out of range or
// the index is empty.
func (x *Index) Word(i int) (w WordToken, ok bool) {
	if x == nil || i < 0 || i >= len(x.words) {
		return WordToken{}, false
	}
	return x.words[i], true
}

// Words returns a copy of all tokens in index order.
func (x *Index) Words() []WordToken {
	if x == nil {
		return nil
	}
	out := make([]WordToken, len(x.words))
	copy(out, x.words)
	return out
}

// ActiveTokenAt returns the index of the token being spoken at time t
// (seconds). ok is false only when the index holds no tokens.
//
// Lookup is two-phase. Exact containment wins: a token whose [Start, End]
// interval covers t is returned directly. Real transcripts carry silence gaps
// between words where no interval covers t; for those times the most recently
// started token is returned instead, clamped to index 0 for times before the
// first word. Perceptually the gap still "belongs" to the last word spoken.
func (x *Index) ActiveTokenAt(t float64) (idx int, ok bool) {
	if x == nil || len(x.words) == 0 {
		return 0, false
	}

	// First token whose Start is strictly after t. Start values are
	// non-decreasing, so everything before position i has started by t.
	i := sort.Search(len(x.words), func(j int) bool {
		return x.words[j].Start > t
	})

	if i == 0 {
		// t precedes the first word.
		return 0, true
	}

	// Exact containment wins over the gap fallback. Every token before i has
	// Start <= t, so a containing token exists iff some prefix End reaches t;
	// the walk almost always stops at the first probe.
	if x.maxEnd[i-1] >= t {
		for j := i - 1; j >= 0; j-- {
			if x.words[j].End >= t {
				return j, true
			}
		}
	}

	// Gap between words: latest-started token.
	return i - 1, true
}

// TokensInWindow returns all tokens fully contained in the time window
// [start, end], i.e. tokens with Start >= start and End <= end. It is used to
// render a segment's words when segments and word tokens coexist; a token
// straddling a segment boundary is excluded from both segments' word-level
// rendering but remains present in the flat view.
func (x *Index) TokensInWindow(start, end float64) []WordToken {
	if x == nil || len(x.words) == 0 {
		return nil
	}

	// First token with Start >= start.
	i := sort.Search(len(x.words), func(j int) bool {
		return x.words[j].Start >= start
	})

	var out []WordToken
	for ; i < len(x.words) && x.words[i].Start <= end; i++ {
		if x.words[i].End <= end {
			out = append(out, x.words[i])
		}
	}
	return out
}

// Range returns the tokens from start through end inclusive.
// Returns an error when the bounds are out of range or inverted.
func (x *Index) Range(start, end int) ([]WordToken, error) {
	if x == nil || len(x.words) == 0 {
		return nil, fmt.Errorf("transcript: range [%d, %d] on empty index", start, end)
	}
	if start < 0 || end >= len(x.words) || start > end {
		return nil, fmt.Errorf("transcript: range [%d, %d] out of bounds for %d tokens", start, end, len(x.words))
	}
	out := make([]WordToken, end-start+1)
	copy(out, x.words[start:end+1])
	return out, nil
}

// Quote returns the space-joined text of the tokens from start through end
// inclusive — the literal string a user selected.
func (x *Index) Quote(start, end int) (string, error) {
	words, err := x.Range(start, end)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " "), nil
}
