package transcript

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Match is one hit returned by [Searcher.Search]: a word token whose text is
// phonetically or approximately similar to the query, with its similarity
// score. The token's Start lets the caller jump playback to the hit.
type Match struct {
	Token WordToken

	// Score is the Jaro-Winkler similarity to the query, in [0.0, 1.0].
	Score float64
}

// SearcherOption is a functional option for configuring a [Searcher].
type SearcherOption func(*Searcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// Double-Metaphone-matched word to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) SearcherOption {
	return func(s *Searcher) {
		s.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required for a word
// with no phonetic code overlap. Default: 0.85.
func WithFuzzyThreshold(threshold float64) SearcherOption {
	return func(s *Searcher) {
		s.fuzzyThreshold = threshold
	}
}

// Searcher finds word tokens that sound like or closely resemble a query
// term, so a viewer can jump playback to occurrences of a word even when the
// transcription spelled it differently (proper nouns especially).
//
// Candidate filtering uses Double Metaphone codes; candidates are then ranked
// by Jaro-Winkler similarity on the original strings, case-insensitive.
// Words without phonetic code overlap still match when their string
// similarity clears the (higher) fuzzy threshold.
//
// Searcher is read-only after construction and safe for concurrent use.
type Searcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// NewSearcher returns a [Searcher] configured with the supplied options.
func NewSearcher(opts ...SearcherOption) *Searcher {
	s := &Searcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Search returns all tokens in idx matching query, in token order. An exact
// case-insensitive match scores 1.0. The query should be a single word;
// leading/trailing space is ignored and an empty query matches nothing.
func (s *Searcher) Search(idx *Index, query string) []Match {
	query = strings.TrimSpace(query)
	if idx == nil || idx.Len() == 0 || query == "" {
		return nil
	}

	queryLower := strings.ToLower(query)
	qPrimary, qSecondary := matchr.DoubleMetaphone(queryLower)

	var out []Match
	for _, w := range idx.words {
		wordLower := strings.ToLower(strings.Trim(w.Text, ".,!?;:\"'"))
		if wordLower == "" {
			continue
		}

		if wordLower == queryLower {
			out = append(out, Match{Token: w, Score: 1.0})
			continue
		}

		score := matchr.JaroWinkler(queryLower, wordLower, true)
		threshold := s.fuzzyThreshold
		if phoneticOverlap(qPrimary, qSecondary, wordLower) {
			threshold = s.phoneticThreshold
		}
		if score >= threshold {
			out = append(out, Match{Token: w, Score: score})
		}
	}
	return out
}

// phoneticOverlap reports whether any Double Metaphone code of word matches a
// code of the query.
func phoneticOverlap(qPrimary, qSecondary, word string) bool {
	wPrimary, wSecondary := matchr.DoubleMetaphone(word)
	if wPrimary == "" && wSecondary == "" {
		return false
	}
	for _, q := range []string{qPrimary, qSecondary} {
		if q == "" {
			continue
		}
		if q == wPrimary || q == wSecondary {
			return true
		}
	}
	return false
}
