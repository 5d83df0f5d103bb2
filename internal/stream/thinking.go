package stream

import (
	"regexp"
	"strings"
)

// defaultMinThinkingLength is the minimum captured span, in bytes, for the
// heuristic prefix rule to accept a match. Short incidental matches are
// ignored so ordinary prose that happens to open deliberatively is not
// misclassified.
const defaultMinThinkingLength = 50

// defaultOpeners are prefix phrases typical of reasoning-model output. Both
// this list and the length threshold are heuristic tuning values inherited
// from observed model behaviour, not a grammar — override them via
// [SplitterConfig] when a deployment's models phrase reasoning differently.
var defaultOpeners = []string{
	"Okay",
	"Alright",
	"Hmm",
	"Let me",
	"Let's",
	"First",
	"So",
	"I need",
	"I should",
	"I'll",
	"The user",
	"The question",
	"Looking at",
	"We need",
}

// SplitResult is the derived classification of assembled content. It is
// recomputed on every content change, never stored.
type SplitResult struct {
	// Thinking is the extracted reasoning preamble, trimmed. Empty when
	// HasThinking is false.
	Thinking string

	// HasThinking reports whether a reasoning block was identified.
	HasThinking bool

	// Response is the user-facing answer with any reasoning block removed.
	Response string

	// ThinkingStreaming reports that the stream is still open and everything
	// seen so far is being presented live as reasoning, before any rule has
	// fired conclusively.
	ThinkingStreaming bool
}

// SplitterConfig tunes the heuristic rules of a [Splitter]. Zero values use
// the defaults.
type SplitterConfig struct {
	// MinThinkingLength is the minimum byte length a heuristically captured
	// reasoning span must exceed to be accepted. Default 50.
	MinThinkingLength int `yaml:"min_thinking_length"`

	// Openers overrides the deliberative opener phrase list.
	Openers []string `yaml:"openers"`
}

// Splitter separates an optional reasoning preamble from the user-facing
// answer. Detection priority, first match wins:
//
//  1. An explicit tag-delimited block (<think>…</think> or
//     <thinking>…</thinking>) anywhere in the content.
//  2. A heuristic prefix: a paragraph starting with a deliberative opener,
//     ended by a blank line before a normal sentence opener, accepted only
//     above the configured minimum length.
//  3. No thinking block.
//
// While the stream is still open, an unclosed tag or an opener-shaped prefix
// with no paragraph boundary yet classifies the entire buffer as live
// reasoning ([SplitResult.ThinkingStreaming]) so the user sees continuous
// feedback instead of a blank pane. Once response text appears the final
// rules take over.
//
// Splitter is read-only after construction and safe for concurrent use.
// Split is a pure function of its input: re-running it on the same completed
// content yields the same result.
type Splitter struct {
	minLen   int
	tagRe    *regexp.Regexp
	openRe   *regexp.Regexp
	prefixRe *regexp.Regexp
	openerRe *regexp.Regexp
}

// NewSplitter builds a [Splitter] from cfg.
func NewSplitter(cfg SplitterConfig) *Splitter {
	minLen := cfg.MinThinkingLength
	if minLen <= 0 {
		minLen = defaultMinThinkingLength
	}
	openers := cfg.Openers
	if len(openers) == 0 {
		openers = defaultOpeners
	}

	quoted := make([]string, len(openers))
	for i, o := range openers {
		quoted[i] = regexp.QuoteMeta(o)
	}
	alternation := strings.Join(quoted, "|")

	return &Splitter{
		minLen: minLen,
		tagRe:  regexp.MustCompile(`(?s)<think(?:ing)?>(.*?)</think(?:ing)?>`),
		openRe: regexp.MustCompile(`(?s)^\s*<think(?:ing)?>(.*)$`),
		// Deliberative paragraph up to the first blank line that precedes a
		// sentence starting with a capital letter (which covers discourse
		// markers like "This", "The", "Here", "Based", "In", "To").
		prefixRe: regexp.MustCompile(`(?s)^\s*((?:` + alternation + `)\b.*?)\n[ \t]*\n\s*([A-Z].*)$`),
		openerRe: regexp.MustCompile(`^\s*(?:` + alternation + `)\b`),
	}
}

// Split classifies content. streamOpen must be true while the source stream
// has not yet signalled completion; it enables the live-reasoning
// presentation for content that has no conclusive boundary yet.
func (s *Splitter) Split(content string, streamOpen bool) SplitResult {
	// Rule 1: explicit tag-delimited block.
	if m := s.tagRe.FindStringSubmatchIndex(content); m != nil {
		thinking := strings.TrimSpace(content[m[2]:m[3]])
		response := strings.TrimSpace(content[:m[0]] + content[m[1]:])
		return SplitResult{
			Thinking:    thinking,
			HasThinking: thinking != "",
			Response:    response,
		}
	}

	// Unclosed tag while streaming: everything after the marker is live
	// reasoning.
	if streamOpen {
		if m := s.openRe.FindStringSubmatch(content); m != nil {
			return SplitResult{
				Thinking:          strings.TrimSpace(m[1]),
				HasThinking:       true,
				ThinkingStreaming: true,
			}
		}
	}

	// Rule 2: heuristic deliberative prefix with a paragraph boundary.
	if m := s.prefixRe.FindStringSubmatch(content); m != nil {
		if len(m[1]) >= s.minLen {
			return SplitResult{
				Thinking:    strings.TrimSpace(m[1]),
				HasThinking: true,
				Response:    strings.TrimSpace(m[2]),
			}
		}
	}

	// Streaming special case: an opener-shaped buffer with no boundary yet
	// is shown live as reasoning in full.
	if streamOpen && !strings.Contains(content, "\n\n") && s.openerRe.MatchString(content) {
		return SplitResult{
			Thinking:          strings.TrimSpace(content),
			HasThinking:       true,
			ThinkingStreaming: true,
		}
	}

	// Rule 3: no thinking block.
	return SplitResult{Response: content}
}
