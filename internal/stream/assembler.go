// Package stream assembles incrementally delivered response text and
// separates an optional reasoning preamble from the user-facing answer.
//
// Chunks arrive from a long-lived response body in arbitrary, non-aligned
// byte lengths, so a multi-byte UTF-8 character can be split across two
// chunks. The [Assembler] carries the undecodable tail bytes of each chunk
// forward into the next one instead of emitting replacement characters, and
// flushes the carry once more when the source signals completion.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"
)

// ErrNoContent is returned by [Assembler.Finish] when the end-to-end read
// yielded zero decoded characters. Distinct from a transport failure: the
// stream completed cleanly but the model produced nothing.
var ErrNoContent = errors.New("stream: no content returned")

// readBufferSize is the chunk size used by [Assembler.ReadFrom].
const readBufferSize = 4096

// Assembler incrementally decodes a chunked text stream. The decoded text is
// append-only and never rewound; a retained carry of 0–3 bytes holds any
// incomplete trailing UTF-8 sequence between chunks.
//
// All methods are safe for concurrent use, though chunks must be appended in
// arrival order by a single producer.
type Assembler struct {
	mu    sync.Mutex
	text  strings.Builder
	carry []byte
	done  bool
}

// NewAssembler returns an empty [Assembler].
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Append decodes the next chunk and returns the full text assembled so far.
// Bytes that end the chunk mid-character are held back and prepended to the
// next chunk. Appending after Finish is a silent no-op.
func (a *Assembler) Append(chunk []byte) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.done || len(chunk) == 0 {
		return a.text.String()
	}

	buf := chunk
	if len(a.carry) > 0 {
		buf = append(a.carry, chunk...)
		a.carry = nil
	}

	complete := completePrefix(buf)
	a.writeDecoded(buf[:complete])
	if complete < len(buf) {
		// Copy: buf may alias the caller's chunk slice.
		a.carry = append([]byte(nil), buf[complete:]...)
	}
	return a.text.String()
}

// Finish marks the stream complete, flushes any residual carried bytes, and
// returns the final text. Residual bytes that never became a valid character
// are decoded as-is at this point (surfacing replacement characters rather
// than dropping input). Returns [ErrNoContent] when the whole stream decoded
// to zero characters.
func (a *Assembler) Finish() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.done {
		a.done = true
		if len(a.carry) > 0 {
			a.writeDecoded(a.carry)
			a.carry = nil
		}
	}

	text := a.text.String()
	if len(text) == 0 {
		return "", ErrNoContent
	}
	return text, nil
}

// Text returns the text assembled so far.
func (a *Assembler) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.text.String()
}

// Done reports whether Finish has been called.
func (a *Assembler) Done() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.done
}

// ReadFrom consumes r chunk by chunk until EOF, invoking onGrow (if non-nil)
// with the full assembled text after every chunk. It finishes the assembler
// on EOF and returns the final text.
//
// Cancellation: ctx is checked between reads; when the view is closed or
// navigated away the caller cancels ctx, the in-progress read stops, and the
// partial state is discarded without error beyond ctx.Err(). Each read runs
// in its own step so the event loop is never monopolized between chunks.
func (a *Assembler) ReadFrom(ctx context.Context, r io.Reader, onGrow func(text string)) (string, error) {
	buf := make([]byte, readBufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, err := r.Read(buf)
		if n > 0 {
			text := a.Append(buf[:n])
			if onGrow != nil {
				onGrow(text)
			}
		}
		if errors.Is(err, io.EOF) {
			return a.Finish()
		}
		if err != nil {
			return "", fmt.Errorf("stream: read: %w", err)
		}
	}
}

// writeDecoded appends b to the assembled text, replacing any invalid UTF-8
// sequence with U+FFFD. Caller must hold the lock. The valid-input fast path
// avoids an allocation per chunk.
func (a *Assembler) writeDecoded(b []byte) {
	if utf8.Valid(b) {
		a.text.Write(b)
		return
	}
	a.text.WriteString(strings.ToValidUTF8(string(b), "�"))
}

// completePrefix returns the length of the longest prefix of buf that ends
// on a UTF-8 character boundary. Only a truly incomplete trailing sequence is
// held back; invalid bytes elsewhere stay in the prefix and are replaced
// during decoding.
func completePrefix(buf []byte) int {
	n := len(buf)
	// An incomplete sequence is at most utf8.UTFMax-1 bytes.
	lower := n - utf8.UTFMax + 1
	if lower < 0 {
		lower = 0
	}
	for start := n - 1; start >= lower; start-- {
		b := buf[start]
		if b < utf8.RuneSelf {
			// ASCII tail byte: everything is complete.
			return n
		}
		if !utf8.RuneStart(b) {
			continue
		}
		// Found the start of the trailing sequence; hold it back only if it
		// is incomplete.
		if utf8.FullRune(buf[start:]) {
			return n
		}
		return start
	}
	return n
}
