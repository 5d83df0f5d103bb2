// Package playback derives the "currently spoken word" from a live audio
// player position and decides when the viewer should scroll it into view.
//
// The audio backend itself is a black box. It is owned by exactly one view
// and reached only through the narrow [Transport] contract; everything else
// in the engine consumes read projections (current time, play state) via
// [TimeUpdate] events, never the transport handle.
package playback

// maxSeekRatio keeps seeks strictly short of end-of-media. Some playback
// backends treat a seek to ratio 1.0 as "finished" and fire their completion
// callback instead of resuming.
const maxSeekRatio = 0.999

// Transport is the control surface of the audio playback backend.
type Transport interface {
	// Duration returns the media length in seconds, or 0 when unknown.
	Duration() float64

	// SeekTo moves the playhead to ratio (0..1) of the media duration.
	SeekTo(ratio float64)

	// PlayPause toggles between playing and paused.
	PlayPause()
}

// TimeUpdate is one playback progress notification: the read projection of
// the transport state delivered to cursor consumers.
type TimeUpdate struct {
	// Time is the current playhead position in seconds. Monotonic while
	// playing; may jump on seek.
	Time float64

	// Playing reports whether the transport is currently playing.
	Playing bool
}

// SeekRatio converts an absolute time in seconds to the seek ratio for
// [Transport.SeekTo], clamped to [0, maxSeekRatio]. ok is false when the
// media duration is unknown; callers degrade to leaving the playhead put.
// A known duration always yields a usable ratio — time zero seeks to the
// start of the media.
func SeekRatio(t, duration float64) (ratio float64, ok bool) {
	if duration <= 0 {
		return 0, false
	}
	if t <= 0 {
		return 0, true
	}
	ratio = t / duration
	if ratio > maxSeekRatio {
		ratio = maxSeekRatio
	}
	return ratio, true
}
