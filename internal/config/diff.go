package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; anything requiring
// a provider or server restart is deliberately ignored.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// SplitterChanged reports a change to the reasoning-splitter thresholds
	// or opener list. Existing conversations pick the new values up on their
	// next turn.
	SplitterChanged bool

	// ChatChanged reports a change to temperature, system prompt, or the
	// auto-title trigger.
	ChatChanged bool
}

// Changed reports whether any hot-reloadable field differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.SplitterChanged || d.ChatChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Splitter.MinThinkingLength != new.Splitter.MinThinkingLength ||
		!slices.Equal(old.Splitter.Openers, new.Splitter.Openers) {
		d.SplitterChanged = true
	}

	if old.Chat != new.Chat {
		d.ChatChanged = true
	}

	return d
}
