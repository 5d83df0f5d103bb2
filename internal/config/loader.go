package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known LLM provider names.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = []string{
	"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when tls is set"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when tls is set"))
		}
	}

	// LLM provider
	if cfg.LLM.Name != "" {
		if !slices.Contains(ValidProviderNames, cfg.LLM.Name) {
			slog.Warn("unknown provider name — may be a typo or third-party provider",
				"name", cfg.LLM.Name,
				"known", ValidProviderNames,
			)
		}
		if cfg.LLM.Model == "" {
			errs = append(errs, fmt.Errorf("llm.model is required when llm.name is set"))
		}
	} else {
		slog.Warn("no LLM provider configured; chat and summaries will be unavailable")
	}

	// Chat
	if cfg.Chat.Temperature < 0 || cfg.Chat.Temperature > 2.0 {
		errs = append(errs, fmt.Errorf("chat.temperature %.2f is out of range [0.0, 2.0]", cfg.Chat.Temperature))
	}
	if cfg.Chat.TitleAfterExchanges < 0 {
		errs = append(errs, fmt.Errorf("chat.title_after_exchanges %d must not be negative", cfg.Chat.TitleAfterExchanges))
	}

	// Splitter
	if cfg.Splitter.MinThinkingLength < 0 {
		errs = append(errs, fmt.Errorf("splitter.min_thinking_length %d must not be negative", cfg.Splitter.MinThinkingLength))
	}

	// Notes availability
	if cfg.Notes.PostgresDSN == "" {
		slog.Warn("notes.postgres_dsn is empty; notes are kept in memory and lost on restart")
	}

	return errors.Join(errs...)
}
