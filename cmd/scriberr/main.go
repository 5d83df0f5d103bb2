// Command scriberr serves a transcribed recording: the word-level transcript,
// its annotations, and LLM chat/summary generation over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/rishikanthc/Scriberr-sub000/internal/annotation"
	"github.com/rishikanthc/Scriberr-sub000/internal/api"
	"github.com/rishikanthc/Scriberr-sub000/internal/chat"
	"github.com/rishikanthc/Scriberr-sub000/internal/config"
	"github.com/rishikanthc/Scriberr-sub000/internal/health"
	"github.com/rishikanthc/Scriberr-sub000/internal/observe"
	"github.com/rishikanthc/Scriberr-sub000/internal/stream"
	"github.com/rishikanthc/Scriberr-sub000/internal/transcript"
	"github.com/rishikanthc/Scriberr-sub000/pkg/provider/llm"
	"github.com/rishikanthc/Scriberr-sub000/pkg/provider/llm/anyllm"
	"github.com/rishikanthc/Scriberr-sub000/pkg/provider/llm/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	transcriptPath := flag.String("transcript", "transcript.json", "path to the transcription JSON file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "scriberr: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "scriberr: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("scriberr starting",
		"config", *configPath,
		"transcript", *transcriptPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "scriberr"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Transcript ────────────────────────────────────────────────────────────
	doc, err := loadTranscript(*transcriptPath)
	if err != nil {
		slog.Error("failed to load transcript", "path", *transcriptPath, "err", err)
		return 1
	}
	slog.Info("transcript loaded",
		"segments", len(doc.Segments),
		"words", len(doc.Words),
		"highlighting", doc.HasWords(),
	)

	// ── Note store ────────────────────────────────────────────────────────────
	var checkers []health.Checker
	var notes annotation.Store
	if dsn := cfg.Notes.PostgresDSN; dsn != "" {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			slog.Error("failed to connect to postgres", "err", err)
			return 1
		}
		defer pool.Close()

		pg := annotation.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			slog.Error("notes schema migration failed", "err", err)
			return 1
		}
		notes = pg
		checkers = append(checkers, health.PingChecker("database", pool))
		slog.Info("notes store ready", "backend", "postgres")
	} else {
		notes = annotation.NewMemStore()
		slog.Info("notes store ready", "backend", "memory")
	}

	// ── Chat service (optional) ───────────────────────────────────────────────
	var chatSvc *chat.Service
	if cfg.LLM.Name != "" {
		reg := config.NewRegistry()
		registerBuiltinProviders(reg)

		provider, err := reg.CreateLLM(cfg.LLM)
		if err != nil {
			slog.Error("failed to create llm provider", "name", cfg.LLM.Name, "err", err)
			return 1
		}
		slog.Info("provider created", "kind", "llm", "name", cfg.LLM.Name, "model", cfg.LLM.Model)

		chatOpts := []chat.Option{
			chat.WithSplitter(stream.NewSplitter(cfg.Splitter)),
			chat.WithTemperature(cfg.Chat.Temperature),
			chat.WithTitlePolicy(chat.AfterExchanges(cfg.Chat.TitleAfterExchanges)),
			chat.WithProviderName(cfg.LLM.Name),
		}
		if cfg.Chat.SystemPrompt != "" {
			chatOpts = append(chatOpts, chat.WithSystemPrompt(cfg.Chat.SystemPrompt))
		}
		chatSvc, err = chat.NewService(provider, chatOpts...)
		if err != nil {
			slog.Error("failed to create chat service", "err", err)
			return 1
		}
	} else {
		slog.Warn("no llm provider configured; chat and summary endpoints disabled")
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	apiOpts := []api.Option{api.WithLogger(logger)}
	if chatSvc != nil {
		apiOpts = append(apiOpts, api.WithChat(chatSvc))
	}
	apiServer, err := api.NewServer(doc, notes, apiOpts...)
	if err != nil {
		slog.Error("failed to create api server", "err", err)
		return 1
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer.Handler())
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(checkers...).Register(mux)

	printStartupSummary(cfg, doc)

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server ready — press Ctrl+C to shut down", "addr", addr)
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			err = srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping…")
		shCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// loadTranscript reads and parses the transcription JSON document.
func loadTranscript(path string) (*transcript.Transcript, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return transcript.FromReader(f)
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in LLM provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// openai uses the dedicated SDK-backed provider.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	// The remaining backends share the any-llm pattern: optional APIKey +
	// optional BaseURL.
	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, doc *transcript.Transcript) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        Scriberr — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	llmValue := "(not configured)"
	if cfg.LLM.Name != "" {
		llmValue = cfg.LLM.Name + " / " + cfg.LLM.Model
	}
	if len(llmValue) > 19 {
		llmValue = llmValue[:16] + "…"
	}
	fmt.Printf("║  LLM             : %-19s ║\n", llmValue)
	notesBackend := "memory"
	if cfg.Notes.PostgresDSN != "" {
		notesBackend = "postgres"
	}
	fmt.Printf("║  Notes store     : %-19s ║\n", notesBackend)
	fmt.Printf("║  Words indexed   : %-19d ║\n", len(doc.Words))
	fmt.Printf("║  Segments        : %-19d ║\n", len(doc.Segments))
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
