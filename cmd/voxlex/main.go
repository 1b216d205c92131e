// Command voxlex is the main entry point for the voxlex streaming
// transcription server.
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

	"golang.org/x/sync/errgroup"

	"github.com/jhalloran/voxlex/internal/config"
	"github.com/jhalloran/voxlex/internal/observe"
	"github.com/jhalloran/voxlex/internal/recognizer"
	"github.com/jhalloran/voxlex/internal/server"
	"github.com/jhalloran/voxlex/internal/vocab"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxlex: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxlex: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voxlex starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "voxlex",
	})
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

	// ── Recognizer engine ─────────────────────────────────────────────────────
	// A missing model is a startup configuration error: fatal.
	engine, err := buildEngine(cfg.Recognizer)
	if err != nil {
		slog.Error("failed to load recognizer model", "err", err)
		return 1
	}
	defer engine.Close()

	// ── Vocabulary store + refresh scheduler ──────────────────────────────────
	store := vocab.New(
		vocab.WithFetchers(buildFetchers(cfg.Vocabulary)...),
	)
	if added := store.AddTerms(cfg.Vocabulary.CustomTerms...); added > 0 {
		slog.Info("seeded custom vocabulary terms", "added", added)
	}
	scheduler := vocab.NewScheduler(store, cfg.Vocabulary.SchedulerTick(), cfg.Vocabulary.RefreshInterval())
	reg, err := observe.DefaultMetrics().ObserveVocabularySize(func() int64 { return int64(store.Len()) })
	if err != nil {
		slog.Error("failed to register vocabulary size gauge", "err", err)
		return 1
	}
	defer reg.Unregister()

	// ── Server ────────────────────────────────────────────────────────────────
	srv := server.New(cfg.Server, cfg.Correction, engine, store, scheduler)

	printStartupSummary(cfg, engine, store)
	slog.Info("server ready — press Ctrl+C to shut down")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return scheduler.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// ── Engine wiring ─────────────────────────────────────────────────────────────

// buildEngine resolves the model path by preference order and constructs the
// configured STT backend.
func buildEngine(rc config.RecognizerConfig) (recognizer.Engine, error) {
	path, modelType, err := recognizer.ResolveModelPath(rc.CustomModelPath, rc.BaseModelPaths)
	if err != nil {
		return nil, err
	}

	switch rc.Engine {
	case config.EngineWhisper:
		opts := []recognizer.WhisperOption{
			recognizer.WithWhisperSampleRate(rc.SampleRate),
		}
		if rc.Language != "" {
			opts = append(opts, recognizer.WithWhisperLanguage(rc.Language))
		}
		if rc.SilenceThresholdMs > 0 {
			opts = append(opts, recognizer.WithWhisperSilenceThresholdMs(rc.SilenceThresholdMs))
		}
		if rc.MaxBufferDurationMs > 0 {
			opts = append(opts, recognizer.WithWhisperMaxBufferDurationMs(rc.MaxBufferDurationMs))
		}
		return recognizer.NewWhisper(path, modelType, opts...)

	default:
		return recognizer.NewVosk(path, modelType,
			recognizer.WithVoskSampleRate(rc.SampleRate))
	}
}

// buildFetchers instantiates the enabled term sources with the configured
// HTTP timeout.
func buildFetchers(vc config.VocabularyConfig) []vocab.SourceFetcher {
	client := &http.Client{Timeout: vc.FetchTimeout()}
	var fetchers []vocab.SourceFetcher
	for _, name := range vc.Sources {
		switch name {
		case "github":
			fetchers = append(fetchers, vocab.NewGitHubTrendingSource(client))
		case "hackernews":
			fetchers = append(fetchers, vocab.NewHackerNewsSource(client))
		case "stackoverflow":
			fetchers = append(fetchers, vocab.NewStackOverflowSource(client))
		default:
			slog.Warn("skipping unknown vocabulary source", "name", name)
		}
	}
	return fetchers
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, engine recognizer.Engine, store *vocab.Store) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          voxlex — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Engine", string(cfg.Recognizer.Engine))
	printRow("Model type", string(engine.ModelType()))
	printRow("Sample rate", fmt.Sprintf("%d Hz", engine.SampleRate()))
	if engine.ModelType().CorrectionEnabled() {
		printRow("Correction", "enabled")
		printRow("Vocabulary", fmt.Sprintf("%d terms", store.Len()))
	} else {
		printRow("Correction", "disabled")
	}
	printRow("Sources", fmt.Sprintf("%d", len(cfg.Vocabulary.Sources)))
	printRow("Listen addr", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(kind, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", kind, value)
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
