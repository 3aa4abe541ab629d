package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/HattoriHanzo12/Random-Faces/internal/alert"
	"github.com/HattoriHanzo12/Random-Faces/internal/cache"
	"github.com/HattoriHanzo12/Random-Faces/internal/circuitbreaker"
	"github.com/HattoriHanzo12/Random-Faces/internal/config"
	"github.com/HattoriHanzo12/Random-Faces/internal/indexer"
	"github.com/HattoriHanzo12/Random-Faces/internal/output"
	"github.com/HattoriHanzo12/Random-Faces/internal/pipeline"
	"github.com/HattoriHanzo12/Random-Faces/internal/ratelimit"
	"github.com/HattoriHanzo12/Random-Faces/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const contentCacheCapacity = 512

type cliFlags struct {
	lookbackHours int
	maxPages      int
	confirmations int
	pageSize      int
	outDir        string
	manifestPath  string
	configPath    string
	watch         bool
	intervalMin   int
}

func parseFlags(cfg *config.Config) cliFlags {
	flags := cliFlags{}
	flag.IntVar(&flags.lookbackHours, "lookback-hours", cfg.Watch.LookbackHours, "how far back to scan for new inscriptions")
	flag.IntVar(&flags.maxPages, "max-pages", cfg.Watch.MaxPages, "maximum indexer pages per run")
	flag.IntVar(&flags.confirmations, "confirmations", cfg.Watch.Confirmations, "block confirmations required before proposing")
	flag.IntVar(&flags.pageSize, "page-size", cfg.Watch.PageSize, "indexer page size (capped at 60)")
	flag.StringVar(&flags.outDir, "out-dir", cfg.Watch.OutDir, "directory for run artifacts")
	flag.StringVar(&flags.manifestPath, "manifest", cfg.Paths.Manifest, "path to the official manifest JSON")
	flag.StringVar(&flags.configPath, "config", cfg.Paths.Config, "path to the inscription config JSON")
	flag.BoolVar(&flags.watch, "watch", false, "run continuously instead of one-shot")
	flag.IntVar(&flags.intervalMin, "interval", int(cfg.Watch.Interval/time.Minute), "minutes between watch-mode runs")
	flag.Parse()
	return flags
}

func buildAlerter(cfg *config.Config, logger *slog.Logger) alert.Alerter {
	var channels []alert.Alerter
	if strings.TrimSpace(cfg.Alert.SlackWebhookURL) != "" {
		channels = append(channels, alert.NewSlackAlerter(cfg.Alert.SlackWebhookURL))
	}
	if strings.TrimSpace(cfg.Alert.WebhookURL) != "" {
		channels = append(channels, alert.NewWebhookAlerter(cfg.Alert.WebhookURL))
	}
	if len(channels) == 0 {
		return &alert.NoopAlerter{}
	}
	return alert.NewMultiAlerter(cfg.Alert.Cooldown, logger, channels...)
}

func runOnce(ctx context.Context, runner *pipeline.Runner, flags cliFlags, logger *slog.Logger) (*pipeline.Output, error) {
	manifest, err := store.LoadManifest(flags.manifestPath)
	if err != nil {
		return nil, err
	}
	collection, err := store.LoadCollectionConfig(flags.configPath)
	if err != nil {
		return nil, err
	}

	opts := config.NormalizeWatchOptions(config.WatchConfig{
		LookbackHours: flags.lookbackHours,
		MaxPages:      flags.maxPages,
		Confirmations: flags.confirmations,
		PageSize:      flags.pageSize,
		OutDir:        flags.outDir,
	})

	out, err := runner.Run(ctx, manifest, collection, opts)
	if err != nil {
		return nil, err
	}

	writer := output.NewWriter(opts.OutDir, logger)
	paths, err := writer.WriteAll(out)
	if err != nil {
		return out, err
	}
	if err := output.AppendStepOutputs(out, paths); err != nil {
		logger.Warn("failed to publish step outputs", "error", err)
	}
	return out, nil
}

func notifyRunOutcome(ctx context.Context, alerter alert.Alerter, out *pipeline.Output, runErr error, hadFailure *bool, logger *slog.Logger) {
	switch {
	case runErr != nil:
		*hadFailure = true
		if err := alerter.Send(ctx, alert.Alert{
			Type:    alert.AlertTypeRunFailed,
			Title:   "mint watch run failed",
			Message: runErr.Error(),
		}); err != nil {
			logger.Warn("failed to send alert", "error", err)
		}
	case len(out.Result.Errors) > 0:
		alertType := alert.AlertTypePageAbort
		for _, e := range out.Result.Errors {
			if strings.Contains(e, "ordering violated") {
				alertType = alert.AlertTypeOrderBroken
				break
			}
		}
		if err := alerter.Send(ctx, alert.Alert{
			Type:    alertType,
			Title:   "mint watch run degraded",
			Message: strings.Join(out.Result.Errors, "; "),
			Fields:  map[string]string{"run_id": out.Result.RunID},
		}); err != nil {
			logger.Warn("failed to send alert", "error", err)
		}
	case *hadFailure:
		*hadFailure = false
		if err := alerter.Send(ctx, alert.Alert{
			Type:    alert.AlertTypeRecovery,
			Title:   "mint watch recovered",
			Message: "scan runs are healthy again",
		}); err != nil {
			logger.Warn("failed to send alert", "error", err)
		}
	}
}

func runHealthServer(ctx context.Context, port int, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Warn("failed to write health response", "error", err)
		}
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			logger.Warn("health server shutdown error", "error", err)
		}
	}()

	logger.Info("health server started", "port", port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}

func main() {
	logLevel := slog.LevelInfo
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	flags := parseFlags(cfg)

	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("starting mint watch",
		"hiro_base", cfg.Indexer.HiroBaseURL,
		"content_base", cfg.Indexer.ContentBaseURL,
		"manifest", flags.manifestPath,
		"config", flags.configPath,
		"lookback_hours", flags.lookbackHours,
		"max_pages", flags.maxPages,
		"confirmations", flags.confirmations,
		"watch", flags.watch,
	)

	client := indexer.NewClient(indexer.Config{
		HiroBaseURL:    cfg.Indexer.HiroBaseURL,
		ContentBaseURL: cfg.Indexer.ContentBaseURL,
		TipHeightURL:   cfg.Indexer.TipHeightURL,
		ListTimeout:    cfg.Indexer.ListTimeout,
		ContentTimeout: cfg.Indexer.ContentTimeout,
		TipTimeout:     cfg.Indexer.TipTimeout,
	}, logger)
	client.SetRateLimiter(ratelimit.NewLimiter(cfg.Indexer.RateLimitRPS, cfg.Indexer.RateLimitBurst))
	client.SetContentCache(cache.New[string, indexer.ContentResult](contentCacheCapacity, 0))

	runner := pipeline.NewRunner(client, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if !flags.watch {
		go func() {
			sig := <-sigCh
			logger.Info("received signal, cancelling run", "signal", sig)
			cancel()
		}()

		out, err := runOnce(ctx, runner, flags, logger)
		if err != nil {
			logger.Error("mint watch run failed", "error", err)
			os.Exit(1)
		}
		fmt.Print(out.Summary)
		return
	}

	// Watch mode: per-host breakers keep a flapping indexer or content
	// mirror from being hammered every interval.
	client.SetBreakerConfig(circuitbreaker.Config{
		OnStateChange: func(from, to circuitbreaker.State) {
			logger.Warn("indexer circuit breaker state changed", "from", from, "to", to)
		},
	})
	alerter := buildAlerter(cfg, logger)

	interval := time.Duration(flags.intervalMin) * time.Minute
	if interval <= 0 {
		interval = 30 * time.Minute
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runHealthServer(gCtx, cfg.Server.HealthPort, logger)
	})

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		hadFailure := false
		for {
			out, err := runOnce(gCtx, runner, flags, logger)
			if err != nil {
				logger.Error("scan run failed", "error", err)
			}
			notifyRunOutcome(gCtx, alerter, out, err, &hadFailure, logger)

			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	g.Go(func() error {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("mint watch exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("mint watch shut down gracefully")
}
