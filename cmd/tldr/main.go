package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tldr-buffer/internal/config"
	"tldr-buffer/internal/extract"
	"tldr-buffer/internal/metrics"
	"tldr-buffer/internal/server"
	"tldr-buffer/internal/store"
	"tldr-buffer/internal/summarize"
	"tldr-buffer/internal/worker"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger     *zap.Logger
	cfg        *config.Config
	configPath string
	redisAddr  string
	badgerPath string
	backend    string
)

var rootCmd = &cobra.Command{
	Use:   "tldr",
	Short: "tldr-buffer - extract, summarize and keep the pages you read",

	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath == "" {
			configPath = os.Getenv(config.EnvPath)
		}
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		// Flags win over file and environment.
		if cmd.Flags().Changed("redis") {
			cfg.Storage.RedisAddr = redisAddr
		}
		if cmd.Flags().Changed("badger") {
			cfg.Storage.BadgerPath = badgerPath
		}
		if cmd.Flags().Changed("store") {
			cfg.Storage.Backend = backend
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger, err = newLogger(cfg.Log)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync()
		}
	},
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP API (and the summary worker when enabled)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		sum := newSummarizer()
		events := metrics.NewMemory(recentEvents)
		srv := server.NewServer(server.Deps{
			Store:      st,
			Pipeline:   newPipeline(events),
			Events:     events,
			Summarizer: sum,
			Logger:     logger,
			Extraction: cfg.Extraction,
			Params:     cfg.Summarization.Defaults,
		})

		if cfg.Server.Worker {
			js, ok := st.(worker.JobStore)
			switch {
			case sum == nil:
				logger.Warn("Worker disabled: no summarization provider configured")
			case !ok:
				logger.Warn("Worker disabled: store has no queue")
			default:
				w := worker.NewWorker(js, sum, cfg.Summarization.Defaults, logger)
				go w.Start(ctx)
			}
		}

		errc := make(chan error, 1)
		go func() {
			errc <- srv.Start(cfg.Addr(), cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
		}()

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}
		logger.Info("Shutting down...")
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := srv.Stop(shutdownCtx); err != nil {
			return err
		}
		logger.Info("Goodbye!")
		return nil
	},
}

func newLogger(lc config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if lc.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// openStore builds the configured backend.
func openStore() (store.Store, error) {
	opts := []store.Option{store.WithCap(cfg.Storage.Cap), store.WithLogger(logger)}
	if cfg.Storage.Backend == "hybrid" {
		return store.NewHybridStore(cfg.Storage.RedisAddr, cfg.Storage.BadgerPath, logger, opts...)
	}
	if path := cfg.Storage.BadgerPath; path != "" {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	return store.OpenLocal(cfg.Storage.BadgerPath, opts...)
}

// recentEvents bounds the attempts kept for /debug/extractions.
const recentEvents = 200

func newPipeline(extra ...metrics.Recorder) *extract.Pipeline {
	rec := append(metrics.Multi{metrics.NewZapRecorder(logger)}, extra...)
	return extract.NewPipeline(
		extract.WithLogger(logger),
		extract.WithRecorder(rec),
		extract.WithHeuristic(&cfg.Heuristic),
		extract.WithSPAConfig(cfg.SPA),
	)
}

// newSummarizer returns nil when no provider is configured.
func newSummarizer() *summarize.Summarizer {
	sc := cfg.Summarization
	if sc.APIKey == "" && sc.BaseURL == "" {
		return nil
	}
	s := summarize.New(summarize.NewOpenAIProvider(sc.APIKey, sc.BaseURL), sc.Model, logger)
	s.MaxRetries = sc.MaxRetries
	s.BaseDelay = sc.BaseDelay
	return s
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML config file (default $"+config.EnvPath+")")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis", "localhost:6379", "Address of Redis server")
	rootCmd.PersistentFlags().StringVar(&badgerPath, "badger", "", "Path to BadgerDB data directory")
	rootCmd.PersistentFlags().StringVar(&backend, "store", "local", "Document store backend: local or hybrid")

	rootCmd.AddCommand(serverCmd)
	addPageCommands(rootCmd)
	addDocumentCommands(rootCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
