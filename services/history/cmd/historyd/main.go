package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"posd/pkg/cache"
	"posd/pkg/db"
	gos3 "posd/pkg/s3"
	"posd/pkg/telemetry"
	"posd/services/dashboard"
	"posd/services/history"
	"posd/services/history/internal/config"
	"posd/services/store"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "historyd",
		Short:         "Action history and undo service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newSweepCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the history HTTP API and retention sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run a single retention sweep and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sweepOnce(cmd.Context())
		},
	}
}

func setup(ctx context.Context) (config.Config, zerolog.Logger, error) {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load(ctx)
	if err != nil {
		return config.Config{}, logger, fmt.Errorf("load config: %w", err)
	}
	return cfg, logger, nil
}

func deadlinePolicy(cfg config.Config) (history.DeadlinePolicy, error) {
	def, overrides, err := cfg.DeadlineOverrides()
	if err != nil {
		return history.DeadlinePolicy{}, err
	}

	policy := history.DeadlinePolicy{Default: def}
	if len(overrides) > 0 {
		policy.PerKind = make(map[history.EntityKind]time.Duration, len(overrides))
		for kind, d := range overrides {
			policy.PerKind[history.EntityKind(kind)] = d
		}
	}
	return policy, nil
}

func newSweeper(cfg config.Config, logger zerolog.Logger, pool *pgxpool.Pool) (*history.Sweeper, error) {
	var s3Client *gos3.Client
	if cfg.ArchiveBucket != "" {
		var err error
		s3Client, err = gos3.NewClientFromEnv()
		if err != nil {
			return nil, fmt.Errorf("init s3 client: %w", err)
		}
	}

	return history.NewSweeper(pool, history.SweeperConfig{
		Horizon:  cfg.RetentionHorizon,
		Interval: cfg.CleanupInterval,
		Batch:    cfg.SweepBatch,
		S3:       s3Client,
		Bucket:   cfg.ArchiveBucket,
	}, logger)
}

func serve() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := setup(ctx)
	if err != nil {
		return err
	}

	shutdownTelemetry, middleware, err := telemetry.Init(ctx, "historyd", cfg.OTLPEndpoint, logger)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("telemetry shutdown")
		}
	}()

	pool, err := db.Open(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	orm, err := db.OpenORM(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("open orm: %w", err)
	}
	defer func() {
		if err := db.CloseORM(orm); err != nil {
			logger.Error().Err(err).Msg("close orm")
		}
	}()

	tiers, err := cfg.TTLTiersFromEnv()
	if err != nil {
		return err
	}

	policy, err := deadlinePolicy(cfg)
	if err != nil {
		return err
	}

	c := cache.New(cache.Options{MaxEntries: cfg.CacheMaxEntries})
	defer c.Close()

	journal, err := history.NewJournal(orm, history.JournalConfig{
		Deadlines: policy,
		Cache:     c,
		CacheTTL:  tiers.Short,
	})
	if err != nil {
		return err
	}

	var sink history.EventSink = history.NopSink{}
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer nc.Close()

		emitter, err := dashboard.NewEmitter(nc, logger)
		if err != nil {
			return err
		}
		sink = emitter
	} else {
		logger.Warn().Msg("NATS_URL not set, dashboard events disabled")
	}

	registry := history.NewRegistry()
	if err := store.RegisterAll(registry); err != nil {
		return err
	}

	recorder, err := history.NewRecorder(journal, sink)
	if err != nil {
		return err
	}

	orchestrator, err := history.NewOrchestrator(journal, registry, sink, policy, logger)
	if err != nil {
		return err
	}

	sweeper, err := newSweeper(cfg, logger, pool)
	if err != nil {
		return err
	}
	go func() {
		if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("retention sweeper stopped")
		}
	}()

	api, err := history.NewAPI(journal, recorder, orchestrator, pool, history.APIConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		UndoRateLimit:  cfg.UndoRateLimit,
	})
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context(), pool); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", api.Routes())

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown")
		}
	}()

	logger.Info().Str("addr", cfg.Addr).Msg("starting historyd")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func sweepOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, logger, err := setup(ctx)
	if err != nil {
		return err
	}

	pool, err := db.Open(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer pool.Close()

	sweeper, err := newSweeper(cfg, logger, pool)
	if err != nil {
		return err
	}

	n, err := sweeper.SweepOnce(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("removed %d expired entries\n", n)
	return nil
}
