package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"lpr-capture-service/internal/config"
	"lpr-capture-service/internal/db"
	httpapi "lpr-capture-service/internal/http"
	"lpr-capture-service/internal/metrics"
	"lpr-capture-service/internal/policy"
	"lpr-capture-service/internal/protect"
	"lpr-capture-service/internal/repository"
	"lpr-capture-service/internal/service"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	rootCmd := &cobra.Command{
		Use:          "lpr-capture",
		Short:        "License plate capture service for UniFi Protect",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(captureCommand(log), backfillCommand(log))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func captureCommand(log zerolog.Logger) *cobra.Command {
	var catchup bool

	cmd := &cobra.Command{
		Use:   "capture [duration-seconds]",
		Short: "Run the live ingestion loop",
		Long: "Ingest license plate detections continuously. An optional duration in " +
			"seconds stops the loop after that long; 0 or absent runs indefinitely.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			duration := 0
			if len(args) == 1 {
				parsed, err := strconv.Atoi(args[0])
				if err != nil || parsed < 0 {
					return fmt.Errorf("invalid duration %q", args[0])
				}
				duration = parsed
			}
			return runCapture(log, duration, catchup)
		},
	}
	cmd.Flags().BoolVar(&catchup, "catchup", false, "replay the gap since the newest stored detection before going live")
	return cmd
}

func backfillCommand(log zerolog.Logger) *cobra.Command {
	var hours float64

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Replay a historical window through the ingestion pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackfill(log, hours)
		},
	}
	cmd.Flags().Float64Var(&hours, "hours", 1, "how far back to replay")
	return cmd
}

// app holds everything assembled from configuration.
type app struct {
	cfg      *config.Config
	gdb      *gorm.DB
	repo     *repository.DetectionRepository
	platform *protect.Client
	pipeline *service.Pipeline
	ingestor *service.Ingestor
	backfill *service.BackfillRunner
	server   *httpapi.Server
	log      zerolog.Logger
}

func newApp(ctx context.Context, log zerolog.Logger) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		// Startup-fatal: missing mandatory configuration is never retried.
		return nil, err
	}

	gdb, err := openStoreWithRetry(ctx, cfg.Store.DSN, log)
	if err != nil {
		return nil, err
	}
	repo := repository.NewDetectionRepository(gdb)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	filter := policy.NewCameraFilter(
		cfg.Capture.AllowedCameraIDs,
		cfg.Capture.AllowedCameraNames,
		cfg.Capture.SkipCameraNames,
	)
	norm := service.NewNormalizer(cfg.Capture.MinConfidence, cfg.Capture.StoreUnreadable)
	pipeline := service.NewPipeline(repo, filter, norm, m, log, cfg.Capture.AllowRawPlateLog)

	platform := protect.NewClient(protect.Config{
		Host:      cfg.Protect.Host,
		Port:      cfg.Protect.Port,
		APIKey:    cfg.Protect.APIKey,
		Username:  cfg.Protect.Username,
		Password:  cfg.Protect.Password,
		VerifySSL: cfg.Protect.VerifySSL,
	}, log)

	clock := service.NewClock()
	ingestor := service.NewIngestor(platform, pipeline, service.IngestorConfig{
		PollInterval: cfg.Capture.PollInterval,
		FetchLimit:   cfg.Capture.FetchLimit,
	}, clock, log)
	backfill := service.NewBackfillRunner(platform, pipeline, repo, clock, log)

	queryService := service.NewQueryService(repo, log)
	handler := httpapi.NewHandler(queryService, backfill, log)
	router := httpapi.NewRouter(handler, cfg.HTTP.JWTSecret, registry)
	server := httpapi.NewServer(cfg.HTTP.Listen, router, log)

	return &app{
		cfg:      cfg,
		gdb:      gdb,
		repo:     repo,
		platform: platform,
		pipeline: pipeline,
		ingestor: ingestor,
		backfill: backfill,
		server:   server,
		log:      log,
	}, nil
}

// openStoreWithRetry keeps trying the store rather than exiting; an
// unreachable store is a transient condition, not a startup-fatal one.
func openStoreWithRetry(ctx context.Context, dsn string, log zerolog.Logger) (*gorm.DB, error) {
	backoff := service.Backoff{Initial: time.Second, Max: 32 * time.Second}
	clock := service.NewClock()
	for {
		gdb, err := db.Open(dsn)
		if err == nil {
			return gdb, nil
		}
		delay := backoff.Next()
		log.Warn().Err(err).Dur("retry_in", delay).Msg("store unavailable")
		if serr := clock.Sleep(ctx, delay); serr != nil {
			return nil, err
		}
	}
}

func runCapture(log zerolog.Logger, durationSeconds int, catchup bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if durationSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(durationSeconds)*time.Second)
		defer cancel()
	}

	a, err := newApp(ctx, log)
	if err != nil {
		log.Error().Err(err).Msg("startup failed")
		return err
	}
	defer a.close()

	a.server.Start()

	if catchup {
		if err := a.platform.Connect(ctx); err != nil {
			log.Warn().Err(err).Msg("catch-up skipped: platform unreachable")
		} else {
			a.pipeline.SetRegistry(service.LPRCameras(a.platform.Cameras()))
			if _, err := a.backfill.CatchUp(ctx, a.cfg.Capture.CatchupGap); err != nil {
				log.Warn().Err(err).Msg("catch-up failed")
			}
		}
	}

	a.ingestor.Run(ctx)
	return nil
}

func runBackfill(log zerolog.Logger, hours float64) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, log)
	if err != nil {
		log.Error().Err(err).Msg("startup failed")
		return err
	}
	defer a.close()

	if err := a.platform.Connect(ctx); err != nil {
		log.Error().Err(err).Msg("failed to connect to platform")
		return err
	}
	a.pipeline.SetRegistry(service.LPRCameras(a.platform.Cameras()))

	end := time.Now().UTC()
	start := end.Add(-time.Duration(hours * float64(time.Hour)))
	if _, err := a.backfill.Backfill(ctx, start, end); err != nil {
		return err
	}
	return nil
}

// close unwinds shared resources; teardown errors are logged, not
// propagated.
func (a *app) close() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.server.Shutdown(shutdownCtx)
	if err := a.platform.Close(); err != nil {
		a.log.Debug().Err(err).Msg("platform close")
	}
	if err := db.Close(a.gdb); err != nil {
		a.log.Debug().Err(err).Msg("store close")
	}
}
