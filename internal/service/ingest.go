package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"lpr-capture-service/internal/domain/lpr"
)

// RunStats is the per-run tally returned by the ingestion loop and the
// backfill runner.
type RunStats struct {
	Detected      int
	Stored        int
	AlreadyStored int
	Skipped       int
	WriteErrors   int
}

func (s *RunStats) record(o Outcome) {
	switch o {
	case OutcomeStored:
		s.Detected++
		s.Stored++
	case OutcomeAlreadyStored:
		s.Detected++
		s.AlreadyStored++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeWriteError:
		s.Detected++
		s.WriteErrors++
	}
}

func (s *RunStats) add(other RunStats) {
	s.Detected += other.Detected
	s.Stored += other.Stored
	s.AlreadyStored += other.AlreadyStored
	s.Skipped += other.Skipped
	s.WriteErrors += other.WriteErrors
}

// IngestorConfig tunes the ingestion loop.
type IngestorConfig struct {
	PollInterval   time.Duration
	FetchLimit     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Ingestor owns the live ingestion state machine:
//
//	DISCONNECTED -> CONNECTING -> LIVE | POLLING -> ERROR -> DISCONNECTED
//
// The loop is infinite; it ends only when the context is canceled. Platform
// failures trigger a defensive teardown followed by an exponential-backoff
// reconnect.
type Ingestor struct {
	platform Platform
	pipeline *Pipeline
	cfg      IngestorConfig
	clock    Clock
	backoff  Backoff
	log      zerolog.Logger

	stats RunStats
}

func NewIngestor(platform Platform, pipeline *Pipeline, cfg IngestorConfig, clock Clock, log zerolog.Logger) *Ingestor {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 32 * time.Second
	}
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = 100
	}
	return &Ingestor{
		platform: platform,
		pipeline: pipeline,
		cfg:      cfg,
		clock:    clock,
		backoff:  Backoff{Initial: cfg.InitialBackoff, Max: cfg.MaxBackoff},
		log:      log.With().Str("component", "ingest").Logger(),
	}
}

// Run drives the state machine until ctx is canceled and returns the run
// tally. It never returns an error: every failure mode is a reconnect.
func (i *Ingestor) Run(ctx context.Context) RunStats {
	for ctx.Err() == nil {
		if err := i.connect(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			i.log.Warn().Err(err).Msg("platform connect failed")
			i.waitBackoff(ctx)
			continue
		}
		i.backoff.Reset()

		err := i.serve(ctx)
		i.teardown()
		if err == nil || ctx.Err() != nil {
			break
		}
		i.log.Warn().Err(err).Msg("event stream error, reconnecting")
		i.waitBackoff(ctx)
	}
	i.log.Info().
		Int("detected", i.stats.Detected).
		Int("stored", i.stats.Stored).
		Int("skipped", i.stats.Skipped).
		Int("write_errors", i.stats.WriteErrors).
		Msg("ingestion stopped")
	return i.stats
}

func (i *Ingestor) connect(ctx context.Context) error {
	if err := i.platform.Connect(ctx); err != nil {
		return err
	}
	cameras := LPRCameras(i.platform.Cameras())
	i.pipeline.SetRegistry(cameras)
	i.log.Info().Int("lpr_cameras", len(cameras)).Msg("camera registry loaded")
	if len(cameras) == 0 {
		i.log.Warn().Msg("no LPR cameras found, check camera types")
	}
	return nil
}

// serve prefers the push subscription and falls back to polling when the
// console does not offer one. Returns nil on cancellation, an error on
// stream/platform failure.
func (i *Ingestor) serve(ctx context.Context) error {
	events, unsub, err := i.platform.Subscribe(ctx)
	switch {
	case err == nil:
		i.log.Info().Msg("live: subscribed to event stream")
		return i.runLive(ctx, events, unsub)
	case errors.Is(err, lpr.ErrPushUnsupported):
		i.log.Info().Dur("interval", i.cfg.PollInterval).Msg("polling: push unavailable")
		return i.runPolling(ctx)
	default:
		return err
	}
}

func (i *Ingestor) runLive(ctx context.Context, events <-chan lpr.DetectionEvent, unsub func()) error {
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return errors.New("event stream closed")
			}
			i.stats.record(i.pipeline.Process(ctx, ev, lpr.OriginLive, false))
		}
	}
}

// runPolling advances the watermark to "now" before processing each batch,
// so a growing window is never re-scanned. An event reported with a start
// time right at the flip can be missed; the startup catch-up pass covers
// that structurally.
func (i *Ingestor) runPolling(ctx context.Context) error {
	watermark := i.clock.Now()
	for {
		if err := i.clock.Sleep(ctx, i.cfg.PollInterval); err != nil {
			return nil
		}
		since := watermark
		watermark = i.clock.Now()

		events, err := i.platform.FetchEvents(ctx, since, i.cfg.FetchLimit)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		for _, ev := range events {
			i.stats.record(i.pipeline.Process(ctx, ev, lpr.OriginPoll, false))
		}
	}
}

// teardown closes the platform session defensively; secondary errors are
// logged, never propagated.
func (i *Ingestor) teardown() {
	if err := i.platform.Close(); err != nil {
		i.log.Debug().Err(err).Msg("platform close failed")
	}
}

func (i *Ingestor) waitBackoff(ctx context.Context) {
	delay := i.backoff.Next()
	i.log.Info().Dur("delay", delay).Msg("reconnect backoff")
	_ = i.clock.Sleep(ctx, delay)
}

// LPRCameras filters the bootstrap registry down to plate-capable cameras.
func LPRCameras(cameras []lpr.Camera) []lpr.Camera {
	var out []lpr.Camera
	for _, c := range cameras {
		if c.Type == "UVC AI LPR" || c.IsLPR() {
			out = append(out, c)
		}
	}
	return out
}
