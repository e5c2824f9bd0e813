package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"lpr-capture-service/internal/domain/lpr"
	"lpr-capture-service/internal/metrics"
	"lpr-capture-service/internal/policy"
	"lpr-capture-service/internal/utils"
)

// DetectionStore is the slice of the store the pipeline needs. The concrete
// implementation is repository.DetectionRepository.
type DetectionStore interface {
	ExistsByEventID(ctx context.Context, eventID string) (bool, error)
	Insert(ctx context.Context, rec *lpr.PlateDetectionRecord) error
	Upsert(ctx context.Context, rec *lpr.PlateDetectionRecord) error
	OwnerEmail(ctx context.Context, plate string) (string, error)
	NewestDetectionTime(ctx context.Context) (*time.Time, error)
	RecordWriteError(ctx context.Context, we lpr.WriteError) error
}

// Platform is the camera platform capability set consumed by the ingestion
// loop. The concrete implementation is protect.Client.
type Platform interface {
	Connect(ctx context.Context) error
	Cameras() []lpr.Camera
	FetchEvents(ctx context.Context, since time.Time, limit int) ([]lpr.DetectionEvent, error)
	Subscribe(ctx context.Context) (<-chan lpr.DetectionEvent, func(), error)
	Close() error
}

// Outcome classifies the result of processing one event.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeStored
	OutcomeAlreadyStored
	OutcomeWriteError
)

// Pipeline runs the filter -> normalize -> dedup -> resolve -> commit chain
// for a single event. All per-event failures are contained here; nothing the
// pipeline does can abort the ingestion loop.
type Pipeline struct {
	store   DetectionStore
	filter  *policy.CameraFilter
	norm    *Normalizer
	metrics *metrics.Metrics
	log     zerolog.Logger

	allowRawPlateLog bool
	now              func() time.Time
}

func NewPipeline(store DetectionStore, filter *policy.CameraFilter, norm *Normalizer, m *metrics.Metrics, log zerolog.Logger, allowRawPlateLog bool) *Pipeline {
	return &Pipeline{
		store:            store,
		filter:           filter,
		norm:             norm,
		metrics:          m,
		log:              log.With().Str("component", "pipeline").Logger(),
		allowRawPlateLog: allowRawPlateLog,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// SetRegistry installs the camera registry on the underlying normalizer.
func (p *Pipeline) SetRegistry(cameras []lpr.Camera) {
	p.norm.SetRegistry(cameras)
}

// Process runs one event through the pipeline. With upsert set the commit
// is keyed by event_id and may correct previously stored fields; otherwise
// it is insert-only and a duplicate counts as already stored.
func (p *Pipeline) Process(ctx context.Context, ev lpr.DetectionEvent, origin lpr.Origin, upsert bool) Outcome {
	cameraName := p.norm.CameraName(ev.CameraID)

	if admitted, reason := p.filter.Admit(ev.CameraID, cameraName); !admitted {
		p.skip(ev, "camera_policy", reason)
		return OutcomeSkipped
	}

	cand, reason := p.norm.Normalize(ev)
	if cand == nil {
		p.skip(ev, reason, "")
		return OutcomeSkipped
	}

	p.metrics.EventsDetected.WithLabelValues(string(origin)).Inc()

	if !upsert {
		exists, err := p.store.ExistsByEventID(ctx, ev.ID)
		if err != nil {
			// Pre-check is an optimization only; the unique index decides.
			p.log.Debug().Err(err).Str("event_id", ev.ID).Msg("dedup pre-check failed")
		} else if exists {
			return OutcomeAlreadyStored
		}
	}

	rec := &lpr.PlateDetectionRecord{
		EventID:           ev.ID,
		Timestamp:         ev.Start.UTC(),
		CameraID:          ev.CameraID,
		CameraName:        cand.CameraName,
		LicensePlate:      cand.Plate,
		Confidence:        cand.Confidence,
		OwnerEmail:        p.resolveOwner(ctx, cand),
		VehicleAttributes: cand.VehicleAttributes,
		Origin:            origin,
		DetectedAt:        p.now(),
	}

	var err error
	if upsert {
		err = p.store.Upsert(ctx, rec)
	} else {
		err = p.store.Insert(ctx, rec)
	}
	if errors.Is(err, lpr.ErrAlreadyStored) {
		return OutcomeAlreadyStored
	}
	if err != nil {
		p.metrics.WriteErrors.Inc()
		p.log.Error().
			Err(err).
			Str("event_id", ev.ID).
			Str("camera_id", ev.CameraID).
			Str("plate", p.maskPlate(rec.LicensePlate)).
			Msg("failed to store plate detection")
		p.sideChannel(ctx, rec, err)
		return OutcomeWriteError
	}

	p.metrics.EventsStored.WithLabelValues(string(origin)).Inc()
	p.log.Info().
		Str("event_id", ev.ID).
		Str("plate", p.maskPlate(rec.LicensePlate)).
		Str("camera", rec.CameraName).
		Int("confidence", rec.Confidence).
		Str("owner", rec.OwnerEmail).
		Str("origin", string(origin)).
		Msg("stored plate detection")
	return OutcomeStored
}

// resolveOwner is best-effort: lookup failures and misses both yield the
// unresolved sentinel and never block the commit.
func (p *Pipeline) resolveOwner(ctx context.Context, cand *Candidate) string {
	if cand.Unreadable {
		return lpr.OwnerUnresolved
	}
	email, err := p.store.OwnerEmail(ctx, cand.Plate)
	if err != nil {
		p.log.Debug().Err(err).Str("plate", p.maskPlate(cand.Plate)).Msg("owner lookup failed")
		return lpr.OwnerUnresolved
	}
	if email == "" {
		return lpr.OwnerUnresolved
	}
	return email
}

func (p *Pipeline) sideChannel(ctx context.Context, rec *lpr.PlateDetectionRecord, cause error) {
	we := lpr.WriteError{
		EventID:      rec.EventID,
		CameraID:     rec.CameraID,
		CameraName:   rec.CameraName,
		LicensePlate: rec.LicensePlate,
		Confidence:   rec.Confidence,
		ErrorText:    cause.Error(),
		CreatedAt:    p.now(),
	}
	if err := p.store.RecordWriteError(ctx, we); err != nil {
		p.log.Debug().Err(err).Str("event_id", rec.EventID).Msg("write-error side channel append failed")
	}
}

func (p *Pipeline) skip(ev lpr.DetectionEvent, reason, detail string) {
	p.metrics.EventsSkipped.WithLabelValues(reason).Inc()
	e := p.log.Debug().Str("event_id", ev.ID).Str("camera_id", ev.CameraID).Str("reason", reason)
	if detail != "" {
		e = e.Str("detail", detail)
	}
	e.Msg("event skipped")
}

func (p *Pipeline) maskPlate(plate string) string {
	return utils.MaskPlate(plate, p.allowRawPlateLog)
}
