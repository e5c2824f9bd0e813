package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lpr-capture-service/internal/domain/lpr"
)

type DetectionRepository struct {
	db *gorm.DB
}

func NewDetectionRepository(db *gorm.DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

type PlateDetection struct {
	ID                int64     `gorm:"primaryKey"`
	EventID           string    `gorm:"not null;uniqueIndex"`
	Timestamp         time.Time `gorm:"not null;index"`
	CameraID          string    `gorm:"not null;index"`
	CameraName        string
	LicensePlate      string `gorm:"not null;index"`
	Confidence        int
	OwnerEmail        string
	VehicleAttributes datatypes.JSON
	Origin            string
	DetectedAt        time.Time
}

type RegisteredCredential struct {
	ID         int64  `gorm:"primaryKey"`
	UserEmail  string `gorm:"not null"`
	Credential string `gorm:"not null;index"`
	CreatedAt  time.Time
}

type WriteErrorRecord struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	EventID      string
	CameraID     string
	CameraName   string
	LicensePlate string
	Confidence   int
	ErrorText    string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"index"`
}

func (WriteErrorRecord) TableName() string { return "write_errors" }

// ExistsByEventID is the dedup pre-check. The unique index on event_id
// remains the authoritative gate; this only avoids needless work.
func (r *DetectionRepository) ExistsByEventID(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&PlateDetection{}).
		Where("event_id = ?", eventID).
		Count(&count).Error
	return count > 0, err
}

// Insert commits a new detection. A duplicate event_id surfaces as
// lpr.ErrAlreadyStored.
func (r *DetectionRepository) Insert(ctx context.Context, rec *lpr.PlateDetectionRecord) error {
	row, err := toModel(rec)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return lpr.ErrAlreadyStored
		}
		return err
	}
	return nil
}

// Upsert writes a detection keyed by event_id, updating an existing row in
// place. The owner_email column is only overwritten when the new value is
// resolved, so a correction applied by a reconciliation job survives
// re-running a backfill over the same window.
func (r *DetectionRepository) Upsert(ctx context.Context, rec *lpr.PlateDetectionRecord) error {
	row, err := toModel(rec)
	if err != nil {
		return err
	}

	assigns := map[string]interface{}{
		"timestamp":          row.Timestamp,
		"camera_id":          row.CameraID,
		"camera_name":        row.CameraName,
		"license_plate":      row.LicensePlate,
		"confidence":         row.Confidence,
		"vehicle_attributes": row.VehicleAttributes,
		"origin":             row.Origin,
	}
	if rec.OwnerEmail != lpr.OwnerUnresolved {
		assigns["owner_email"] = rec.OwnerEmail
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoUpdates: clause.Assignments(assigns),
		}).
		Create(row).Error
}

// OwnerEmail looks a sanitized plate up in the registered credentials. An
// empty string means no registrant claims the plate.
func (r *DetectionRepository) OwnerEmail(ctx context.Context, plate string) (string, error) {
	var cred RegisteredCredential
	err := r.db.WithContext(ctx).
		Where("credential = ?", plate).
		Order("created_at ASC").
		First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return cred.UserEmail, nil
}

// NewestDetectionTime returns the timestamp of the most recent stored
// detection, or nil when the table is empty. Drives the startup catch-up
// gap check.
func (r *DetectionRepository) NewestDetectionTime(ctx context.Context) (*time.Time, error) {
	var row PlateDetection
	err := r.db.WithContext(ctx).
		Order("timestamp DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row.Timestamp, nil
}

// RecordWriteError appends to the write-error side channel.
func (r *DetectionRepository) RecordWriteError(ctx context.Context, we lpr.WriteError) error {
	row := WriteErrorRecord{
		ID:           uuid.New(),
		EventID:      we.EventID,
		CameraID:     we.CameraID,
		CameraName:   we.CameraName,
		LicensePlate: we.LicensePlate,
		Confidence:   we.Confidence,
		ErrorText:    we.ErrorText,
		CreatedAt:    we.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

// FindDetections queries stored detections, newest first, optionally
// filtered by plate and time window. Limit is capped at 100.
func (r *DetectionRepository) FindDetections(ctx context.Context, plate *string, from, to *time.Time, limit, offset int) ([]PlateDetection, error) {
	query := r.db.WithContext(ctx).Model(&PlateDetection{})

	if plate != nil {
		query = query.Where("license_plate = ?", *plate)
	}
	if from != nil {
		query = query.Where("timestamp >= ?", *from)
	}
	if to != nil {
		query = query.Where("timestamp <= ?", *to)
	}

	query = query.Order("timestamp DESC")

	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	query = query.Limit(limit)
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []PlateDetection
	err := query.Find(&rows).Error
	return rows, err
}

// RecentWriteErrors returns side-channel records created at or after since.
func (r *DetectionRepository) RecentWriteErrors(ctx context.Context, since time.Time, limit int) ([]WriteErrorRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []WriteErrorRecord
	err := r.db.WithContext(ctx).
		Where("created_at >= ?", since).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func toModel(rec *lpr.PlateDetectionRecord) (*PlateDetection, error) {
	row := &PlateDetection{
		EventID:      rec.EventID,
		Timestamp:    rec.Timestamp,
		CameraID:     rec.CameraID,
		CameraName:   rec.CameraName,
		LicensePlate: rec.LicensePlate,
		Confidence:   rec.Confidence,
		OwnerEmail:   rec.OwnerEmail,
		Origin:       string(rec.Origin),
		DetectedAt:   rec.DetectedAt,
	}
	if rec.VehicleAttributes != nil {
		raw, err := json.Marshal(rec.VehicleAttributes)
		if err != nil {
			return nil, fmt.Errorf("marshal vehicle attributes: %w", err)
		}
		row.VehicleAttributes = datatypes.JSON(raw)
	}
	return row, nil
}
