package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"lpr-capture-service/internal/domain/lpr"
	"lpr-capture-service/internal/repository"
	"lpr-capture-service/internal/utils"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// QueryService serves the read-only operator API over stored detections and
// the write-error side channel.
type QueryService struct {
	repo *repository.DetectionRepository
	log  zerolog.Logger
}

func NewQueryService(repo *repository.DetectionRepository, log zerolog.Logger) *QueryService {
	return &QueryService{
		repo: repo,
		log:  log,
	}
}

func (s *QueryService) FindDetections(ctx context.Context, plateQuery *string, from, to *string, limit, offset int) ([]DetectionInfo, error) {
	var plate *string
	if plateQuery != nil {
		sanitized := utils.SanitizePlate(*plateQuery)
		if sanitized == "" {
			return nil, fmt.Errorf("%w: plate query cannot be empty after normalization", ErrInvalidInput)
		}
		plate = &sanitized
	}

	var fromTime, toTime *time.Time
	if from != nil && *from != "" {
		t, err := time.Parse(time.RFC3339, *from)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid from time format", ErrInvalidInput)
		}
		fromTime = &t
	}
	if to != nil && *to != "" {
		t, err := time.Parse(time.RFC3339, *to)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid to time format", ErrInvalidInput)
		}
		toTime = &t
	}

	rows, err := s.repo.FindDetections(ctx, plate, fromTime, toTime, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to find detections: %w", err)
	}

	result := make([]DetectionInfo, 0, len(rows))
	for _, row := range rows {
		info := DetectionInfo{
			ID:           row.ID,
			EventID:      row.EventID,
			Timestamp:    row.Timestamp,
			CameraID:     row.CameraID,
			CameraName:   row.CameraName,
			LicensePlate: row.LicensePlate,
			Confidence:   row.Confidence,
			OwnerEmail:   row.OwnerEmail,
			Origin:       row.Origin,
			DetectedAt:   row.DetectedAt,
		}
		if len(row.VehicleAttributes) > 0 {
			var va lpr.VehicleAttributes
			if err := json.Unmarshal(row.VehicleAttributes, &va); err == nil {
				info.VehicleAttributes = &va
			}
		}
		result = append(result, info)
	}
	return result, nil
}

// RecentWriteErrors returns side-channel entries from the last window,
// mirroring the out-of-band alerting monitor.
func (s *QueryService) RecentWriteErrors(ctx context.Context, window time.Duration, limit int) ([]WriteErrorInfo, error) {
	if window <= 0 {
		window = time.Hour
	}
	rows, err := s.repo.RecentWriteErrors(ctx, time.Now().UTC().Add(-window), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find write errors: %w", err)
	}

	result := make([]WriteErrorInfo, 0, len(rows))
	for _, row := range rows {
		result = append(result, WriteErrorInfo{
			ID:           row.ID.String(),
			EventID:      row.EventID,
			CameraID:     row.CameraID,
			CameraName:   row.CameraName,
			LicensePlate: row.LicensePlate,
			Confidence:   row.Confidence,
			ErrorText:    row.ErrorText,
			CreatedAt:    row.CreatedAt,
		})
	}
	return result, nil
}

type DetectionInfo struct {
	ID                int64                  `json:"id"`
	EventID           string                 `json:"event_id"`
	Timestamp         time.Time              `json:"timestamp"`
	CameraID          string                 `json:"camera_id"`
	CameraName        string                 `json:"camera_name,omitempty"`
	LicensePlate      string                 `json:"license_plate"`
	Confidence        int                    `json:"confidence"`
	OwnerEmail        string                 `json:"owner_email"`
	VehicleAttributes *lpr.VehicleAttributes `json:"vehicle_attributes,omitempty"`
	Origin            string                 `json:"origin"`
	DetectedAt        time.Time              `json:"detected_at"`
}

type WriteErrorInfo struct {
	ID           string    `json:"id"`
	EventID      string    `json:"event_id,omitempty"`
	CameraID     string    `json:"camera_id,omitempty"`
	CameraName   string    `json:"camera_name,omitempty"`
	LicensePlate string    `json:"license_plate,omitempty"`
	Confidence   int       `json:"confidence"`
	ErrorText    string    `json:"error_text"`
	CreatedAt    time.Time `json:"created_at"`
}
