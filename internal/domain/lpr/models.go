package lpr

import (
	"time"
)

// Sentinel values stored in place of data that could not be extracted or
// resolved. These are real stored values, distinct from an absent field.
const (
	PlateUnreadable = "UNREAD"
	OwnerUnresolved = "unresolved"
)

// Origin identifies which ingestion path produced a record.
type Origin string

const (
	OriginLive     Origin = "live"
	OriginPoll     Origin = "poll"
	OriginBackfill Origin = "backfill"
)

// Camera describes one camera from the platform bootstrap.
type Camera struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Type             string `json:"type"`
	PlateDetectionOn bool   `json:"plate_detection_on"`
	CanDetectPlate   bool   `json:"can_detect_plate"`
}

// IsLPR reports whether the camera is capable of license plate recognition
// and has it switched on.
func (c Camera) IsLPR() bool {
	return c.CanDetectPlate && c.PlateDetectionOn
}

// DetectionEvent is a smart detection event as delivered by the camera
// platform. All metadata fields are optional; absence is never an error.
type DetectionEvent struct {
	ID               string         `json:"id"`
	CameraID         string         `json:"camera_id"`
	Start            time.Time      `json:"start"`
	End              *time.Time     `json:"end,omitempty"`
	SmartDetectTypes []string       `json:"smart_detect_types"`
	Metadata         *EventMetadata `json:"metadata,omitempty"`
}

// HasDetectType reports whether the event carries the given smart detection
// category tag.
func (e DetectionEvent) HasDetectType(t string) bool {
	for _, s := range e.SmartDetectTypes {
		if s == t {
			return true
		}
	}
	return false
}

// EventMetadata holds the structured metadata attached to a detection event.
type EventMetadata struct {
	DetectedThumbnails []ThumbnailRecord `json:"detected_thumbnails,omitempty"`
}

// ThumbnailRecord describes one detected object crop inside event metadata.
// Name carries the recognized text (the raw plate string for vehicle crops).
// Confidence is an integer percentage; the platform client normalizes units
// before events reach this type.
type ThumbnailRecord struct {
	Type       string                        `json:"type"`
	Name       string                        `json:"name,omitempty"`
	Confidence int                           `json:"confidence"`
	CroppedID  string                        `json:"cropped_id,omitempty"`
	ObjectID   string                        `json:"object_id,omitempty"`
	Coord      []int                         `json:"coord,omitempty"`
	Attributes map[string]ThumbnailAttribute `json:"attributes,omitempty"`
}

// ThumbnailAttribute is one vehicle attribute (color, type, ...) with its
// own recognition confidence.
type ThumbnailAttribute struct {
	Value      string `json:"value"`
	Confidence int    `json:"confidence"`
}

// BoundingBox is the detected object region within the frame.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// VehicleAttributes is the optional nested vehicle data stored alongside a
// plate detection.
type VehicleAttributes struct {
	BoundingBox *BoundingBox                  `json:"bounding_box,omitempty"`
	ObjectID    string                        `json:"object_id,omitempty"`
	Attributes  map[string]ThumbnailAttribute `json:"attributes,omitempty"`
}

// PlateDetectionRecord is the core output contract: one validated,
// deduplicated plate sighting. EventID is the idempotency key.
type PlateDetectionRecord struct {
	EventID           string             `json:"event_id"`
	Timestamp         time.Time          `json:"timestamp"`
	CameraID          string             `json:"camera_id"`
	CameraName        string             `json:"camera_name"`
	LicensePlate      string             `json:"license_plate"`
	Confidence        int                `json:"confidence"`
	OwnerEmail        string             `json:"owner_email"`
	VehicleAttributes *VehicleAttributes `json:"vehicle_attributes,omitempty"`
	Origin            Origin             `json:"origin"`
	DetectedAt        time.Time          `json:"detected_at"`
}

// WriteError is the side-channel record appended when a commit fails for a
// reason other than expected duplication.
type WriteError struct {
	EventID      string    `json:"event_id"`
	CameraID     string    `json:"camera_id"`
	CameraName   string    `json:"camera_name"`
	LicensePlate string    `json:"license_plate"`
	Confidence   int       `json:"confidence"`
	ErrorText    string    `json:"error_text"`
	CreatedAt    time.Time `json:"created_at"`
}
