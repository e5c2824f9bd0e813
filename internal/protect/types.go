package protect

import (
	"math"
	"time"

	"lpr-capture-service/internal/domain/lpr"
)

// Wire shapes as the Protect API emits them. Timestamps are epoch
// milliseconds, confidence may arrive either as a 0-1 fraction or a 0-100
// value depending on firmware vintage.

type wireBootstrap struct {
	Cameras []wireCamera `json:"cameras"`
}

type wireCamera struct {
	ID                        string `json:"id"`
	Name                      string `json:"name"`
	Type                      string `json:"type"`
	IsLicensePlateDetectionOn bool   `json:"isLicensePlateDetectionOn"`
	CanDetectLicensePlate     bool   `json:"canDetectLicensePlate"`
}

type wireEvent struct {
	ID               string        `json:"id"`
	Camera           string        `json:"camera"`
	Start            int64         `json:"start"`
	End              *int64        `json:"end,omitempty"`
	SmartDetectTypes []string      `json:"smartDetectTypes"`
	Metadata         *wireMetadata `json:"metadata,omitempty"`
}

type wireMetadata struct {
	DetectedThumbnails []wireThumbnail `json:"detectedThumbnails,omitempty"`
}

type wireThumbnail struct {
	Type       string                   `json:"type"`
	Name       string                   `json:"name,omitempty"`
	Confidence float64                  `json:"confidence"`
	CroppedID  string                   `json:"croppedId,omitempty"`
	ObjectID   string                   `json:"objectId,omitempty"`
	Coord      []int                    `json:"coord,omitempty"`
	Attributes map[string]wireAttribute `json:"attributes,omitempty"`
}

type wireAttribute struct {
	Val        string  `json:"val"`
	Confidence float64 `json:"confidence"`
}

func (c wireCamera) toDomain() lpr.Camera {
	return lpr.Camera{
		ID:               c.ID,
		Name:             c.Name,
		Type:             c.Type,
		PlateDetectionOn: c.IsLicensePlateDetectionOn,
		CanDetectPlate:   c.CanDetectLicensePlate,
	}
}

func (e wireEvent) toDomain() lpr.DetectionEvent {
	ev := lpr.DetectionEvent{
		ID:               e.ID,
		CameraID:         e.Camera,
		Start:            time.UnixMilli(e.Start).UTC(),
		SmartDetectTypes: e.SmartDetectTypes,
	}
	if e.End != nil {
		end := time.UnixMilli(*e.End).UTC()
		ev.End = &end
	}
	if e.Metadata != nil {
		md := &lpr.EventMetadata{}
		for _, t := range e.Metadata.DetectedThumbnails {
			md.DetectedThumbnails = append(md.DetectedThumbnails, t.toDomain())
		}
		ev.Metadata = md
	}
	return ev
}

func (t wireThumbnail) toDomain() lpr.ThumbnailRecord {
	rec := lpr.ThumbnailRecord{
		Type:       t.Type,
		Name:       t.Name,
		Confidence: scaleConfidence(t.Confidence),
		CroppedID:  t.CroppedID,
		ObjectID:   t.ObjectID,
		Coord:      t.Coord,
	}
	if len(t.Attributes) > 0 {
		rec.Attributes = make(map[string]lpr.ThumbnailAttribute, len(t.Attributes))
		for k, a := range t.Attributes {
			rec.Attributes[k] = lpr.ThumbnailAttribute{
				Value:      a.Val,
				Confidence: scaleConfidence(a.Confidence),
			}
		}
	}
	return rec
}

// scaleConfidence converts a vendor confidence value to an integer
// percentage. Historical producers disagree on units: values in (0,1] are
// fractions and are scaled by 100, anything else is taken as a percentage
// already. The result is clamped into [0,100], so downstream code only ever
// sees canonical integers.
func scaleConfidence(v float64) int {
	if v > 0 && v <= 1 {
		v *= 100
	}
	n := int(math.Round(v))
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
