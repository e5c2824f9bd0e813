package service

import (
	"sync"

	"lpr-capture-service/internal/domain/lpr"
	"lpr-capture-service/internal/utils"
)

// SmartDetectLicensePlate is the platform category tag for plate detections.
const SmartDetectLicensePlate = "licensePlate"

// Candidate is a normalized detection ready for dedup/enrichment/commit.
type Candidate struct {
	Plate             string
	Confidence        int
	CameraName        string
	VehicleAttributes *lpr.VehicleAttributes
	Unreadable        bool
}

// Normalizer maps raw platform events into candidate records. The camera
// registry is replaced on every reconnect; reads and writes may come from
// different goroutines.
type Normalizer struct {
	mu              sync.RWMutex
	registry        map[string]lpr.Camera
	minConfidence   int
	storeUnreadable bool
}

func NewNormalizer(minConfidence int, storeUnreadable bool) *Normalizer {
	return &Normalizer{
		registry:        map[string]lpr.Camera{},
		minConfidence:   minConfidence,
		storeUnreadable: storeUnreadable,
	}
}

// SetRegistry installs the LPR camera registry from the platform bootstrap.
func (n *Normalizer) SetRegistry(cameras []lpr.Camera) {
	reg := make(map[string]lpr.Camera, len(cameras))
	for _, c := range cameras {
		reg[c.ID] = c
	}
	n.mu.Lock()
	n.registry = reg
	n.mu.Unlock()
}

// CameraName resolves a camera ID against the registry; unknown IDs yield "".
func (n *Normalizer) CameraName(cameraID string) string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.registry[cameraID].Name
}

// Normalize maps an event to a candidate record. A nil candidate means the
// event was rejected; the reason string names why.
//
// The first vehicle thumbnail whose recognized text sanitizes to a plate
// wins; later thumbnails are ignored even when also valid, preserving
// vendor ordering.
func (n *Normalizer) Normalize(ev lpr.DetectionEvent) (*Candidate, string) {
	n.mu.RLock()
	camera, known := n.registry[ev.CameraID]
	n.mu.RUnlock()
	if !known {
		return nil, "non_lpr_camera"
	}

	if !ev.HasDetectType(SmartDetectLicensePlate) {
		return nil, "no_licenseplate_detect"
	}

	var matched *lpr.ThumbnailRecord
	var plate string
	if ev.Metadata != nil {
		for i := range ev.Metadata.DetectedThumbnails {
			thumb := &ev.Metadata.DetectedThumbnails[i]
			if thumb.Type != "vehicle" {
				continue
			}
			if p := utils.SanitizePlate(thumb.Name); p != "" {
				matched = thumb
				plate = p
				break
			}
		}
	}

	if matched == nil {
		if !n.storeUnreadable {
			return nil, "no_plate_extracted"
		}
		return &Candidate{
			Plate:      lpr.PlateUnreadable,
			CameraName: camera.Name,
			Unreadable: true,
		}, ""
	}

	if !utils.ValidPlate(plate) {
		return nil, "invalid_plate"
	}
	if matched.Confidence < n.minConfidence {
		return nil, "low_confidence"
	}

	return &Candidate{
		Plate:             plate,
		Confidence:        matched.Confidence,
		CameraName:        camera.Name,
		VehicleAttributes: vehicleAttributes(matched),
	}, ""
}

func vehicleAttributes(thumb *lpr.ThumbnailRecord) *lpr.VehicleAttributes {
	va := &lpr.VehicleAttributes{ObjectID: thumb.ObjectID}
	if len(thumb.Coord) >= 4 {
		va.BoundingBox = &lpr.BoundingBox{
			X:      thumb.Coord[0],
			Y:      thumb.Coord[1],
			Width:  thumb.Coord[2],
			Height: thumb.Coord[3],
		}
	}
	if len(thumb.Attributes) > 0 {
		va.Attributes = thumb.Attributes
	}
	if va.BoundingBox == nil && va.ObjectID == "" && va.Attributes == nil {
		return nil
	}
	return va
}
