package protect

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScaleConfidence(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0.87, 87},
		{0.5, 50},
		{1, 100},   // exactly 1 is read as a fraction
		{87, 87},   // already a percentage
		{100, 100},
		{150, 100}, // clamped high
		{-5, 0},    // clamped low
		{0, 0},
		{0.004, 0},
		{0.996, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, scaleConfidence(tt.in), "input %v", tt.in)
	}
}

func TestWireEventToDomain(t *testing.T) {
	payload := `{
		"id": "e1",
		"camera": "cam-lpr-1",
		"start": 1735689600000,
		"end": 1735689605000,
		"smartDetectTypes": ["licensePlate"],
		"metadata": {
			"detectedThumbnails": [
				{
					"type": "vehicle",
					"name": "xyz 123",
					"confidence": 0.87,
					"croppedId": "crop-1",
					"objectId": "obj-1",
					"coord": [10, 20, 100, 50],
					"attributes": {
						"color": {"val": "red", "confidence": 0.8}
					}
				}
			]
		}
	}`

	var we wireEvent
	require.NoError(t, json.Unmarshal([]byte(payload), &we))

	ev := we.toDomain()
	assert.Equal(t, "e1", ev.ID)
	assert.Equal(t, "cam-lpr-1", ev.CameraID)
	assert.Equal(t, time.UnixMilli(1735689600000).UTC(), ev.Start)
	require.NotNil(t, ev.End)
	assert.True(t, ev.HasDetectType("licensePlate"))

	require.NotNil(t, ev.Metadata)
	require.Len(t, ev.Metadata.DetectedThumbnails, 1)
	thumb := ev.Metadata.DetectedThumbnails[0]
	assert.Equal(t, "vehicle", thumb.Type)
	assert.Equal(t, "xyz 123", thumb.Name)
	assert.Equal(t, 87, thumb.Confidence)
	assert.Equal(t, []int{10, 20, 100, 50}, thumb.Coord)
	assert.Equal(t, "red", thumb.Attributes["color"].Value)
	assert.Equal(t, 80, thumb.Attributes["color"].Confidence)
}

func TestWireEventToDomainSparse(t *testing.T) {
	var we wireEvent
	require.NoError(t, json.Unmarshal([]byte(`{"id":"e2","camera":"c1","start":0}`), &we))

	ev := we.toDomain()
	assert.Equal(t, "e2", ev.ID)
	assert.Nil(t, ev.End)
	assert.Nil(t, ev.Metadata)
	assert.False(t, ev.HasDetectType("licensePlate"))
}
