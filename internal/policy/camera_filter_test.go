package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowedIDsTakePrecedence(t *testing.T) {
	f := NewCameraFilter([]string{"cam1"}, []string{"Lobby"}, nil)

	admitted, reason := f.Admit("cam2", "Lobby Cam")
	assert.False(t, admitted, "ID allow-list must win over a name match")
	assert.Contains(t, reason, "cam2")

	admitted, _ = f.Admit("cam1", "Anything")
	assert.True(t, admitted)
}

func TestAllowedNameSubstrings(t *testing.T) {
	f := NewCameraFilter(nil, []string{"LPR"}, nil)

	admitted, _ := f.Admit("cam1", "LPR Left")
	assert.True(t, admitted)

	admitted, reason := f.Admit("cam2", "Front Door")
	assert.False(t, admitted)
	assert.Contains(t, reason, "Front Door")

	// Name matching is case-sensitive as configured.
	admitted, _ = f.Admit("cam3", "lpr right")
	assert.False(t, admitted)
}

func TestSkipSubstringFallback(t *testing.T) {
	f := NewCameraFilter(nil, nil, nil)

	tests := []struct {
		name     string
		admitted bool
	}{
		{"LPR Left", true},
		{"Main Entry", false},
		{"Garage Exit", false},
		{"Kiosk 2", false},
		{"garage exit", false}, // skip matching is case-insensitive
		{"Driveway", true},
	}
	for _, tt := range tests {
		admitted, _ := f.Admit("cam", tt.name)
		assert.Equal(t, tt.admitted, admitted, "camera %q", tt.name)
	}
}

func TestCustomSkipList(t *testing.T) {
	f := NewCameraFilter(nil, nil, []string{"Doorbell"})

	admitted, _ := f.Admit("cam", "Front Entry")
	assert.True(t, admitted, "custom skip list replaces the default")

	admitted, _ = f.Admit("cam", "Doorbell South")
	assert.False(t, admitted)
}
