package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizePlate(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"simple", "abc123", "ABC123"},
		{"whitespace and case", "  ab-12 ", "AB-12"},
		{"inner space stripped", "xyz 123", "XYZ123"},
		{"placeholder undefined", "undefined", ""},
		{"placeholder mixed case", "UnDeFiNeD", ""},
		{"placeholder none", "none", ""},
		{"placeholder null", "null", ""},
		{"placeholder unread", "unread", ""},
		{"placeholder no-plate", "no-plate", ""},
		{"empty", "", ""},
		{"only whitespace", "   ", ""},
		{"too short", "a", ""},
		{"too short after strip", "a!", ""},
		{"symbols stripped", "AB*12#", "AB12"},
		{"minimum length", "ab", "AB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizePlate(tt.raw))
		})
	}
}

func TestSanitizePlateFixedPoint(t *testing.T) {
	for _, plate := range []string{"ABC123", "AB-12", "XYZ999"} {
		assert.Equal(t, plate, SanitizePlate(SanitizePlate(plate)))
	}
}

func TestValidPlate(t *testing.T) {
	assert.True(t, ValidPlate("AB"))
	assert.True(t, ValidPlate("ABC123"))
	assert.True(t, ValidPlate("AB-12"))
	assert.False(t, ValidPlate("--"), "hyphen-only carries no information")
	assert.False(t, ValidPlate("a1"), "lowercase is not canonical")
	assert.False(t, ValidPlate("A"))
	assert.False(t, ValidPlate(""))
}

func TestMaskPlate(t *testing.T) {
	assert.Equal(t, "****23", MaskPlate("ABC123", false))
	assert.Equal(t, "ABC123", MaskPlate("ABC123", true))
	assert.Equal(t, "**", MaskPlate("AB", false))
	assert.Equal(t, "", MaskPlate("", false))
}
