// Package policy decides which cameras are admitted to the ingestion
// pipeline. The filter is allow-list-first: an explicit camera ID list wins
// over name substring matching, which wins over the skip deny-list.
package policy

import (
	"fmt"
	"strings"
)

// DefaultSkipSubstrings covers generic kiosk/entry/exit camera types that
// are not LPR-capable.
var DefaultSkipSubstrings = []string{"Entry", "Exit", "Kiosk"}

// CameraFilter holds the configured admit/skip rules.
type CameraFilter struct {
	AllowedIDs            map[string]struct{}
	AllowedNameSubstrings []string
	SkipSubstrings        []string
}

// NewCameraFilter builds a filter from the configured lists. An empty skip
// list falls back to DefaultSkipSubstrings.
func NewCameraFilter(allowedIDs, allowedNames, skipSubstrings []string) *CameraFilter {
	ids := make(map[string]struct{}, len(allowedIDs))
	for _, id := range allowedIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids[id] = struct{}{}
		}
	}
	skip := skipSubstrings
	if len(skip) == 0 {
		skip = DefaultSkipSubstrings
	}
	return &CameraFilter{
		AllowedIDs:            ids,
		AllowedNameSubstrings: allowedNames,
		SkipSubstrings:        skip,
	}
}

// Admit reports whether a camera passes the policy. On rejection the second
// return value carries the reason for observability.
func (f *CameraFilter) Admit(cameraID, cameraName string) (bool, string) {
	if len(f.AllowedIDs) > 0 {
		if _, ok := f.AllowedIDs[cameraID]; !ok {
			return false, fmt.Sprintf("camera_id %s not in allowed IDs", cameraID)
		}
		return true, ""
	}

	if len(f.AllowedNameSubstrings) > 0 {
		for _, sub := range f.AllowedNameSubstrings {
			if strings.Contains(cameraName, sub) {
				return true, ""
			}
		}
		return false, fmt.Sprintf("camera_name %q not matching allowed names", cameraName)
	}

	lower := strings.ToLower(cameraName)
	for _, sub := range f.SkipSubstrings {
		if sub != "" && strings.Contains(lower, strings.ToLower(sub)) {
			return false, fmt.Sprintf("camera_name %q matches skip substring %q", cameraName, sub)
		}
	}
	return true, ""
}
