package utils

import (
	"regexp"
	"strings"
)

// PlateRegex is the canonical plate format: uppercase alphanumerics and
// hyphens, at least two characters.
var PlateRegex = regexp.MustCompile(`^[A-Z0-9-]{2,}$`)

var alnum = regexp.MustCompile(`[A-Z0-9]`)

var nonPlateChars = regexp.MustCompile(`[^A-Z0-9-]`)

// placeholders the vendor emits in place of a real plate read.
var placeholders = map[string]struct{}{
	"undefined": {},
	"none":      {},
	"null":      {},
	"no-plate":  {},
	"unread":    {},
}

// SanitizePlate normalizes a raw vendor plate string to its canonical form:
// uppercased with everything outside [A-Z0-9-] stripped. It returns "" for
// empty or placeholder inputs and for results shorter than 2 characters.
func SanitizePlate(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if _, ok := placeholders[strings.ToLower(s)]; ok {
		return ""
	}
	s = nonPlateChars.ReplaceAllString(s, "")
	if len(s) < 2 {
		return ""
	}
	return s
}

// ValidPlate reports whether a sanitized plate satisfies the canonical
// format. A string of only hyphens passes the pattern but carries no
// information, so at least one alphanumeric character is required.
func ValidPlate(plate string) bool {
	return PlateRegex.MatchString(plate) && alnum.MatchString(plate)
}

// MaskPlate masks all but the last two characters of a plate for logging.
// When allowRaw is set the plate is returned unchanged.
func MaskPlate(plate string, allowRaw bool) string {
	if allowRaw || plate == "" {
		return plate
	}
	if len(plate) <= 2 {
		return strings.Repeat("*", len(plate))
	}
	return strings.Repeat("*", len(plate)-2) + plate[len(plate)-2:]
}
