package model

import (
	"regexp"
	"strings"
)

const idLength = 22

var idPattern = regexp.MustCompile(`^[A-Za-z0-9]{22}$`)

// NormalizeID validates a track/artist/album/playlist identifier: a 22-char
// alphanumeric token, optionally wrapped in a full "spotify:type:id" URI whose
// prefix is stripped before validation.
func NormalizeID(field, raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if strings.Contains(id, ":") {
		parts := strings.Split(id, ":")
		id = parts[len(parts)-1]
	}
	if !idPattern.MatchString(id) {
		return "", Invalid(field, "must be a %d-character alphanumeric id (or spotify URI), got %q", idLength, raw)
	}
	return id, nil
}

// TrackURI derives the canonical URI form from a bare id.
func TrackURI(id string) string { return "spotify:track:" + id }
