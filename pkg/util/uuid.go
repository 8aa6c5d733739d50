package util

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ParseUUID parses a game UUID in either the canonical dashed form or the
// 32-hex-character form returned by the Mojang profile API.
func ParseUUID(s string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid uuid %q: %w", s, err)
	}
	return id, nil
}

// FormatDashed renders a UUID in the standard 8-4-4-4-12 dashed form.
func FormatDashed(id uuid.UUID) string {
	return id.String()
}
