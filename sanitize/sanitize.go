// Package sanitize normalizes free-text input before it enters the
// data model: markup is stripped and surrounding whitespace removed.
package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var policy = bluemonday.StrictPolicy()

// Clean strips every HTML element from raw and trims surrounding
// whitespace. It is pure and idempotent; empty or whitespace-only
// input yields the empty string.
func Clean(raw string) string {
	return strings.TrimSpace(policy.Sanitize(raw))
}
