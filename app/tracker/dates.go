package tracker

import (
	"errors"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var errEmptyDate = errors.New("empty date")

// ParseInstant parses a feed or API date string into an absolute UTC
// instant. Strings without an offset are taken as UTC, never local time.
func ParseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errEmptyDate
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// daysBetween returns the whole days from a to b, truncated toward zero.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a) / (24 * time.Hour))
}
