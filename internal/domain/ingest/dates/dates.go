// Package dates parses the date spellings that show up across club exports.
package dates

import (
	"fmt"
	"strings"
	"time"
)

// Known formats, tried in order. Day-first formats come before month-first:
// every export seen so far is French-localized.
var formats = []string{
	"02/01/2006",
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"02-01-2006",
	"2006/01/02",
	"02.01.2006",
	"01/02/2006",
}

// Parse attempts each known format and returns the first that fits.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %s", s)
}

// ISOWeek renders a timestamp as its ISO week bucket, e.g. "2025-W31".
func ISOWeek(t time.Time) string {
	y, w := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", y, w)
}

// Month renders a timestamp as its month bucket, e.g. "2025-07".
func Month(t time.Time) string {
	return t.Format("2006-01")
}
