package types

import (
	"strings"
	"time"

	ierr "github.com/clinicdesk/clinicdesk/internal/errors"
)

const (
	DateFormatISO    = "2006-01-02"
	DateFormatFrench = "02/01/2006"
)

// ParseFlexDate accepts YYYY-MM-DD or DD/MM/YYYY and returns midnight of
// that day in loc.
func ParseFlexDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)
	for _, layout := range []string{DateFormatISO, DateFormatFrench} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ierr.NewError("invalid date format").
		WithHintf("Invalid date %q, use YYYY-MM-DD or DD/MM/YYYY", s).
		Mark(ierr.ErrValidation)
}

// StartOfDay truncates t to midnight in its own location
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last nanosecond of t's day in its own location
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// DateOnly keeps the calendar day of t, as seen in t's location, and pins it
// to midnight UTC. Every DATE column value goes through it so that the day
// never shifts with the session timezone.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// LocalDate returns the calendar day of now in loc as a DateOnly value
func LocalDate(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return DateOnly(now.In(loc))
}
