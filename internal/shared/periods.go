package shared

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// PeriodKind selects the reporting window.
type PeriodKind string

// Period kinds.
const (
	PeriodWeek  PeriodKind = "week"
	PeriodMonth PeriodKind = "month"
)

// ParsePeriodKind validates raw as a period kind.
func ParsePeriodKind(raw string) (PeriodKind, error) {
	switch PeriodKind(strings.ToLower(strings.TrimSpace(raw))) {
	case PeriodWeek:
		return PeriodWeek, nil
	case PeriodMonth:
		return PeriodMonth, nil
	default:
		return "", fmt.Errorf("%w: period must be week or month", ErrValidation)
	}
}

// Calendar resolves business days in the bakery's timezone.
type Calendar struct {
	loc *time.Location
}

// NewCalendar loads the named IANA timezone.
func NewCalendar(name string) (Calendar, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Calendar{}, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return Calendar{loc: loc}, nil
}

// Location returns the calendar timezone, UTC when unset.
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// BusinessDate truncates t to midnight of its local calendar day.
func (c Calendar) BusinessDate(t time.Time) time.Time {
	local := t.In(c.Location())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.Location())
}

// ParseDate parses YYYY-MM-DD in the calendar timezone. Empty input yields today.
func (c Calendar) ParseDate(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return c.BusinessDate(now), nil
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, c.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
	}
	return t, nil
}

// Bounds returns the first and last business day of the period containing ref.
// Weeks start on Monday.
func (c Calendar) Bounds(kind PeriodKind, ref time.Time) (time.Time, time.Time) {
	day := c.BusinessDate(ref)
	switch kind {
	case PeriodMonth:
		start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, c.Location())
		return start, start.AddDate(0, 1, -1)
	default:
		offset := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 6)
	}
}
