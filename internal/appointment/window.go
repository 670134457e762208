package appointment

import (
	"fmt"
	"time"
)

// BookingWindow bounds bookable dates to [today, today+Days] in Location.
type BookingWindow struct {
	Days     int
	Location *time.Location
}

// Bounds returns the first and last bookable dates relative to now.
func (w BookingWindow) Bounds(now time.Time) (first, last time.Time) {
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	first = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	last = first.AddDate(0, 0, w.Days)
	return first, last
}

// Check parses an ISO date and verifies it falls inside the window.
func (w BookingWindow) Check(date string, now time.Time) error {
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return fmt.Errorf("%w: %q is not a YYYY-MM-DD date", ErrInvalidDate, date)
	}

	first, last := w.Bounds(now)
	if d.Before(first) || d.After(last) {
		return fmt.Errorf("%w: %s is outside %s..%s", ErrInvalidDate, date,
			first.Format(DateLayout), last.Format(DateLayout))
	}
	return nil
}
