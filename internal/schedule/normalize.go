// Package schedule converts an author's local schedule (date, wall-clock
// time, IANA timezone) to the canonical UTC instant the dispatcher compares
// against, and back for redisplay. All scheduling decisions elsewhere in the
// pipeline operate on the UTC instant only.
package schedule

import (
	"errors"
	"fmt"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// ErrInvalidSchedule is returned for unknown timezone identifiers,
// malformed date/time input, and local times that do not exist because
// they fall inside a DST spring-forward gap.
var ErrInvalidSchedule = errors.New("invalid schedule")

// loadZone resolves an explicit IANA identifier. time.LoadLocation maps
// "" to UTC and "Local" to the host zone; neither is an identifier an
// author picked, so both are rejected rather than coerced.
func loadZone(tz string) (*time.Location, error) {
	if tz == "" || tz == "Local" {
		return nil, fmt.Errorf("%w: timezone identifier required", ErrInvalidSchedule)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", ErrInvalidSchedule, tz)
	}
	return loc, nil
}

// Normalize resolves (date, clock) in the given IANA timezone to a UTC
// instant. Timezone rules come from the full tz database, so instants far
// in the future land on the correct side of DST transitions.
func Normalize(date, clock, tz string) (time.Time, error) {
	loc, err := loadZone(tz)
	if err != nil {
		return time.Time{}, err
	}

	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q", ErrInvalidSchedule, date)
	}
	c, err := time.Parse(ClockLayout, clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad time %q", ErrInvalidSchedule, clock)
	}

	local := time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), 0, 0, loc)

	// time.Date silently normalizes wall-clock times that fall in a DST
	// gap onto the other side of the transition. Reject those instead of
	// publishing at a time the author never picked.
	if local.Hour() != c.Hour() || local.Minute() != c.Minute() ||
		local.Day() != d.Day() || local.Month() != d.Month() || local.Year() != d.Year() {
		return time.Time{}, fmt.Errorf("%w: %s %s does not exist in %s", ErrInvalidSchedule, date, clock, tz)
	}

	return local.UTC(), nil
}

// Denormalize renders a UTC instant back as the author-facing
// (date, clock) pair in the stored timezone.
func Denormalize(instant time.Time, tz string) (date, clock string, err error) {
	loc, err := loadZone(tz)
	if err != nil {
		return "", "", err
	}
	local := instant.In(loc)
	return local.Format(DateLayout), local.Format(ClockLayout), nil
}
