// Package clock supplies the wall-clock time of day used to match feeding slots.
package clock

import (
	"fmt"
	"time"
)

// Moment is a time-of-day reading.
// Synced is false while the source has no trustworthy time; callers must not
// match schedules against an unsynced Moment.
type Moment struct {
	Time    time.Time
	Hour    int
	Minute  int
	Weekday int // 0 = Sunday
	Synced  bool
}

// Source is polled once per control-loop tick. Implementations must not block.
type Source interface {
	Now() Moment
}

// At builds a synced Moment from t.
func At(t time.Time) Moment {
	return Moment{
		Time:    t,
		Hour:    t.Hour(),
		Minute:  t.Minute(),
		Weekday: int(t.Weekday()),
		Synced:  true,
	}
}

// sanityFloor is the earliest host time accepted as real. Boards without an
// RTC boot at the epoch.
var sanityFloor = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// SystemClock trusts the host clock once it is past sanityFloor.
type SystemClock struct {
	loc *time.Location
	now func() time.Time
}

// NewSystemClock returns a Source backed by time.Now in loc.
func NewSystemClock(loc *time.Location) *SystemClock {
	return &SystemClock{loc: loc, now: time.Now}
}

func (c *SystemClock) Now() Moment {
	t := c.now().In(c.loc)
	m := At(t)
	m.Synced = !t.Before(sanityFloor)
	return m
}

// LoadLocation resolves a configured zone name; empty means UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", name, err)
	}
	return loc, nil
}
