package service

import (
	"context"

	"petfeeder/internal/clock"
	"petfeeder/internal/models"
)

// scheduleStorer is the part of ScheduleStore the Scheduler relies on.
type scheduleStorer interface {
	Load(ctx context.Context) models.Schedule
	Save(ctx context.Context, raw []byte) (models.Schedule, error)
	Document() []byte
	SerializedSize() int
}

// Scheduler owns the in-memory schedule and decides when a slot is due.
// It is not safe for concurrent use; the control loop is its only caller.
type Scheduler struct {
	store   scheduleStorer
	entries models.Schedule
	current int // -1 until the first match
}

// NewScheduler seeds the schedule from the store.
func NewScheduler(ctx context.Context, store scheduleStorer) *Scheduler {
	return &Scheduler{
		store:   store,
		entries: store.Load(ctx),
		current: -1,
	}
}

// FindDue returns the lowest slot whose time equals now and which has not
// fired on now's weekday. It has no side effects.
func (s *Scheduler) FindDue(now clock.Moment) (int, bool) {
	if !now.Synced {
		return -1, false
	}
	for i, e := range s.entries {
		if e.Hour == now.Hour && e.Minute == now.Minute && !e.FiredOn(now.Weekday) {
			return i, true
		}
	}
	return -1, false
}

// MarkFired stamps slot as fired on weekday and makes it the current entry.
func (s *Scheduler) MarkFired(slot, weekday int) {
	if slot < 0 || slot >= len(s.entries) {
		return
	}
	s.entries[slot].LastDayRan = uint8(weekday)
	s.current = slot
}

// IsFeedingTime finds a due slot and consumes it.
func (s *Scheduler) IsFeedingTime(now clock.Moment) (models.ScheduleEntry, bool) {
	slot, ok := s.FindDue(now)
	if !ok {
		return models.ScheduleEntry{}, false
	}
	s.MarkFired(slot, now.Weekday)
	return s.entries[slot], true
}

// CurrentEntry is the most recently matched entry.
func (s *Scheduler) CurrentEntry() (models.ScheduleEntry, bool) {
	if s.current < 0 {
		return models.ScheduleEntry{}, false
	}
	return s.entries[s.current], true
}

// UpdateSchedules persists raw and replaces the whole schedule. Every slot
// becomes eligible again today. On error the previous schedule stays.
func (s *Scheduler) UpdateSchedules(ctx context.Context, raw []byte) error {
	sched, err := s.store.Save(ctx, raw)
	if err != nil {
		return err
	}
	s.entries = sched.ResetFired()
	s.current = -1
	return nil
}

// Entries returns a copy of the schedule.
func (s *Scheduler) Entries() models.Schedule { return s.entries }

// Snapshot returns the persisted document bytes.
func (s *Scheduler) Snapshot() []byte { return s.store.Document() }

func (s *Scheduler) SerializedSize() int { return s.store.SerializedSize() }
