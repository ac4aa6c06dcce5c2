package service

import (
	"context"
	"time"

	"petfeeder/internal/clock"
	"petfeeder/internal/models"
)

// refreshStatus publishes a copy of the loop's state for readers on other
// goroutines.
func (c *Controller) refreshStatus(moment clock.Moment, now time.Time) {
	st := models.DeviceStatus{
		DeviceID:    c.deviceID,
		State:       c.machine.State(),
		MotorOn:     c.machine.MotorOn(),
		Dispensed:   c.machine.Dispensed(),
		ClockSynced: moment.Synced,
		RemoteLink:  c.notifier.Connected(),
		Schedule:    c.scheduler.Entries(),
		UpdatedAt:   toUTC(now),
	}
	if st.State != models.StateIdle || c.machine.Pending() {
		st.Requested = c.machine.Requested()
		st.SingleShot = c.machine.SingleShot()
	}
	if err := c.machine.Fault(); err != nil {
		st.Fault = err.Error()
	}

	c.mu.Lock()
	c.status = st
	c.mu.Unlock()
}

// GetStatus returns the snapshot taken at the end of the last tick.
func (c *Controller) GetStatus(ctx context.Context) (models.DeviceStatus, error) {
	if err := ctx.Err(); err != nil {
		return models.DeviceStatus{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status, nil
}

// toUTC normalizes non-zero time to UTC, preserving zero values.
func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
