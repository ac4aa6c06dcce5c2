package models

import "time"

// DeviceStatus is the read-only snapshot served to status queries.
type DeviceStatus struct {
	DeviceID    string        `json:"device_id"`
	State       DispenseState `json:"state"`
	MotorOn     bool          `json:"motor_on"`
	Dispensed   int           `json:"dispensed"`
	Requested   int           `json:"requested,omitempty"`
	SingleShot  bool          `json:"single_shot,omitempty"`
	Fault       string        `json:"fault,omitempty"` // last fault, e.g. "motor stall in ROTATING"
	ClockSynced bool          `json:"clock_synced"`
	RemoteLink  bool          `json:"remote_link"`
	Schedule    Schedule      `json:"schedule"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
