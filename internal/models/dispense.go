package models

import "time"

// DispenseState is the state of the feed-dispense state machine.
type DispenseState string

const (
	StateIdle      DispenseState = "IDLE"
	StateStarting  DispenseState = "STARTING"
	StateUnlocking DispenseState = "UNLOCKING"
	StateRotating  DispenseState = "ROTATING"
	StateLocking   DispenseState = "LOCKING"
)

func (s DispenseState) String() string { return string(s) }

// DispenseMarker is persisted while a dispense cycle is running so a restart
// can tell that the gate may be mid-rotation.
type DispenseMarker struct {
	InProgress bool      `json:"in_progress"`
	Requested  int       `json:"requested"`
	Dispensed  int       `json:"dispensed"`
	SingleShot bool      `json:"single_shot"`
	UpdatedAt  time.Time `json:"updated_at"`
}
