package service

import (
	"errors"
	"fmt"
	"time"

	"petfeeder/internal/models"
)

var (
	ErrDispenseBusy = errors.New("dispense cycle already running")
	ErrNoPortions   = errors.New("no portions requested")
	ErrMotorStall   = errors.New("motor stall")
)

// DispenseInput is what the state machine sees on one tick.
type DispenseInput struct {
	SwitchClosed bool
	At           time.Time
}

// Transition describes one state change.
type Transition struct {
	From      models.DispenseState
	To        models.DispenseState
	Dispensed int
	Requested int
	Fault     error
}

// dispenseRule is one row of the transition table. next returns the state
// to move to and whether the guard passed; it may update counters.
type dispenseRule struct {
	enter   func(d *Dispenser)
	next    func(d *Dispenser, in DispenseInput) (models.DispenseState, bool)
	timeout func(d *Dispenser) time.Duration
}

var dispenseTable = map[models.DispenseState]dispenseRule{
	models.StateIdle: {
		enter: func(d *Dispenser) { d.pending = false },
		next: func(d *Dispenser, _ DispenseInput) (models.DispenseState, bool) {
			return models.StateStarting, d.pending
		},
	},
	models.StateStarting: {
		enter: func(d *Dispenser) {
			d.dispensed = 0
			d.fault = nil
		},
		next: func(*Dispenser, DispenseInput) (models.DispenseState, bool) {
			return models.StateUnlocking, true
		},
	},
	models.StateUnlocking: {
		next: func(_ *Dispenser, in DispenseInput) (models.DispenseState, bool) {
			return models.StateRotating, !in.SwitchClosed
		},
		timeout: func(d *Dispenser) time.Duration { return d.unlockTimeout },
	},
	models.StateRotating: {
		next: func(d *Dispenser, in DispenseInput) (models.DispenseState, bool) {
			if !in.SwitchClosed {
				return models.StateRotating, false
			}
			d.dispensed++
			if d.singleShot || d.dispensed >= d.requested {
				return models.StateLocking, true
			}
			return models.StateUnlocking, true
		},
		timeout: func(d *Dispenser) time.Duration { return d.rotateTimeout },
	},
	models.StateLocking: {
		next: func(*Dispenser, DispenseInput) (models.DispenseState, bool) {
			return models.StateIdle, true
		},
	},
}

// Dispenser is the feed-dispense state machine. It holds no hardware; the
// caller reads MotorOn after every Step and drives the output.
type Dispenser struct {
	state     models.DispenseState
	enteredAt time.Time

	pending    bool
	requested  int
	dispensed  int
	singleShot bool
	fault      error

	unlockTimeout time.Duration
	rotateTimeout time.Duration
}

// NewDispenser returns an idle machine. A zero timeout disables that check.
func NewDispenser(unlockTimeout, rotateTimeout time.Duration) *Dispenser {
	return &Dispenser{
		state:         models.StateIdle,
		unlockTimeout: unlockTimeout,
		rotateTimeout: rotateTimeout,
	}
}

// Trigger requests a dispense cycle. Requests while a cycle is pending or
// running are rejected, never queued. A single-shot cycle dispenses exactly
// one portion whatever requested says.
func (d *Dispenser) Trigger(requested int, singleShot bool) error {
	if d.state != models.StateIdle || d.pending {
		return ErrDispenseBusy
	}
	if singleShot {
		if requested < 1 {
			requested = 1
		}
	} else if requested <= 0 {
		return ErrNoPortions
	}
	d.requested = requested
	d.singleShot = singleShot
	d.pending = true
	return nil
}

// Step evaluates the current state's guard and moves at most one state.
// The stall timeout only applies when the guard does not pass on this tick.
func (d *Dispenser) Step(in DispenseInput) (Transition, bool) {
	rule := dispenseTable[d.state]
	from := d.state

	if next, ok := rule.next(d, in); ok {
		d.enter(next, in.At)
		return d.transition(from), true
	}

	if rule.timeout != nil {
		if limit := rule.timeout(d); limit > 0 && in.At.Sub(d.enteredAt) >= limit {
			d.fault = fmt.Errorf("%w in %s after %s", ErrMotorStall, from, limit)
			d.enter(models.StateLocking, in.At)
			return d.transition(from), true
		}
	}
	return Transition{}, false
}

// Resume re-enters a cycle interrupted by power loss. If the gate already
// reads closed the machine goes straight to Locking; otherwise it finishes
// the current revolution as a single shot.
func (d *Dispenser) Resume(m models.DispenseMarker, switchClosed bool, at time.Time) Transition {
	from := d.state
	d.requested = m.Requested
	d.dispensed = m.Dispensed
	d.singleShot = true
	d.pending = false
	if switchClosed {
		d.enter(models.StateLocking, at)
	} else {
		d.enter(models.StateRotating, at)
	}
	return d.transition(from)
}

func (d *Dispenser) enter(s models.DispenseState, at time.Time) {
	d.state = s
	d.enteredAt = at
	if r := dispenseTable[s]; r.enter != nil {
		r.enter(d)
	}
}

func (d *Dispenser) transition(from models.DispenseState) Transition {
	return Transition{
		From:      from,
		To:        d.state,
		Dispensed: d.dispensed,
		Requested: d.requested,
		Fault:     d.fault,
	}
}

// MotorOn reports whether the motor must be energized in the current state.
func (d *Dispenser) MotorOn() bool {
	return d.state == models.StateUnlocking || d.state == models.StateRotating
}

func (d *Dispenser) State() models.DispenseState { return d.state }
func (d *Dispenser) Pending() bool               { return d.pending }
func (d *Dispenser) Requested() int              { return d.requested }
func (d *Dispenser) Dispensed() int              { return d.dispensed }
func (d *Dispenser) SingleShot() bool            { return d.singleShot }

// Fault is the stall error of the current or last cycle, if any.
func (d *Dispenser) Fault() error { return d.fault }
