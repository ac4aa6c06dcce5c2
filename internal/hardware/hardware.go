// Package hardware abstracts the feeder's two digital lines: the limit
// switch input and the motor enable output.
package hardware

import (
	"fmt"
	"time"

	"petfeeder/internal/config"
)

// Switch reads the gate limit switch. Closed means the gate is at its home
// (locked) position.
type Switch interface {
	Closed() (bool, error)
}

// Motor drives the motor enable line.
type Motor interface {
	Set(on bool) error
	On() bool
}

// Open builds the switch and motor for the configured driver. The switch is
// always wrapped in a Debouncer.
func Open(cfg config.GPIOConfig) (Switch, Motor, error) {
	var (
		sw  Switch
		mot Motor
	)
	switch cfg.Driver {
	case "periph":
		s, m, err := openPeriph(cfg.SwitchPin, cfg.MotorPin)
		if err != nil {
			return nil, nil, err
		}
		sw, mot = s, m
	case "sim":
		g := NewSimGate(defaultRevolution)
		sw, mot = g, g
	default:
		return nil, nil, fmt.Errorf("unknown gpio driver %q", cfg.Driver)
	}
	return NewDebouncer(sw, cfg.Debounce, time.Now), mot, nil
}
