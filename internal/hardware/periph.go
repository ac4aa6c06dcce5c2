package hardware

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// periphSwitch is an active-low input with the internal pull-up enabled.
type periphSwitch struct {
	pin gpio.PinIO
}

func (s *periphSwitch) Closed() (bool, error) {
	return s.pin.Read() == gpio.Low, nil
}

type periphMotor struct {
	pin gpio.PinIO
	on  bool
}

func (m *periphMotor) Set(on bool) error {
	if err := m.pin.Out(gpio.Level(on)); err != nil {
		return fmt.Errorf("drive %s: %w", m.pin.Name(), err)
	}
	m.on = on
	return nil
}

func (m *periphMotor) On() bool { return m.on }

func openPeriph(switchPin, motorPin string) (*periphSwitch, *periphMotor, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("init periph host: %w", err)
	}
	in := gpioreg.ByName(switchPin)
	if in == nil {
		return nil, nil, fmt.Errorf("switch pin %q not found", switchPin)
	}
	if err := in.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, nil, fmt.Errorf("configure %s as input: %w", switchPin, err)
	}
	out := gpioreg.ByName(motorPin)
	if out == nil {
		return nil, nil, fmt.Errorf("motor pin %q not found", motorPin)
	}
	m := &periphMotor{pin: out}
	// start de-energized
	if err := m.Set(false); err != nil {
		return nil, nil, err
	}
	return &periphSwitch{pin: in}, m, nil
}
