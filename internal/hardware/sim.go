package hardware

import (
	"sync"
	"time"
)

const (
	defaultRevolution = 2 * time.Second
	// closedFraction is the share of a revolution during which the gate
	// holds the limit switch closed.
	closedFraction = 0.1
)

// SimGate simulates the rotating gate: while the motor is energized the gate
// advances, and the switch reads closed only near the home position.
type SimGate struct {
	mu         sync.Mutex
	revolution time.Duration
	now        func() time.Time

	pos    float64 // fraction of a revolution, [0,1)
	on     bool
	jammed bool
	last   time.Time
}

// NewSimGate returns a gate at home with the motor off.
func NewSimGate(revolution time.Duration) *SimGate {
	return &SimGate{revolution: revolution, now: time.Now}
}

// advance moves the gate for the time elapsed since the last call.
func (g *SimGate) advance() {
	t := g.now()
	if g.on && !g.jammed && !g.last.IsZero() {
		g.pos += float64(t.Sub(g.last)) / float64(g.revolution)
		for g.pos >= 1 {
			g.pos--
		}
	}
	g.last = t
}

func (g *SimGate) Closed() (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.advance()
	return g.pos < closedFraction, nil
}

func (g *SimGate) Set(on bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.advance()
	g.on = on
	return nil
}

func (g *SimGate) On() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.on
}

// Jam stops the gate from moving, as if something blocked it.
func (g *SimGate) Jam(jammed bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.advance()
	g.jammed = jammed
}

// SetPosition places the gate at a fraction of a revolution.
func (g *SimGate) SetPosition(p float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pos = p
}
