package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"petfeeder/internal/clock"
	"petfeeder/internal/logger"
	"petfeeder/internal/models"

	"go.uber.org/zap/zapcore"
)

func testLogger() *logger.Logger {
	return logger.New(logger.ErrorLevel, zapcore.AddSync(io.Discard))
}

// memNVM is an in-memory region with erased (0xFF) cells.
type memNVM struct {
	size     int
	region   []byte
	writes   int
	readErr  error
	writeErr error
}

func newMemNVM(size int) *memNVM { return &memNVM{size: size} }

func (m *memNVM) ReadRegion(context.Context) ([]byte, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	if m.region == nil {
		return nil, nil
	}
	return append([]byte(nil), m.region...), nil
}

func (m *memNVM) WriteRegion(_ context.Context, offset int, data []byte) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	if offset+len(data) > m.size {
		return errors.New("overflow")
	}
	if m.region == nil {
		m.region = bytes.Repeat([]byte{0xFF}, m.size)
	}
	copy(m.region[offset:], data)
	m.writes++
	return nil
}

// seed writes doc plus terminator without counting it as a store write.
func (m *memNVM) seed(doc []byte) {
	m.region = bytes.Repeat([]byte{0xFF}, m.size)
	copy(m.region, doc)
	m.region[len(doc)] = 0
}

type fakeMarkers struct {
	mu      sync.Mutex
	current models.DispenseMarker
	saves   []models.DispenseMarker
	loadErr error
}

func (f *fakeMarkers) Save(_ context.Context, m models.DispenseMarker) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = m
	f.saves = append(f.saves, m)
	return nil
}

func (f *fakeMarkers) Load(context.Context) (models.DispenseMarker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, f.loadErr
}

type fakeEvents struct {
	mu     sync.Mutex
	events []models.FeedEvent
}

func (f *fakeEvents) Append(_ context.Context, e models.FeedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakeEvents) List(_ context.Context, from, to time.Time, typ string) ([]models.FeedEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.FeedEvent
	for _, e := range f.events {
		if !from.IsZero() && e.OccurredAt.Before(from) {
			continue
		}
		if !to.IsZero() && e.OccurredAt.After(to) {
			continue
		}
		if typ != "" && e.Type != typ {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// types lists event types in order, leaving out STATE_CHANGE entries.
func (f *fakeEvents) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		if e.Type != models.EventStateChange {
			out = append(out, e.Type)
		}
	}
	return out
}

func (f *fakeEvents) count(typ string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

type fakeSwitch struct {
	mu     sync.Mutex
	closed bool
}

func (s *fakeSwitch) Closed() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed, nil
}

func (s *fakeSwitch) set(closed bool) {
	s.mu.Lock()
	s.closed = closed
	s.mu.Unlock()
}

type fakeMotor struct {
	mu  sync.Mutex
	on  bool
	log []bool
}

func (m *fakeMotor) Set(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.on = on
	m.log = append(m.log, on)
	return nil
}

func (m *fakeMotor) On() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.on
}

type fakeClock struct {
	mu sync.Mutex
	m  clock.Moment
}

func (c *fakeClock) Now() clock.Moment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m
}

func (c *fakeClock) set(m clock.Moment) {
	c.mu.Lock()
	c.m = m
	c.mu.Unlock()
}

type fakeNotifier struct {
	mu     sync.Mutex
	states []models.DispenseState
	docs   [][]byte
	up     bool
}

func (n *fakeNotifier) PublishState(s models.DispenseState) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.states = append(n.states, s)
}

func (n *fakeNotifier) PublishSchedule(doc []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.docs = append(n.docs, doc)
}

func (n *fakeNotifier) Connected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.up
}

// at returns a synced moment for hour:minute on weekday.
func at(hour, minute, weekday int) clock.Moment {
	return clock.Moment{Hour: hour, Minute: minute, Weekday: weekday, Synced: true}
}
