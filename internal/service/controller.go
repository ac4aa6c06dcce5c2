package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"petfeeder/internal/clock"
	"petfeeder/internal/hardware"
	"petfeeder/internal/logger"
	"petfeeder/internal/models"
	"petfeeder/internal/repository"

	"github.com/google/uuid"
)

// CommandKind identifies an inbound command.
type CommandKind string

const (
	CommandFeed        CommandKind = "FEED"
	CommandSetSchedule CommandKind = "SET_SCHEDULE"
	CommandGetSchedule CommandKind = "GET_SCHEDULE"
)

// Command is queued for the control loop. Reply is optional and must be
// buffered; when nil, results are published through the Notifier or logged.
type Command struct {
	Kind    CommandKind
	Payload []byte
	Reply   chan<- CommandResult
	// Done, when set, is closed once the submitter stops waiting. A command
	// whose Done is closed before the loop reaches it is dropped.
	Done <-chan struct{}
}

type CommandResult struct {
	Document []byte
	Err      error
}

var (
	ErrQueueFull      = errors.New("command queue full")
	ErrCommandExpired = errors.New("command abandoned before it ran")
)

// Notifier receives outbound notifications. Implementations must not block.
type Notifier interface {
	PublishState(state models.DispenseState)
	PublishSchedule(doc []byte)
	Connected() bool
}

type noopNotifier struct{}

func (noopNotifier) PublishState(models.DispenseState) {}
func (noopNotifier) PublishSchedule([]byte)            {}
func (noopNotifier) Connected() bool                   { return false }

// ControllerConfig holds the Controller's collaborators.
type ControllerConfig struct {
	DeviceID  string
	Switch    hardware.Switch
	Motor     hardware.Motor
	Clock     clock.Source
	Scheduler *Scheduler
	Dispenser *Dispenser
	Markers   repository.MarkerRepo
	Events    repository.EventRepo
	Notifier  Notifier
	Log       *logger.Logger
	QueueSize int
}

// Controller is the device context: it owns the scheduler, the dispense
// state machine and the I/O lines, and advances them one tick at a time
// from a single goroutine.
type Controller struct {
	deviceID  string
	sw        hardware.Switch
	motor     hardware.Motor
	clock     clock.Source
	scheduler *Scheduler
	machine   *Dispenser
	markers   repository.MarkerRepo
	events    repository.EventRepo
	notifier  Notifier
	log       *logger.Logger

	commands     chan Command
	switchClosed bool

	mu     sync.RWMutex
	status models.DeviceStatus
}

func NewController(cfg ControllerConfig) *Controller {
	if cfg.Notifier == nil {
		cfg.Notifier = noopNotifier{}
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	c := &Controller{
		deviceID:     cfg.DeviceID,
		sw:           cfg.Switch,
		motor:        cfg.Motor,
		clock:        cfg.Clock,
		scheduler:    cfg.Scheduler,
		machine:      cfg.Dispenser,
		markers:      cfg.Markers,
		events:       cfg.Events,
		notifier:     cfg.Notifier,
		log:          cfg.Log,
		commands:     make(chan Command, cfg.QueueSize),
		switchClosed: true,
	}
	c.refreshStatus(clock.Moment{}, time.Now())
	return c
}

// SetNotifier swaps the notifier. Call before Run.
func (c *Controller) SetNotifier(n Notifier) {
	if n == nil {
		n = noopNotifier{}
	}
	c.notifier = n
}

// Submit queues cmd without blocking.
func (c *Controller) Submit(cmd Command) error {
	select {
	case c.commands <- cmd:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run recovers an interrupted cycle, then ticks until ctx is cancelled.
// The motor is always left de-energized on return.
func (c *Controller) Run(ctx context.Context, tick time.Duration) {
	defer c.stopMotor()

	c.Recover(ctx, time.Now())

	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			c.Tick(ctx, now)
		}
	}
}

// Recover inspects the persisted marker and resumes a cycle that was cut
// short by a restart.
func (c *Controller) Recover(ctx context.Context, now time.Time) {
	m, err := c.markers.Load(ctx)
	if err != nil {
		c.log.Errorw("dispense_marker_load_failed", "err", err)
		return
	}
	if !m.InProgress {
		return
	}
	c.readSwitch()
	tr := c.machine.Resume(m, c.switchClosed, now)
	c.log.Warnw("dispense_recovered", "to", tr.To, "switch_closed", c.switchClosed,
		"requested", m.Requested, "dispensed", m.Dispensed)
	c.appendEvent(ctx, now, models.EventRecovery, "interrupted dispense cycle resumed", map[string]any{
		"state":         tr.To,
		"switch_closed": c.switchClosed,
		"requested":     m.Requested,
		"dispensed":     m.Dispensed,
	})
	c.notifier.PublishState(tr.To)
	c.driveMotor()
	c.refreshStatus(c.clock.Now(), now)
}

// Tick runs one control-loop iteration: read the switch, handle commands,
// read the clock, step the state machine, then check the schedule while idle.
func (c *Controller) Tick(ctx context.Context, now time.Time) {
	c.readSwitch()
	c.drainCommands(ctx, now)
	moment := c.clock.Now()

	if tr, ok := c.machine.Step(DispenseInput{SwitchClosed: c.switchClosed, At: now}); ok {
		c.applyTransition(ctx, tr, now)
	}
	c.driveMotor()

	if c.machine.State() == models.StateIdle && !c.machine.Pending() {
		c.checkSchedule(ctx, moment, now)
	}
	c.refreshStatus(moment, now)
}

func (c *Controller) readSwitch() {
	closed, err := c.sw.Closed()
	if err != nil {
		c.log.Errorw("switch_read_failed", "err", err)
		return
	}
	c.switchClosed = closed
}

func (c *Controller) drainCommands(ctx context.Context, now time.Time) {
	for {
		select {
		case cmd := <-c.commands:
			c.handleCommand(ctx, cmd, now)
		default:
			return
		}
	}
}

func (c *Controller) handleCommand(ctx context.Context, cmd Command, now time.Time) {
	var res CommandResult
	if abandoned(cmd) {
		c.log.Infow("command_expired", "kind", cmd.Kind)
		res.Err = ErrCommandExpired
		c.reply(cmd, res)
		return
	}
	switch cmd.Kind {
	case CommandFeed:
		res.Err = c.machine.Trigger(1, true)
		if res.Err != nil {
			c.log.Infow("manual_feed_ignored", "state", c.machine.State(), "err", res.Err)
		} else {
			c.log.Infow("manual_feed_requested")
		}
	case CommandSetSchedule:
		res.Err = c.scheduler.UpdateSchedules(ctx, cmd.Payload)
		if res.Err != nil {
			c.log.Errorw("schedule_update_rejected", "err", res.Err, "bytes", len(cmd.Payload))
		} else {
			doc := c.scheduler.Snapshot()
			res.Document = doc
			c.log.Infow("schedule_updated", "bytes", len(doc))
			c.appendEvent(ctx, now, models.EventScheduleUpdate, "schedule replaced", map[string]any{
				"schedule": c.scheduler.Entries(),
			})
		}
	case CommandGetSchedule:
		res.Document = c.scheduler.Snapshot()
		if cmd.Reply == nil {
			c.notifier.PublishSchedule(res.Document)
		}
	default:
		res.Err = fmt.Errorf("unknown command %q", cmd.Kind)
		c.log.Warnw("unknown_command", "kind", cmd.Kind)
	}
	c.reply(cmd, res)
}

func abandoned(cmd Command) bool {
	if cmd.Done == nil {
		return false
	}
	select {
	case <-cmd.Done:
		return true
	default:
		return false
	}
}

func (c *Controller) reply(cmd Command, res CommandResult) {
	if cmd.Reply == nil {
		return
	}
	select {
	case cmd.Reply <- res:
	default:
	}
}

func (c *Controller) checkSchedule(ctx context.Context, moment clock.Moment, now time.Time) {
	entry, ok := c.scheduler.IsFeedingTime(moment)
	if !ok {
		return
	}
	if entry.Portion == 0 {
		c.log.Infow("feeding_time_skipped", "hour", entry.Hour, "minute", entry.Minute)
		return
	}
	if err := c.machine.Trigger(entry.Portion, false); err != nil {
		c.log.Warnw("scheduled_feed_rejected", "err", err)
		return
	}
	c.log.Infow("feeding_time", "hour", entry.Hour, "minute", entry.Minute, "portion", entry.Portion)
}

func (c *Controller) applyTransition(ctx context.Context, tr Transition, now time.Time) {
	c.log.Debugw("dispense_state_change", "from", tr.From, "to", tr.To, "dispensed", tr.Dispensed)
	c.notifier.PublishState(tr.To)
	c.appendEvent(ctx, now, models.EventStateChange, fmt.Sprintf("%s -> %s", tr.From, tr.To), map[string]any{
		"from":      tr.From,
		"to":        tr.To,
		"dispensed": tr.Dispensed,
	})

	switch tr.To {
	case models.StateStarting:
		// persisted before the motor is energized on the next tick
		c.saveMarker(ctx, now, true)
		c.appendEvent(ctx, now, models.EventFeedStart, "dispense cycle started", map[string]any{
			"requested":   tr.Requested,
			"single_shot": c.machine.SingleShot(),
		})
	case models.StateUnlocking:
		if tr.From == models.StateRotating {
			c.saveMarker(ctx, now, true)
		}
	case models.StateLocking:
		if tr.Fault != nil {
			c.log.Errorw("dispense_fault", "err", tr.Fault, "from", tr.From, "dispensed", tr.Dispensed)
			c.appendEvent(ctx, now, models.EventFault, tr.Fault.Error(), map[string]any{
				"state":     tr.From,
				"dispensed": tr.Dispensed,
				"requested": tr.Requested,
			})
		}
	case models.StateIdle:
		c.saveMarker(ctx, now, false)
		c.appendEvent(ctx, now, models.EventFeedDone, "dispense cycle finished", map[string]any{
			"dispensed": tr.Dispensed,
			"requested": tr.Requested,
		})
	}
}

func (c *Controller) saveMarker(ctx context.Context, now time.Time, inProgress bool) {
	m := models.DispenseMarker{UpdatedAt: now}
	if inProgress {
		m.InProgress = true
		m.Requested = c.machine.Requested()
		m.Dispensed = c.machine.Dispensed()
		m.SingleShot = c.machine.SingleShot()
	}
	if err := c.markers.Save(ctx, m); err != nil {
		c.log.Errorw("dispense_marker_save_failed", "err", err, "in_progress", inProgress)
	}
}

func (c *Controller) driveMotor() {
	want := c.machine.MotorOn()
	if c.motor.On() == want {
		return
	}
	if err := c.motor.Set(want); err != nil {
		c.log.Errorw("motor_drive_failed", "on", want, "err", err)
	}
}

func (c *Controller) stopMotor() {
	if err := c.motor.Set(false); err != nil {
		c.log.Errorw("motor_stop_failed", "err", err)
	}
}

func (c *Controller) appendEvent(ctx context.Context, now time.Time, typ, desc string, meta map[string]any) {
	err := c.events.Append(ctx, models.FeedEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  now.UTC(),
		Type:        typ,
		Description: desc,
		Metadata:    meta,
	})
	if err != nil {
		c.log.Errorw("feed_event_append_failed", "type", typ, "err", err)
	}
}
