package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"petfeeder/internal/config"
	"petfeeder/internal/models"
	"petfeeder/internal/repository"
	"petfeeder/internal/repository/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rig struct {
	ctrl     *Controller
	nvm      *memNVM
	sw       *fakeSwitch
	motor    *fakeMotor
	clock    *fakeClock
	markers  *fakeMarkers
	events   *fakeEvents
	notifier *fakeNotifier
	tick     int
}

func newRig(t *testing.T, queue int) *rig {
	t.Helper()
	r := &rig{
		nvm:      newMemNVM(testRegionSize),
		sw:       &fakeSwitch{closed: true},
		motor:    &fakeMotor{},
		clock:    &fakeClock{},
		markers:  &fakeMarkers{},
		events:   &fakeEvents{},
		notifier: &fakeNotifier{up: true},
	}
	ctx := context.Background()
	r.ctrl = NewController(ControllerConfig{
		DeviceID:  "loki",
		Switch:    r.sw,
		Motor:     r.motor,
		Clock:     r.clock,
		Scheduler: NewScheduler(ctx, NewScheduleStore(r.nvm, DefaultDocumentLimit, testLogger())),
		Dispenser: NewDispenser(15*time.Second, 15*time.Second),
		Markers:   r.markers,
		Events:    r.events,
		Notifier:  r.notifier,
		Log:       testLogger(),
		QueueSize: queue,
	})
	return r
}

// step sets the switch and runs one tick 100ms after the previous one.
func (r *rig) step(closed bool) {
	r.sw.set(closed)
	r.ctrl.Tick(context.Background(), t0.Add(time.Duration(r.tick)*100*time.Millisecond))
	r.tick++
}

func (r *rig) state() models.DispenseState {
	st, _ := r.ctrl.GetStatus(context.Background())
	return st.State
}

func TestController_ScheduledFeedRunsFullCycle(t *testing.T) {
	r := newRig(t, 4)
	r.clock.set(at(8, 0, 1))

	r.step(true)
	st, err := r.ctrl.GetStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StateIdle, st.State)
	assert.Equal(t, 2, st.Requested, "trigger is pending until the next tick")
	assert.True(t, st.ClockSynced)
	assert.True(t, st.RemoteLink)

	for _, closed := range []bool{true, true, false, true, false, true, true, true} {
		r.step(closed)
	}

	assert.Equal(t, []models.DispenseState{
		models.StateStarting, models.StateUnlocking, models.StateRotating,
		models.StateUnlocking, models.StateRotating, models.StateLocking, models.StateIdle,
	}, r.notifier.states)
	assert.Equal(t, []bool{true, false}, r.motor.log)
	assert.Equal(t, []string{models.EventFeedStart, models.EventFeedDone}, r.events.types())
	assert.Equal(t, 7, r.events.count(models.EventStateChange))

	require.Len(t, r.markers.saves, 3)
	assert.Equal(t, models.DispenseMarker{InProgress: true, Requested: 2, Dispensed: 0}, stripTime(r.markers.saves[0]))
	assert.Equal(t, models.DispenseMarker{InProgress: true, Requested: 2, Dispensed: 1}, stripTime(r.markers.saves[1]))
	assert.False(t, r.markers.current.InProgress)

	st, _ = r.ctrl.GetStatus(context.Background())
	assert.Equal(t, models.StateIdle, st.State)
	assert.Equal(t, 2, st.Dispensed)
	assert.Equal(t, uint8(1), st.Schedule[0].LastDayRan)
}

func stripTime(m models.DispenseMarker) models.DispenseMarker {
	m.UpdatedAt = time.Time{}
	return m
}

func TestController_UnsyncedClockDoesNotFeed(t *testing.T) {
	r := newRig(t, 4)
	m := at(8, 0, 1)
	m.Synced = false
	r.clock.set(m)

	for i := 0; i < 3; i++ {
		r.step(true)
	}
	assert.Equal(t, models.StateIdle, r.state())
	assert.Empty(t, r.notifier.states)
	assert.Empty(t, r.motor.log)
}

func TestController_ZeroPortionSlotIsSkipped(t *testing.T) {
	r := newRig(t, 4)
	_, err := r.ctrl.scheduler.store.Save(context.Background(), []byte(
		`[{"hour":8,"minute":0,"portion":0},{"hour":12,"minute":0,"portion":2},{"hour":18,"minute":0,"portion":2}]`))
	require.NoError(t, err)
	r.ctrl.scheduler = NewScheduler(context.Background(), r.ctrl.scheduler.store)
	r.clock.set(at(8, 0, 1))

	r.step(true)
	r.step(true)
	assert.Equal(t, models.StateIdle, r.state())
	assert.Empty(t, r.notifier.states)
}

func TestController_ManualFeedIsSingleShot(t *testing.T) {
	r := newRig(t, 4)
	reply := make(chan CommandResult, 1)
	require.NoError(t, r.ctrl.Submit(Command{Kind: CommandFeed, Reply: reply}))

	r.step(true)
	res := <-reply
	require.NoError(t, res.Err)
	assert.Equal(t, models.StateStarting, r.state())

	busy := make(chan CommandResult, 1)
	require.NoError(t, r.ctrl.Submit(Command{Kind: CommandFeed, Reply: busy}))
	r.step(true)
	assert.ErrorIs(t, (<-busy).Err, ErrDispenseBusy)

	r.step(false)
	r.step(true)
	assert.Equal(t, models.StateLocking, r.state())
	r.step(true)
	assert.Equal(t, models.StateIdle, r.state())
	assert.False(t, r.motor.On())
}

func TestController_AbandonedFeedDoesNotDispense(t *testing.T) {
	r := newRig(t, 4)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, r.ctrl.Feed(ctx), context.DeadlineExceeded)

	r.step(true)
	r.step(true)
	assert.Equal(t, models.StateIdle, r.state())
	assert.Empty(t, r.notifier.states)
	assert.Empty(t, r.motor.log)
}

func TestController_AbandonedCommandRepliesExpired(t *testing.T) {
	r := newRig(t, 4)
	done := make(chan struct{})
	close(done)
	reply := make(chan CommandResult, 1)
	require.NoError(t, r.ctrl.Submit(Command{Kind: CommandSetSchedule, Payload: []byte(`{}`), Reply: reply, Done: done}))

	r.step(true)
	assert.ErrorIs(t, (<-reply).Err, ErrCommandExpired)
	assert.Empty(t, r.events.types())
}

func TestController_SetScheduleCommand(t *testing.T) {
	r := newRig(t, 4)
	raw := []byte(`[{"hour":6,"minute":0,"portion":1},{"hour":12,"minute":0,"portion":1},{"hour":19,"minute":0,"portion":1}]`)

	reply := make(chan CommandResult, 1)
	require.NoError(t, r.ctrl.Submit(Command{Kind: CommandSetSchedule, Payload: raw, Reply: reply}))
	r.step(true)

	res := <-reply
	require.NoError(t, res.Err)
	assert.Equal(t, terminated(r.nvm.region), res.Document)
	assert.Equal(t, []string{models.EventScheduleUpdate}, r.events.types())

	st, _ := r.ctrl.GetStatus(context.Background())
	assert.Equal(t, 6, st.Schedule[0].Hour)
}

func TestController_InvalidScheduleRejected(t *testing.T) {
	r := newRig(t, 4)
	before := append([]byte(nil), r.nvm.region...)

	reply := make(chan CommandResult, 1)
	require.NoError(t, r.ctrl.Submit(Command{Kind: CommandSetSchedule, Payload: []byte(`{}`), Reply: reply}))
	r.step(true)

	assert.ErrorIs(t, (<-reply).Err, ErrInvalidSchedule)
	assert.Equal(t, before, r.nvm.region)
	assert.Empty(t, r.events.types())
}

func TestController_GetScheduleWithoutReplyPublishes(t *testing.T) {
	r := newRig(t, 4)
	require.NoError(t, r.ctrl.Submit(Command{Kind: CommandGetSchedule}))
	r.step(true)

	require.Len(t, r.notifier.docs, 1)
	doc := r.notifier.docs[0]
	assert.Len(t, doc, r.ctrl.scheduler.SerializedSize())
	assert.Equal(t, r.ctrl.scheduler.Snapshot(), doc)
}

func TestController_UnknownCommand(t *testing.T) {
	r := newRig(t, 4)
	reply := make(chan CommandResult, 1)
	require.NoError(t, r.ctrl.Submit(Command{Kind: "REBOOT", Reply: reply}))
	r.step(true)
	assert.Error(t, (<-reply).Err)
}

func TestController_QueueFull(t *testing.T) {
	r := newRig(t, 1)
	require.NoError(t, r.ctrl.Submit(Command{Kind: CommandFeed}))
	assert.ErrorIs(t, r.ctrl.Submit(Command{Kind: CommandFeed}), ErrQueueFull)
}

func TestController_StallFaultsAndStopsMotor(t *testing.T) {
	r := newRig(t, 4)
	require.NoError(t, r.ctrl.Submit(Command{Kind: CommandFeed}))

	r.ctrl.Tick(context.Background(), t0)
	r.ctrl.Tick(context.Background(), t0)
	require.True(t, r.motor.On())

	r.ctrl.Tick(context.Background(), t0.Add(15*time.Second))
	assert.Equal(t, models.StateLocking, r.state())
	assert.False(t, r.motor.On())

	st, _ := r.ctrl.GetStatus(context.Background())
	assert.Contains(t, st.Fault, ErrMotorStall.Error())

	r.ctrl.Tick(context.Background(), t0.Add(16*time.Second))
	assert.Equal(t, []string{models.EventFeedStart, models.EventFault, models.EventFeedDone}, r.events.types())
	assert.False(t, r.markers.current.InProgress)
}

func TestController_RecoverFinishesOpenGate(t *testing.T) {
	r := newRig(t, 4)
	r.markers.current = models.DispenseMarker{InProgress: true, Requested: 2, Dispensed: 1}
	r.sw.set(false)

	r.ctrl.Recover(context.Background(), t0)
	assert.Equal(t, models.StateRotating, r.state())
	assert.True(t, r.motor.On())
	assert.Equal(t, []string{models.EventRecovery}, r.events.types())

	r.step(true)
	assert.Equal(t, models.StateLocking, r.state())
	assert.False(t, r.motor.On())
	r.step(true)
	assert.Equal(t, models.StateIdle, r.state())
	assert.False(t, r.markers.current.InProgress)
}

func TestController_RecoverWithClosedGateLocks(t *testing.T) {
	r := newRig(t, 4)
	r.markers.current = models.DispenseMarker{InProgress: true, Requested: 1}

	r.ctrl.Recover(context.Background(), t0)
	assert.Equal(t, models.StateLocking, r.state())
	assert.False(t, r.motor.On())
	assert.Equal(t, []models.DispenseState{models.StateLocking}, r.notifier.states)
}

func TestController_RecoverNothingToDo(t *testing.T) {
	r := newRig(t, 4)
	r.ctrl.Recover(context.Background(), t0)
	assert.Equal(t, models.StateIdle, r.state())
	assert.Empty(t, r.events.types())
}

func TestController_RunStopsMotorOnShutdown(t *testing.T) {
	r := newRig(t, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.ctrl.Run(ctx, time.Millisecond)
		close(done)
	}()

	reqCtx, reqCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer reqCancel()
	require.NoError(t, r.ctrl.Feed(reqCtx))
	doc, err := r.ctrl.Schedule(reqCtx)
	require.NoError(t, err)
	assert.NotEmpty(t, doc)

	require.Eventually(t, r.motor.On, 2*time.Second, time.Millisecond)

	cancel()
	<-done
	assert.False(t, r.motor.On())
}

func TestController_GetStatusHonoursContext(t *testing.T) {
	r := newRig(t, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.ctrl.GetStatus(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewService_WiresSQLite(t *testing.T) {
	conn, err := db.InitDB(filepath.Join(t.TempDir(), "feeder.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	clk := &fakeClock{}
	clk.set(at(12, 0, 2))
	svc := NewService(context.Background(), Deps{
		DeviceID:      "loki",
		Repos:         repository.NewRepository(conn, testRegionSize),
		Switch:        &fakeSwitch{closed: true},
		Motor:         &fakeMotor{},
		Clock:         clk,
		Control:       config.ControlConfig{UnlockTimeout: time.Second, RotateTimeout: time.Second, QueueSize: 4},
		DocumentLimit: DefaultDocumentLimit,
		Log:           testLogger(),
	})

	ctx := context.Background()
	svc.Controller.Tick(ctx, t0)
	svc.Controller.Tick(ctx, t0.Add(100*time.Millisecond))

	st, err := svc.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StateStarting, st.State)
	assert.Equal(t, DefaultSchedule()[1].Hour, st.Schedule[1].Hour)

	marker, err := conn.QueryContext(ctx, `SELECT in_progress FROM dispense_marker WHERE id = 1`)
	require.NoError(t, err)
	defer marker.Close()
	require.True(t, marker.Next())
	var inProgress bool
	require.NoError(t, marker.Scan(&inProgress))
	assert.True(t, inProgress)

	events, err := svc.List(ctx, LogFilter{Type: "feed_start"})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
