package service

import (
	"context"
	"testing"

	"petfeeder/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T, doc string) (*Scheduler, *memNVM) {
	t.Helper()
	nvm := newMemNVM(testRegionSize)
	if doc != "" {
		nvm.seed([]byte(doc))
	}
	return NewScheduler(context.Background(), NewScheduleStore(nvm, DefaultDocumentLimit, testLogger())), nvm
}

func TestScheduler_FiresOncePerDay(t *testing.T) {
	s, _ := newTestScheduler(t, "")

	entry, ok := s.IsFeedingTime(at(8, 0, 1))
	require.True(t, ok)
	assert.Equal(t, 2, entry.Portion)
	assert.Equal(t, uint8(1), entry.LastDayRan)

	for i := 0; i < 5; i++ {
		_, ok = s.IsFeedingTime(at(8, 0, 1))
		assert.False(t, ok, "same slot must not fire twice on one weekday")
	}

	_, ok = s.IsFeedingTime(at(8, 0, 2))
	assert.True(t, ok, "slot fires again on the next weekday")
}

func TestScheduler_NoMatchOffMinute(t *testing.T) {
	s, _ := newTestScheduler(t, "")

	for _, m := range [][2]int{{7, 59}, {8, 1}, {0, 0}, {23, 59}} {
		_, ok := s.IsFeedingTime(at(m[0], m[1], 3))
		assert.False(t, ok, "%02d:%02d", m[0], m[1])
	}
	_, ok := s.CurrentEntry()
	assert.False(t, ok)
}

func TestScheduler_UnsyncedClockNeverMatches(t *testing.T) {
	s, _ := newTestScheduler(t, "")

	m := at(8, 0, 1)
	m.Synced = false
	_, ok := s.IsFeedingTime(m)
	assert.False(t, ok)
	assert.Equal(t, models.NeverRan, s.Entries()[0].LastDayRan)
}

func TestScheduler_LowestSlotWinsTie(t *testing.T) {
	s, _ := newTestScheduler(t, `[{"hour":9,"minute":30,"portion":1},`+
		`{"hour":9,"minute":30,"portion":4},{"hour":18,"minute":0,"portion":2}]`)

	entry, ok := s.IsFeedingTime(at(9, 30, 4))
	require.True(t, ok)
	assert.Equal(t, 1, entry.Portion)

	entries := s.Entries()
	assert.Equal(t, uint8(4), entries[0].LastDayRan)
	assert.Equal(t, models.NeverRan, entries[1].LastDayRan)

	cur, ok := s.CurrentEntry()
	require.True(t, ok)
	assert.Equal(t, entry, cur)
}

func TestScheduler_FindDueHasNoSideEffects(t *testing.T) {
	s, _ := newTestScheduler(t, "")

	slot, ok := s.FindDue(at(12, 0, 5))
	require.True(t, ok)
	assert.Equal(t, 1, slot)
	slot, ok = s.FindDue(at(12, 0, 5))
	require.True(t, ok)
	assert.Equal(t, 1, slot)
	assert.Equal(t, models.NeverRan, s.Entries()[1].LastDayRan)
}

func TestScheduler_ZeroPortionStillMatches(t *testing.T) {
	s, _ := newTestScheduler(t, `[{"hour":8,"minute":0,"portion":0},`+
		`{"hour":12,"minute":0,"portion":2},{"hour":18,"minute":0,"portion":2}]`)

	entry, ok := s.IsFeedingTime(at(8, 0, 0))
	require.True(t, ok)
	assert.Equal(t, 0, entry.Portion)
}

func TestScheduler_UpdateMakesSlotsEligibleAgain(t *testing.T) {
	s, nvm := newTestScheduler(t, "")
	ctx := context.Background()

	_, ok := s.IsFeedingTime(at(8, 0, 1))
	require.True(t, ok)

	raw := []byte(`[{"hour":8,"minute":0,"portion":3,"lastDayRan":1},` +
		`{"hour":12,"minute":0,"portion":2},{"hour":18,"minute":0,"portion":2}]`)
	require.NoError(t, s.UpdateSchedules(ctx, raw))

	_, ok = s.CurrentEntry()
	assert.False(t, ok)

	entry, ok := s.IsFeedingTime(at(8, 0, 1))
	require.True(t, ok, "updated schedule fires again the same day")
	assert.Equal(t, 3, entry.Portion)

	assert.Equal(t, len(terminated(nvm.region)), s.SerializedSize())
}

func TestScheduler_RejectedUpdateKeepsSchedule(t *testing.T) {
	s, _ := newTestScheduler(t, "")
	before := s.Entries()
	doc := s.Snapshot()

	err := s.UpdateSchedules(context.Background(), []byte(`[{"hour":99,"minute":0,"portion":1}]`))
	require.ErrorIs(t, err, ErrInvalidSchedule)

	assert.Equal(t, before, s.Entries())
	assert.Equal(t, doc, s.Snapshot())
}

func TestScheduler_FiredStateNotPersisted(t *testing.T) {
	s, nvm := newTestScheduler(t, "")
	before := append([]byte(nil), nvm.region...)

	_, ok := s.IsFeedingTime(at(18, 0, 6))
	require.True(t, ok)

	assert.Equal(t, before, nvm.region)
}
