package service

import (
	"context"
	"testing"
	"time"

	"petfeeder/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFilter_Normalize(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	from := time.Date(2025, 1, 2, 10, 0, 0, 0, loc)

	nf, err := LogFilter{From: from, Type: " feed_done "}.normalize()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, nf.From.Location())
	assert.True(t, nf.From.Equal(from))
	assert.True(t, nf.To.IsZero())
	assert.Equal(t, models.EventFeedDone, nf.Type)
}

func TestLogFilter_RejectsInvertedRange(t *testing.T) {
	_, err := LogFilter{From: t0.Add(time.Hour), To: t0}.normalize()
	assert.ErrorIs(t, err, errInvalidTimeRange)
}

func TestEventLogService_List(t *testing.T) {
	repo := &fakeEvents{events: []models.FeedEvent{
		{EventID: "1", OccurredAt: t0, Type: models.EventFeedStart},
		{EventID: "2", OccurredAt: t0.Add(time.Minute), Type: models.EventFeedDone},
		{EventID: "3", OccurredAt: t0.Add(time.Hour), Type: models.EventFeedStart},
	}}
	svc := NewEventLogService(repo)
	ctx := context.Background()

	all, err := svc.List(ctx, LogFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	starts, err := svc.List(ctx, LogFilter{Type: "feed_start", To: t0.Add(time.Minute)})
	require.NoError(t, err)
	require.Len(t, starts, 1)
	assert.Equal(t, "1", starts[0].EventID)

	_, err = svc.List(ctx, LogFilter{From: t0.Add(time.Hour), To: t0})
	assert.Error(t, err)
}
