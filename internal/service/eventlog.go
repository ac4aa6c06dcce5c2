package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"petfeeder/internal/models"
	"petfeeder/internal/repository"
)

// LogFilter selects feed events by time range and type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "", FEED_START, FEED_DONE, FAULT, ...
}

type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

var errInvalidTimeRange = errors.New("invalid time range: From must be <= To")

// normalize returns the filter in UTC with an upper-case type.
func (f LogFilter) normalize() (LogFilter, error) {
	out := LogFilter{
		From: toUTC(f.From),
		To:   toUTC(f.To),
		Type: strings.ToUpper(strings.TrimSpace(f.Type)),
	}
	if !out.From.IsZero() && !out.To.IsZero() && out.From.After(out.To) {
		return LogFilter{}, errInvalidTimeRange
	}
	return out, nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.FeedEvent, error) {
	nf, err := f.normalize()
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, nf.From, nf.To, nf.Type)
}
