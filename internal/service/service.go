package service

import (
	"context"

	"petfeeder/internal/clock"
	"petfeeder/internal/config"
	"petfeeder/internal/hardware"
	"petfeeder/internal/logger"
	"petfeeder/internal/models"
	"petfeeder/internal/repository"
)

// Feeder exposes the remote command surface: manual feed and schedule access.
type Feeder interface {
	Feed(ctx context.Context) error
	SetSchedule(ctx context.Context, raw []byte) error
	Schedule(ctx context.Context) ([]byte, error)
}

// Monitoring exposes the read-only device status.
type Monitoring interface {
	GetStatus(ctx context.Context) (models.DeviceStatus, error)
}

// EventLog exposes the append-only feed log with filtering.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.FeedEvent, error)
}

// Service aggregates the sub-services used by the transport layers.
type Service struct {
	Feeder
	Monitoring
	EventLog

	Controller *Controller
}

// Deps are the collaborators NewService wires together.
type Deps struct {
	DeviceID      string
	Repos         *repository.Repository
	Switch        hardware.Switch
	Motor         hardware.Motor
	Clock         clock.Source
	Control       config.ControlConfig
	DocumentLimit int
	Log           *logger.Logger
}

// NewService loads the schedule and builds the control loop around it.
func NewService(ctx context.Context, d Deps) *Service {
	store := NewScheduleStore(d.Repos.NVM, d.DocumentLimit, d.Log)
	ctrl := NewController(ControllerConfig{
		DeviceID:  d.DeviceID,
		Switch:    d.Switch,
		Motor:     d.Motor,
		Clock:     d.Clock,
		Scheduler: NewScheduler(ctx, store),
		Dispenser: NewDispenser(d.Control.UnlockTimeout, d.Control.RotateTimeout),
		Markers:   d.Repos.Marker,
		Events:    d.Repos.EventRepo,
		Log:       d.Log,
		QueueSize: d.Control.QueueSize,
	})
	return &Service{
		Feeder:     ctrl,
		Monitoring: ctrl,
		EventLog:   NewEventLogService(d.Repos.EventRepo),
		Controller: ctrl,
	}
}
