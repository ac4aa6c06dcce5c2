package service

import (
	"bytes"
	"context"
	"fmt"
	"math"

	"petfeeder/internal/logger"
	"petfeeder/internal/models"
	"petfeeder/internal/repository"
)

// scheduleOffset is where the document starts in the NVM region.
const scheduleOffset = 0

// ScheduleStore persists the schedule document in the NVM region and
// remembers the exact bytes last written or loaded.
type ScheduleStore struct {
	nvm   repository.NVMRepo
	limit int
	log   *logger.Logger

	doc []byte
}

func NewScheduleStore(nvm repository.NVMRepo, limit int, log *logger.Logger) *ScheduleStore {
	if limit <= 0 {
		limit = DefaultDocumentLimit
	}
	return &ScheduleStore{nvm: nvm, limit: limit, log: log}
}

// Load returns the persisted schedule. A blank, truncated or unreadable
// region is replaced with DefaultSchedule, which is written back. Load never
// fails; problems are logged.
func (s *ScheduleStore) Load(ctx context.Context) models.Schedule {
	region, err := s.nvm.ReadRegion(ctx)
	if err != nil {
		s.warn("schedule_read_failed", "err", err)
		return s.restoreDefaults(ctx)
	}
	doc := terminated(region)
	sched, err := DecodeSchedule(doc)
	if err != nil {
		s.warn("schedule_invalid_using_defaults", "err", err, "bytes", len(doc))
		return s.restoreDefaults(ctx)
	}
	s.doc = append([]byte(nil), doc...)
	return sched
}

// Save validates raw and, only if it is a valid document, writes its
// canonical form with every slot marked as never fired. Storage is not
// touched on error.
func (s *ScheduleStore) Save(ctx context.Context, raw []byte) (models.Schedule, error) {
	sched, err := DecodeSchedule(raw)
	if err != nil {
		return models.Schedule{}, err
	}
	sched = sched.ResetFired()
	doc, err := EncodeSchedule(sched, s.limit)
	if err != nil {
		return models.Schedule{}, err
	}
	if err := s.write(ctx, doc); err != nil {
		return models.Schedule{}, err
	}
	return sched, nil
}

// Reset overwrites the stored schedule with DefaultSchedule.
func (s *ScheduleStore) Reset(ctx context.Context) (models.Schedule, error) {
	sched := DefaultSchedule()
	doc, err := EncodeSchedule(sched, s.limit)
	if err != nil {
		return models.Schedule{}, err
	}
	if err := s.write(ctx, doc); err != nil {
		return models.Schedule{}, err
	}
	return sched, nil
}

// SerializedSize is the exact length of the current document.
func (s *ScheduleStore) SerializedSize() int { return len(s.doc) }

// Document returns a copy of the current document bytes.
func (s *ScheduleStore) Document() []byte {
	return append([]byte(nil), s.doc...)
}

func (s *ScheduleStore) restoreDefaults(ctx context.Context) models.Schedule {
	sched, err := s.Reset(ctx)
	if err != nil {
		// keep running on defaults; the next boot retries the write
		s.warn("schedule_default_write_failed", "err", err)
		sched = DefaultSchedule()
		// served from memory only, so the region limit does not apply
		if doc, encErr := EncodeSchedule(sched, math.MaxInt); encErr == nil {
			s.doc = doc
		}
	}
	return sched
}

// write stores doc followed by a NUL so a shorter document never exposes
// the tail of a longer previous one.
func (s *ScheduleStore) write(ctx context.Context, doc []byte) error {
	buf := make([]byte, 0, len(doc)+1)
	buf = append(buf, doc...)
	buf = append(buf, 0)
	if err := s.nvm.WriteRegion(ctx, scheduleOffset, buf); err != nil {
		return fmt.Errorf("persist schedule: %w", err)
	}
	s.doc = append([]byte(nil), doc...)
	return nil
}

func (s *ScheduleStore) warn(msg string, kv ...interface{}) {
	if s.log != nil {
		s.log.Warnw(msg, kv...)
	}
}

// terminated returns region up to its first NUL byte.
func terminated(region []byte) []byte {
	if i := bytes.IndexByte(region, 0); i >= 0 {
		return region[:i]
	}
	return region
}
