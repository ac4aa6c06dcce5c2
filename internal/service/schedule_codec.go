package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"petfeeder/internal/models"
)

// DefaultDocumentLimit is the schedule buffer size, terminator included.
const DefaultDocumentLimit = 256

var (
	ErrInvalidSchedule  = errors.New("invalid schedule document")
	ErrDocumentTooLarge = errors.New("schedule document exceeds buffer")
)

// DefaultSchedule is written to a blank or corrupt device.
func DefaultSchedule() models.Schedule {
	return models.Schedule{
		{Hour: 8, Minute: 0, Portion: 2, LastDayRan: models.NeverRan},
		{Hour: 12, Minute: 0, Portion: 2, LastDayRan: models.NeverRan},
		{Hour: 18, Minute: 0, Portion: 2, LastDayRan: models.NeverRan},
	}
}

// EncodeSchedule renders the compact canonical document. limit counts the
// NUL terminator written after the document.
func EncodeSchedule(s models.Schedule, limit int) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode schedule: %w", err)
	}
	if len(b)+1 > limit {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrDocumentTooLarge, len(b)+1, limit)
	}
	return b, nil
}

// wireEntry uses pointers so missing keys can be told apart from zeros.
type wireEntry struct {
	Hour       *int `json:"hour"`
	Minute     *int `json:"minute"`
	Portion    *int `json:"portion"`
	LastDayRan *int `json:"lastDayRan"`
}

// DecodeSchedule parses a schedule document strictly: exactly SlotCount
// objects, no unknown keys, no trailing data, every field in range.
// lastDayRan may be omitted and then means never ran.
func DecodeSchedule(b []byte) (models.Schedule, error) {
	var s models.Schedule

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()

	var raw []wireEntry
	if err := dec.Decode(&raw); err != nil {
		return s, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return s, fmt.Errorf("%w: trailing data", ErrInvalidSchedule)
	}
	if len(raw) != models.SlotCount {
		return s, fmt.Errorf("%w: want %d entries, got %d", ErrInvalidSchedule, models.SlotCount, len(raw))
	}

	for i, w := range raw {
		e, err := w.entry()
		if err != nil {
			return models.Schedule{}, fmt.Errorf("%w: slot %d: %v", ErrInvalidSchedule, i, err)
		}
		s[i] = e
	}
	return s, nil
}

func (w wireEntry) entry() (models.ScheduleEntry, error) {
	switch {
	case w.Hour == nil:
		return models.ScheduleEntry{}, errors.New("missing hour")
	case w.Minute == nil:
		return models.ScheduleEntry{}, errors.New("missing minute")
	case w.Portion == nil:
		return models.ScheduleEntry{}, errors.New("missing portion")
	}
	if *w.Hour < 0 || *w.Hour > 23 {
		return models.ScheduleEntry{}, fmt.Errorf("hour %d out of range", *w.Hour)
	}
	if *w.Minute < 0 || *w.Minute > 59 {
		return models.ScheduleEntry{}, fmt.Errorf("minute %d out of range", *w.Minute)
	}
	if *w.Portion < 0 || *w.Portion > models.MaxPortion {
		return models.ScheduleEntry{}, fmt.Errorf("portion %d out of range", *w.Portion)
	}
	last := models.NeverRan
	if w.LastDayRan != nil {
		d := *w.LastDayRan
		if d != int(models.NeverRan) && (d < 0 || d > 6) {
			return models.ScheduleEntry{}, fmt.Errorf("lastDayRan %d out of range", d)
		}
		last = uint8(d)
	}
	return models.ScheduleEntry{Hour: *w.Hour, Minute: *w.Minute, Portion: *w.Portion, LastDayRan: last}, nil
}
