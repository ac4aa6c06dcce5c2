package repository

import (
	"context"
	"database/sql"
	"time"

	"petfeeder/internal/models"
)

// NVMRepo is a fixed-size byte region standing in for the EEPROM.
type NVMRepo interface {
	ReadRegion(ctx context.Context) ([]byte, error)
	WriteRegion(ctx context.Context, offset int, data []byte) error
}

// MarkerRepo persists the dispense-in-progress marker.
type MarkerRepo interface {
	Save(ctx context.Context, m models.DispenseMarker) error
	Load(ctx context.Context) (models.DispenseMarker, error)
}

type EventRepo interface {
	Append(ctx context.Context, e models.FeedEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.FeedEvent, error)
}

type Repository struct {
	NVM       NVMRepo
	Marker    MarkerRepo
	EventRepo EventRepo
}

func NewRepository(db *sql.DB, regionSize int) *Repository {
	return &Repository{
		NVM:       NewNVMSQLite(db, regionSize),
		Marker:    NewMarkerSQLite(db),
		EventRepo: NewEventSQLite(db),
	}
}
