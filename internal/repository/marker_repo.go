package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"petfeeder/internal/models"
)

type MarkerSQLite struct {
	db *sql.DB
}

func NewMarkerSQLite(db *sql.DB) *MarkerSQLite {
	return &MarkerSQLite{db: db}
}

const (
	markerRowID = 1

	upsertMarkerSQL = `
		INSERT INTO dispense_marker (id, in_progress, requested, dispensed, single_shot, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			in_progress=excluded.in_progress,
			requested=excluded.requested,
			dispensed=excluded.dispensed,
			single_shot=excluded.single_shot,
			updated_at=excluded.updated_at
	`

	selectMarkerSQL = `
		SELECT in_progress, requested, dispensed, single_shot, updated_at
		FROM dispense_marker WHERE id=?
	`
)

// Save upserts the single dispense_marker row (id always 1).
func (r *MarkerSQLite) Save(ctx context.Context, m models.DispenseMarker) error {
	ts := m.UpdatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}
	_, err := r.db.ExecContext(ctx, upsertMarkerSQL,
		markerRowID,
		m.InProgress,
		m.Requested,
		m.Dispensed,
		m.SingleShot,
		ts,
	)
	return err
}

// Load returns the marker, or a zero marker when none was written yet.
func (r *MarkerSQLite) Load(ctx context.Context) (models.DispenseMarker, error) {
	var m models.DispenseMarker
	err := r.db.QueryRowContext(ctx, selectMarkerSQL, markerRowID).Scan(
		&m.InProgress,
		&m.Requested,
		&m.Dispensed,
		&m.SingleShot,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.DispenseMarker{}, nil
		}
		return models.DispenseMarker{}, err
	}
	m.UpdatedAt = m.UpdatedAt.UTC()
	return m, nil
}
