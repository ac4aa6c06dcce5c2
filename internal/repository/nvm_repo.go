package repository

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrRegionOverflow is returned when a write does not fit in the region.
var ErrRegionOverflow = errors.New("write exceeds nvm region")

// erasedByte is the value of a never-written EEPROM cell.
const erasedByte = 0xFF

const (
	nvmRowID = 1

	selectRegionSQL = `SELECT data FROM nvm WHERE id=?`

	upsertRegionSQL = `
		INSERT INTO nvm (id, data) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET data=excluded.data
	`
)

// NVMSQLite keeps the region as a single blob row (id always 1).
type NVMSQLite struct {
	db   *sql.DB
	size int
}

func NewNVMSQLite(db *sql.DB, size int) *NVMSQLite {
	return &NVMSQLite{db: db, size: size}
}

// Size is the region length in bytes.
func (r *NVMSQLite) Size() int { return r.size }

// ReadRegion returns the whole region. A device that was never written
// returns a nil slice.
func (r *NVMSQLite) ReadRegion(ctx context.Context) ([]byte, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, selectRegionSQL, nvmRowID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("read nvm region: %w", err)
	}
	return data, nil
}

// WriteRegion overwrites len(data) bytes at offset. Bytes outside that range
// keep their previous value, so callers that store variable-length content
// must terminate it themselves.
func (r *NVMSQLite) WriteRegion(ctx context.Context, offset int, data []byte) error {
	if offset < 0 || offset+len(data) > r.size {
		return fmt.Errorf("%w: offset %d len %d size %d", ErrRegionOverflow, offset, len(data), r.size)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin nvm write: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current []byte
	err = tx.QueryRowContext(ctx, selectRegionSQL, nvmRowID).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read nvm region: %w", err)
	}

	region := r.normalize(current)
	copy(region[offset:], data)

	if _, err := tx.ExecContext(ctx, upsertRegionSQL, nvmRowID, region); err != nil {
		return fmt.Errorf("write nvm region: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit nvm write: %w", err)
	}
	return nil
}

// normalize returns a region-sized copy of cur, padding with erased cells.
func (r *NVMSQLite) normalize(cur []byte) []byte {
	region := bytes.Repeat([]byte{erasedByte}, r.size)
	copy(region, cur)
	return region
}
