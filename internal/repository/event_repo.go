package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"petfeeder/internal/models"

	"github.com/google/uuid"
)

const (
	insertEventSQL = `INSERT INTO feed_events (id, occurred_at, type, description, meta) VALUES (?, ?, ?, ?, ?)`
	selectEventSQL = `SELECT id, occurred_at, type, description, meta FROM feed_events`
)

type EventSQLite struct {
	db *sql.DB
}

func NewEventSQLite(db *sql.DB) *EventSQLite { return &EventSQLite{db: db} }

// Append inserts a new event, filling EventID and OccurredAt when empty.
func (r *EventSQLite) Append(ctx context.Context, e models.FeedEvent) error {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}

	var meta sql.NullString
	if e.Metadata != nil {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshal event metadata: %w", err)
		}
		meta = sql.NullString{String: string(b), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, insertEventSQL,
		e.EventID,
		e.OccurredAt.UTC(),
		normalizeType(e.Type),
		e.Description,
		meta,
	)
	if err != nil {
		return fmt.Errorf("insert feed event: %w", err)
	}
	return nil
}

// List returns events in [from, to] (zero bounds are open) of the given type
// (empty = any), oldest first.
func (r *EventSQLite) List(ctx context.Context, from, to time.Time, typ string) ([]models.FeedEvent, error) {
	q, args := buildEventQuery(from, to, normalizeType(typ))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query feed events: %w", err)
	}
	defer rows.Close()

	var out []models.FeedEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feed events: %w", err)
	}
	return out, nil
}

func buildEventQuery(from, to time.Time, typ string) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if !from.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		conds = append(conds, "occurred_at <= ?")
		args = append(args, to.UTC())
	}
	if typ != "" {
		conds = append(conds, "type = ?")
		args = append(args, typ)
	}

	q := selectEventSQL
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	return q + " ORDER BY occurred_at ASC", args
}

func scanEvent(rows *sql.Rows) (models.FeedEvent, error) {
	var (
		ev   models.FeedEvent
		meta sql.NullString
	)
	if err := rows.Scan(&ev.EventID, &ev.OccurredAt, &ev.Type, &ev.Description, &meta); err != nil {
		return models.FeedEvent{}, fmt.Errorf("scan feed event: %w", err)
	}
	ev.OccurredAt = ev.OccurredAt.UTC()
	if meta.Valid && meta.String != "" {
		var v any
		if err := json.Unmarshal([]byte(meta.String), &v); err != nil {
			ev.Metadata = meta.String // keep raw if malformed
		} else {
			ev.Metadata = v
		}
	}
	return ev, nil
}

func normalizeType(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
