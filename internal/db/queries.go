package db

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	"github.com/hpungsan/daylog/internal/errors"
	"github.com/hpungsan/daylog/internal/event"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.DaylogError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

// InsertEvent appends one event to the log. Events are never updated.
func InsertEvent(ctx context.Context, db *sql.DB, ev event.RawEvent, loggedAt int64) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return errors.NewInternal(err)
	}

	query := `
		INSERT INTO events (id, source, seq, type, ts_ms, ts, payload_json, logged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = db.ExecContext(ctx, query,
		ev.ID, ev.Source, ev.Seq, string(ev.Type),
		ev.Timestamp.UnixMilli(), ev.Timestamp.Format(time.RFC3339Nano),
		string(payload), loggedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite reports both PRIMARY KEY and UNIQUE violations this way.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

const eventColumns = `id, source, seq, type, ts, payload_json`

// ListEventsBetween returns events with from <= timestamp < to, oldest first.
func ListEventsBetween(ctx context.Context, db *sql.DB, from, to time.Time) ([]event.RawEvent, error) {
	query := `SELECT ` + eventColumns + `
		FROM events
		WHERE ts_ms >= ? AND ts_ms < ?
		ORDER BY ts_ms ASC, id ASC
	`
	rows, err := db.QueryContext(ctx, query, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var events []event.RawEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return events, nil
}

// StreamEvents calls fn for every logged event, oldest first.
// Iteration stops at the first error fn returns.
func StreamEvents(ctx context.Context, db *sql.DB, fn func(event.RawEvent) error) error {
	query := `SELECT ` + eventColumns + ` FROM events ORDER BY ts_ms ASC, id ASC`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer rows.Close()

	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// CountEvents returns the number of logged events.
func CountEvents(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// EventSpan returns the earliest and latest event timestamps.
// ok is false when the log is empty.
func EventSpan(ctx context.Context, db *sql.DB) (first, last time.Time, ok bool, err error) {
	var minMs, maxMs sql.NullInt64
	err = db.QueryRowContext(ctx, `SELECT MIN(ts_ms), MAX(ts_ms) FROM events`).Scan(&minMs, &maxMs)
	if err != nil {
		return time.Time{}, time.Time{}, false, errors.NewInternal(err)
	}
	if !minMs.Valid {
		return time.Time{}, time.Time{}, false, nil
	}
	return time.UnixMilli(minMs.Int64), time.UnixMilli(maxMs.Int64), true, nil
}

func scanEvent(rows *sql.Rows) (event.RawEvent, error) {
	var ev event.RawEvent
	var typ, ts, payload string
	if err := rows.Scan(&ev.ID, &ev.Source, &ev.Seq, &typ, &ts, &payload); err != nil {
		return ev, errors.NewInternal(err)
	}
	ev.Type = event.Type(typ)

	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ev, errors.NewInternal(err)
	}
	ev.Timestamp = t

	if err := json.Unmarshal([]byte(payload), &ev.Payload); err != nil {
		return ev, errors.NewInternal(err)
	}
	return ev, nil
}

// EditRow is the stored edit layer for one report date.
type EditRow struct {
	Date          string
	SchemaVersion int
	EditsJSON     string
	UpdatedAt     int64
}

// UpsertEdits stores the edit layer for a date, replacing any previous one.
func UpsertEdits(ctx context.Context, db *sql.DB, row EditRow) error {
	query := `
		INSERT INTO report_edits (date, schema_version, edits_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			schema_version = excluded.schema_version,
			edits_json     = excluded.edits_json,
			updated_at     = excluded.updated_at
	`
	if _, err := db.ExecContext(ctx, query, row.Date, row.SchemaVersion, row.EditsJSON, row.UpdatedAt); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetEdits returns the edit layer for a date, or NOT_FOUND.
func GetEdits(ctx context.Context, db *sql.DB, date string) (*EditRow, error) {
	query := `SELECT date, schema_version, edits_json, updated_at FROM report_edits WHERE date = ?`
	row := &EditRow{}
	err := db.QueryRowContext(ctx, query, date).Scan(&row.Date, &row.SchemaVersion, &row.EditsJSON, &row.UpdatedAt)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFound("edits", date)
		}
		return nil, errors.NewInternal(err)
	}
	return row, nil
}

// DeleteEdits removes the edit layer for a date. Missing rows are not an error.
func DeleteEdits(ctx context.Context, db *sql.DB, date string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM report_edits WHERE date = ?`, date); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}
