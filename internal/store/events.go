package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lifestream/lifestream/internal/event"
)

const eventColumns = "id, user_id, event_time, event_type, subtype, source, device_id, lat, lon, accuracy, speed, payload"

// InsertEvents appends a batch of validated events. The insert is
// idempotent on event id: re-ingesting a batch whose ids were already
// stored is a no-op, and the returned count reflects only new rows.
func (db *DB) InsertEvents(ctx context.Context, userID string, events []event.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	stored := 0
	for i := range events {
		e := &events[i]
		result, err := stmt.ExecContext(ctx,
			e.ID, userID, e.Time.UnixMilli(), string(e.Type), e.Subtype, e.Source, e.DeviceID,
			e.Lat, e.Lon, e.Accuracy, e.Speed, e.PayloadJSON())
		if err != nil {
			return 0, fmt.Errorf("insert event %s: %w", e.ID, err)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			stored++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert: %w", err)
	}
	return stored, nil
}

// QueryEvents returns a user's events ordered by event_time descending.
// Events belonging to other users are never returned.
func (db *DB) QueryEvents(ctx context.Context, userID string, f Filter) ([]event.Event, error) {
	query := "SELECT " + eventColumns + " FROM events WHERE user_id = ?"
	args := []any{userID}

	if !f.Start.IsZero() {
		query += " AND event_time >= ?"
		args = append(args, f.Start.UnixMilli())
	}
	if !f.End.IsZero() {
		query += " AND event_time <= ?"
		args = append(args, f.End.UnixMilli())
	}
	if len(f.Types) > 0 {
		placeholders := make([]string, len(f.Types))
		for i, t := range f.Types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		query += " AND event_type IN (" + strings.Join(placeholders, ",") + ")"
	}

	query += " ORDER BY event_time DESC LIMIT ?"
	args = append(args, f.limit())

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// SearchEvents does a substring match over the serialized payload and the
// subtype, bounded by the given time range.
func (db *DB) SearchEvents(ctx context.Context, userID, keyword string, start, end time.Time, limit int) ([]event.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + strings.ToLower(keyword) + "%"

	query := "SELECT " + eventColumns + ` FROM events
		WHERE user_id = ? AND (lower(payload) LIKE ? OR lower(subtype) LIKE ?)`
	args := []any{userID, pattern, pattern}

	if !start.IsZero() {
		query += " AND event_time >= ?"
		args = append(args, start.UnixMilli())
	}
	if !end.IsZero() {
		query += " AND event_time <= ?"
		args = append(args, end.UnixMilli())
	}

	query += " ORDER BY event_time DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// Stats returns the per-type event counts and time bounds for a user.
func (db *DB) Stats(ctx context.Context, userID string) (*EventStats, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT event_type, COUNT(*), MIN(event_time), MAX(event_time)
		FROM events WHERE user_id = ?
		GROUP BY event_type ORDER BY COUNT(*) DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("event stats: %w", err)
	}
	defer rows.Close()

	stats := &EventStats{ByType: make(map[string]TypeStats)}
	for rows.Next() {
		var eventType string
		var count int
		var first, last int64
		if err := rows.Scan(&eventType, &count, &first, &last); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats.Total += count
		stats.ByType[eventType] = TypeStats{
			Count: count,
			First: time.UnixMilli(first).UTC(),
			Last:  time.UnixMilli(last).UTC(),
		}
	}
	return stats, rows.Err()
}

// GeoPoints returns location events in [start, end) for clustering,
// ordered by event_time ascending.
func (db *DB) GeoPoints(ctx context.Context, userID string, start, end time.Time, limit int) ([]GeoPoint, error) {
	if limit <= 0 {
		limit = 10000
	}
	rows, err := db.QueryContext(ctx, `
		SELECT event_time, lat, lon FROM events
		WHERE user_id = ? AND event_type = 'geo'
		  AND lat IS NOT NULL AND lon IS NOT NULL
		  AND event_time >= ? AND event_time < ?
		ORDER BY event_time ASC LIMIT ?
	`, userID, start.UnixMilli(), end.UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("geo points: %w", err)
	}
	defer rows.Close()

	var points []GeoPoint
	for rows.Next() {
		var ms int64
		var p GeoPoint
		if err := rows.Scan(&ms, &p.Lat, &p.Lon); err != nil {
			return nil, fmt.Errorf("scan geo point: %w", err)
		}
		p.Time = time.UnixMilli(ms).UTC()
		points = append(points, p)
	}
	return points, rows.Err()
}

// HourlyActivity rolls geo events up into per-hour buckets: point count
// plus speed stats. The routine miner consumes only this rollup.
func (db *DB) HourlyActivity(ctx context.Context, userID string, start, end time.Time) ([]HourlyBucket, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT (event_time / 3600000) * 3600000 AS hour_ms,
		       COUNT(*),
		       AVG(COALESCE(speed, 0)),
		       MAX(COALESCE(speed, 0))
		FROM events
		WHERE user_id = ? AND event_type = 'geo'
		  AND event_time >= ? AND event_time < ?
		GROUP BY hour_ms ORDER BY hour_ms ASC
	`, userID, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("hourly activity: %w", err)
	}
	defer rows.Close()

	var buckets []HourlyBucket
	for rows.Next() {
		var ms int64
		var b HourlyBucket
		if err := rows.Scan(&ms, &b.Points, &b.AvgSpeed, &b.MaxSpeed); err != nil {
			return nil, fmt.Errorf("scan hourly bucket: %w", err)
		}
		b.Hour = time.UnixMilli(ms).UTC()
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// ActiveUsers returns ids of users with at least one event since the
// given time. Drives the miner scheduler.
func (db *DB) ActiveUsers(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT user_id FROM events WHERE event_time >= ?
	`, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("active users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

func scanEvents(rows *sql.Rows) ([]event.Event, error) {
	var events []event.Event
	for rows.Next() {
		var e event.Event
		var ms int64
		var eventType, payload string
		var lat, lon, accuracy, speed sql.NullFloat64
		if err := rows.Scan(&e.ID, &e.UserID, &ms, &eventType, &e.Subtype, &e.Source, &e.DeviceID,
			&lat, &lon, &accuracy, &speed, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Time = time.UnixMilli(ms).UTC()
		e.Type = event.Type(eventType)
		if lat.Valid {
			e.Lat = &lat.Float64
		}
		if lon.Valid {
			e.Lon = &lon.Float64
		}
		if accuracy.Valid {
			e.Accuracy = &accuracy.Float64
		}
		if speed.Valid {
			e.Speed = &speed.Float64
		}
		if payload != "" && payload != "{}" {
			if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
				e.Payload = nil
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
