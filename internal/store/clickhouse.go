package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"

	"github.com/lifestream/lifestream/internal/event"
)

// ClickHouse implements EventStore on a ClickHouse cluster. Deployments
// that already run a column store for event analytics point lifestream at
// it instead of the embedded SQLite database.
//
// Events use a ReplacingMergeTree keyed by (user_id, id), so re-ingesting
// a batch with known ids deduplicates at merge time.
type ClickHouse struct {
	conn driver.Conn
}

var _ EventStore = (*ClickHouse)(nil)

// ClickHouseOptions configures the connection.
type ClickHouseOptions struct {
	Addr     string // host:port, native protocol
	Database string
	Username string
	Password string
}

var clickhouseDDL = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id         String,
		user_id    String,
		event_time DateTime64(3, 'UTC'),
		event_type LowCardinality(String),
		subtype    String,
		source     LowCardinality(String),
		device_id  String,
		lat        Nullable(Float64),
		lon        Nullable(Float64),
		accuracy   Nullable(Float64),
		speed      Nullable(Float64),
		payload    String
	) ENGINE = ReplacingMergeTree
	ORDER BY (user_id, id)`,

	`CREATE TABLE IF NOT EXISTS patterns (
		id                 String,
		user_id            String,
		pattern_type       LowCardinality(String),
		fingerprint        String,
		name               String,
		description        String,
		confidence         Float64,
		center_lat         Nullable(Float64),
		center_lon         Nullable(Float64),
		radius_meters      Nullable(Float64),
		time_pattern       String,
		frequency_per_week Float64,
		first_seen         DateTime64(3, 'UTC'),
		last_seen          DateTime64(3, 'UTC'),
		occurrences        UInt32,
		is_active          UInt8,
		evidence           String,
		created_at         DateTime64(3, 'UTC')
	) ENGINE = MergeTree
	ORDER BY (user_id, pattern_type, fingerprint, created_at)`,

	`CREATE TABLE IF NOT EXISTS insights (
		id             String,
		user_id        String,
		graph_node_id  String,
		insight_type   LowCardinality(String),
		title          String,
		description    String,
		confidence     Float64,
		evidence_count UInt32,
		reasoning      String,
		source         LowCardinality(String),
		created_at     DateTime64(3, 'UTC')
	) ENGINE = MergeTree
	ORDER BY (user_id, created_at)`,
}

// OpenClickHouse connects and creates the schema if missing.
func OpenClickHouse(ctx context.Context, opts ClickHouseOptions) (*ClickHouse, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	ch := &ClickHouse{conn: conn}
	for _, ddl := range clickhouseDDL {
		if err := conn.Exec(ctx, ddl); err != nil {
			conn.Close()
			return nil, fmt.Errorf("clickhouse ddl: %w", err)
		}
	}
	return ch, nil
}

// InsertEvents appends a batch. ClickHouse cannot report per-row inserts,
// so the count equals the batch size; duplicate ids collapse at merge.
func (ch *ClickHouse) InsertEvents(ctx context.Context, userID string, events []event.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	batch, err := ch.conn.PrepareBatch(ctx, "INSERT INTO events")
	if err != nil {
		return 0, fmt.Errorf("prepare batch: %w", err)
	}
	for i := range events {
		e := &events[i]
		if err := batch.Append(
			e.ID, userID, e.Time.UTC(), string(e.Type), e.Subtype, e.Source, e.DeviceID,
			e.Lat, e.Lon, e.Accuracy, e.Speed, e.PayloadJSON(),
		); err != nil {
			return 0, fmt.Errorf("append event %s: %w", e.ID, err)
		}
	}
	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("send batch: %w", err)
	}
	return len(events), nil
}

const chEventColumns = "id, user_id, event_time, event_type, subtype, source, device_id, lat, lon, accuracy, speed, payload"

func (ch *ClickHouse) QueryEvents(ctx context.Context, userID string, f Filter) ([]event.Event, error) {
	query := "SELECT " + chEventColumns + " FROM events WHERE user_id = ?"
	args := []any{userID}

	if !f.Start.IsZero() {
		query += " AND event_time >= ?"
		args = append(args, f.Start.UTC())
	}
	if !f.End.IsZero() {
		query += " AND event_time <= ?"
		args = append(args, f.End.UTC())
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

	rows, err := ch.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()
	return scanCHEvents(rows)
}

func (ch *ClickHouse) SearchEvents(ctx context.Context, userID, keyword string, start, end time.Time, limit int) ([]event.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	query := "SELECT " + chEventColumns + ` FROM events
		WHERE user_id = ?
		  AND (positionCaseInsensitive(payload, ?) > 0 OR positionCaseInsensitive(subtype, ?) > 0)`
	args := []any{userID, keyword, keyword}

	if !start.IsZero() {
		query += " AND event_time >= ?"
		args = append(args, start.UTC())
	}
	if !end.IsZero() {
		query += " AND event_time <= ?"
		args = append(args, end.UTC())
	}
	query += " ORDER BY event_time DESC LIMIT ?"
	args = append(args, limit)

	rows, err := ch.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}
	defer rows.Close()
	return scanCHEvents(rows)
}

func (ch *ClickHouse) Stats(ctx context.Context, userID string) (*EventStats, error) {
	rows, err := ch.conn.Query(ctx, `
		SELECT event_type, count(), min(event_time), max(event_time)
		FROM events WHERE user_id = ?
		GROUP BY event_type ORDER BY count() DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("event stats: %w", err)
	}
	defer rows.Close()

	stats := &EventStats{ByType: make(map[string]TypeStats)}
	for rows.Next() {
		var eventType string
		var count uint64
		var first, last time.Time
		if err := rows.Scan(&eventType, &count, &first, &last); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats.Total += int(count)
		stats.ByType[eventType] = TypeStats{Count: int(count), First: first.UTC(), Last: last.UTC()}
	}
	return stats, rows.Err()
}

func (ch *ClickHouse) GeoPoints(ctx context.Context, userID string, start, end time.Time, limit int) ([]GeoPoint, error) {
	if limit <= 0 {
		limit = 10000
	}
	rows, err := ch.conn.Query(ctx, `
		SELECT event_time, lat, lon FROM events
		WHERE user_id = ? AND event_type = 'geo'
		  AND lat IS NOT NULL AND lon IS NOT NULL
		  AND event_time >= ? AND event_time < ?
		ORDER BY event_time ASC LIMIT ?
	`, userID, start.UTC(), end.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("geo points: %w", err)
	}
	defer rows.Close()

	var points []GeoPoint
	for rows.Next() {
		var t time.Time
		var lat, lon *float64
		if err := rows.Scan(&t, &lat, &lon); err != nil {
			return nil, fmt.Errorf("scan geo point: %w", err)
		}
		if lat == nil || lon == nil {
			continue
		}
		points = append(points, GeoPoint{Time: t.UTC(), Lat: *lat, Lon: *lon})
	}
	return points, rows.Err()
}

func (ch *ClickHouse) HourlyActivity(ctx context.Context, userID string, start, end time.Time) ([]HourlyBucket, error) {
	rows, err := ch.conn.Query(ctx, `
		SELECT toStartOfHour(event_time) AS hour,
		       count(),
		       avg(coalesce(speed, 0)),
		       max(coalesce(speed, 0))
		FROM events
		WHERE user_id = ? AND event_type = 'geo'
		  AND event_time >= ? AND event_time < ?
		GROUP BY hour ORDER BY hour ASC
	`, userID, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("hourly activity: %w", err)
	}
	defer rows.Close()

	var buckets []HourlyBucket
	for rows.Next() {
		var b HourlyBucket
		var count uint64
		if err := rows.Scan(&b.Hour, &count, &b.AvgSpeed, &b.MaxSpeed); err != nil {
			return nil, fmt.Errorf("scan hourly bucket: %w", err)
		}
		b.Points = int(count)
		b.Hour = b.Hour.UTC()
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// SavePattern deactivates prior patterns with the same fingerprint via a
// lightweight mutation, then appends the new row. Mutations are rare
// enough here (one miner run per user per day) that this is fine.
func (ch *ClickHouse) SavePattern(ctx context.Context, p *Pattern) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Fingerprint != "" {
		if err := ch.conn.Exec(ctx, `
			ALTER TABLE patterns UPDATE is_active = 0
			WHERE user_id = ? AND pattern_type = ? AND fingerprint = ? AND is_active = 1
		`, p.UserID, p.PatternType, p.Fingerprint); err != nil {
			return fmt.Errorf("supersede pattern: %w", err)
		}
	}

	batch, err := ch.conn.PrepareBatch(ctx, "INSERT INTO patterns")
	if err != nil {
		return fmt.Errorf("prepare pattern insert: %w", err)
	}
	active := uint8(0)
	if p.IsActive {
		active = 1
	}
	if err := batch.Append(
		p.ID, p.UserID, p.PatternType, p.Fingerprint, p.Name, p.Description, p.Confidence,
		p.CenterLat, p.CenterLon, p.RadiusMeters, p.TimePattern, p.FrequencyPerWeek,
		p.FirstSeen.UTC(), p.LastSeen.UTC(), uint32(p.Occurrences), active,
		marshalEvidence(p.Evidence), time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("append pattern: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("insert pattern: %w", err)
	}
	return nil
}

func (ch *ClickHouse) ListPatterns(ctx context.Context, userID, patternType string, activeOnly bool) ([]Pattern, error) {
	query := `SELECT id, user_id, pattern_type, fingerprint, name, description, confidence,
		center_lat, center_lon, radius_meters, time_pattern, frequency_per_week,
		first_seen, last_seen, occurrences, is_active, evidence
		FROM patterns WHERE user_id = ?`
	args := []any{userID}

	if patternType != "" {
		query += " AND pattern_type = ?"
		args = append(args, patternType)
	}
	if activeOnly {
		query += " AND is_active = 1"
	}
	query += " ORDER BY confidence DESC, occurrences DESC"

	rows, err := ch.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	defer rows.Close()

	var patterns []Pattern
	for rows.Next() {
		var p Pattern
		var occurrences uint32
		var active uint8
		var evidence string
		if err := rows.Scan(&p.ID, &p.UserID, &p.PatternType, &p.Fingerprint, &p.Name, &p.Description,
			&p.Confidence, &p.CenterLat, &p.CenterLon, &p.RadiusMeters, &p.TimePattern, &p.FrequencyPerWeek,
			&p.FirstSeen, &p.LastSeen, &occurrences, &active, &evidence); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		p.Occurrences = int(occurrences)
		p.IsActive = active != 0
		p.FirstSeen = p.FirstSeen.UTC()
		p.LastSeen = p.LastSeen.UTC()
		p.Evidence = unmarshalEvidence(evidence)
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

func (ch *ClickHouse) SaveInsight(ctx context.Context, ins *Insight) error {
	if ins.ID == "" {
		ins.ID = uuid.NewString()
	}
	if ins.Source == "" {
		ins.Source = "pattern_miner"
	}
	if ins.CreatedAt.IsZero() {
		ins.CreatedAt = time.Now().UTC()
	}

	batch, err := ch.conn.PrepareBatch(ctx, "INSERT INTO insights")
	if err != nil {
		return fmt.Errorf("prepare insight insert: %w", err)
	}
	if err := batch.Append(
		ins.ID, ins.UserID, ins.GraphNodeID, ins.InsightType, ins.Title, ins.Description,
		ins.Confidence, uint32(ins.EvidenceCount), ins.Reasoning, ins.Source, ins.CreatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("append insight: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("insert insight: %w", err)
	}
	return nil
}

func (ch *ClickHouse) ActiveUsers(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := ch.conn.Query(ctx, `
		SELECT DISTINCT user_id FROM events WHERE event_time >= ?
	`, since.UTC())
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

func (ch *ClickHouse) Ping(ctx context.Context) error {
	return ch.conn.Ping(ctx)
}

func (ch *ClickHouse) Close() error {
	return ch.conn.Close()
}

func scanCHEvents(rows driver.Rows) ([]event.Event, error) {
	var events []event.Event
	for rows.Next() {
		var e event.Event
		var eventType, payload string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Time, &eventType, &e.Subtype, &e.Source, &e.DeviceID,
			&e.Lat, &e.Lon, &e.Accuracy, &e.Speed, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Time = e.Time.UTC()
		e.Type = event.Type(eventType)
		if payload != "" && payload != "{}" {
			e.Payload = unmarshalEvidence(payload)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
