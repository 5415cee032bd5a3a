package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const patternColumns = `id, user_id, pattern_type, fingerprint, name, description, confidence,
	center_lat, center_lon, radius_meters, time_pattern, frequency_per_week,
	first_seen, last_seen, occurrences, is_active, evidence`

// SavePattern persists a mined pattern. Any prior active pattern for the
// same (user, type, fingerprint) is marked inactive first, so reruns of
// the miner supersede rather than accumulate.
func (db *DB) SavePattern(ctx context.Context, p *Pattern) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UnixMilli()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save pattern: %w", err)
	}
	defer tx.Rollback()

	if p.Fingerprint != "" {
		if _, err := tx.ExecContext(ctx, `
			UPDATE patterns SET is_active = 0
			WHERE user_id = ? AND pattern_type = ? AND fingerprint = ? AND is_active = 1
		`, p.UserID, p.PatternType, p.Fingerprint); err != nil {
			return fmt.Errorf("supersede pattern: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO patterns (`+patternColumns+`, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.UserID, p.PatternType, p.Fingerprint, p.Name, p.Description, p.Confidence,
		p.CenterLat, p.CenterLon, p.RadiusMeters, p.TimePattern, p.FrequencyPerWeek,
		p.FirstSeen.UnixMilli(), p.LastSeen.UnixMilli(), p.Occurrences, boolInt(p.IsActive), marshalEvidence(p.Evidence), now)
	if err != nil {
		return fmt.Errorf("insert pattern: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save pattern: %w", err)
	}
	return nil
}

// ListPatterns returns a user's patterns ordered by confidence then
// occurrences, both descending. patternType filters when non-empty.
func (db *DB) ListPatterns(ctx context.Context, userID, patternType string, activeOnly bool) ([]Pattern, error) {
	query := "SELECT " + patternColumns + " FROM patterns WHERE user_id = ?"
	args := []any{userID}

	if patternType != "" {
		query += " AND pattern_type = ?"
		args = append(args, patternType)
	}
	if activeOnly {
		query += " AND is_active = 1"
	}
	query += " ORDER BY confidence DESC, occurrences DESC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	defer rows.Close()

	var patterns []Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, *p)
	}
	return patterns, rows.Err()
}

// SaveInsight appends an insight to the audit log.
func (db *DB) SaveInsight(ctx context.Context, ins *Insight) error {
	if ins.ID == "" {
		ins.ID = uuid.NewString()
	}
	if ins.Source == "" {
		ins.Source = "pattern_miner"
	}
	if ins.CreatedAt.IsZero() {
		ins.CreatedAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO insights (id, user_id, graph_node_id, insight_type, title, description,
			confidence, evidence_count, reasoning, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ins.ID, ins.UserID, ins.GraphNodeID, ins.InsightType, ins.Title, ins.Description,
		ins.Confidence, ins.EvidenceCount, ins.Reasoning, ins.Source, ins.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert insight: %w", err)
	}
	return nil
}

// ListInsights returns a user's insight audit log, newest first.
func (db *DB) ListInsights(ctx context.Context, userID string, limit int) ([]Insight, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, graph_node_id, insight_type, title, description,
			confidence, evidence_count, reasoning, source, created_at
		FROM insights WHERE user_id = ?
		ORDER BY created_at DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}
	defer rows.Close()

	var insights []Insight
	for rows.Next() {
		var ins Insight
		var createdMs int64
		if err := rows.Scan(&ins.ID, &ins.UserID, &ins.GraphNodeID, &ins.InsightType, &ins.Title,
			&ins.Description, &ins.Confidence, &ins.EvidenceCount, &ins.Reasoning, &ins.Source, &createdMs); err != nil {
			return nil, fmt.Errorf("scan insight: %w", err)
		}
		ins.CreatedAt = time.UnixMilli(createdMs).UTC()
		insights = append(insights, ins)
	}
	return insights, rows.Err()
}

func scanPattern(rows *sql.Rows) (*Pattern, error) {
	var p Pattern
	var centerLat, centerLon, radius sql.NullFloat64
	var firstMs, lastMs int64
	var active int
	var evidence string
	if err := rows.Scan(&p.ID, &p.UserID, &p.PatternType, &p.Fingerprint, &p.Name, &p.Description,
		&p.Confidence, &centerLat, &centerLon, &radius, &p.TimePattern, &p.FrequencyPerWeek,
		&firstMs, &lastMs, &p.Occurrences, &active, &evidence); err != nil {
		return nil, fmt.Errorf("scan pattern: %w", err)
	}
	if centerLat.Valid {
		p.CenterLat = &centerLat.Float64
	}
	if centerLon.Valid {
		p.CenterLon = &centerLon.Float64
	}
	if radius.Valid {
		p.RadiusMeters = &radius.Float64
	}
	p.FirstSeen = time.UnixMilli(firstMs).UTC()
	p.LastSeen = time.UnixMilli(lastMs).UTC()
	p.IsActive = active != 0
	p.Evidence = unmarshalEvidence(evidence)
	return &p, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
