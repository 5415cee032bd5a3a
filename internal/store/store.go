// Package store persists life events, mined patterns, and insight audit
// records. Two backends implement EventStore: the embedded SQLite
// database (the default) and ClickHouse for deployments with an existing
// column store.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lifestream/lifestream/internal/event"
)

// EventStore is the storage surface the server, miners, and memory
// engine depend on.
type EventStore interface {
	// InsertEvents appends a batch of validated events for one user and
	// returns how many rows were actually stored (duplicates skipped).
	InsertEvents(ctx context.Context, userID string, events []event.Event) (int, error)

	// QueryEvents returns a user's events newest first, bounded by the
	// filter. Events of other users are never visible.
	QueryEvents(ctx context.Context, userID string, f Filter) ([]event.Event, error)

	// SearchEvents does a case-insensitive substring match over payload
	// and subtype within [start, end].
	SearchEvents(ctx context.Context, userID, keyword string, start, end time.Time, limit int) ([]event.Event, error)

	// Stats returns per-type counts and time bounds for a user.
	Stats(ctx context.Context, userID string) (*EventStats, error)

	// GeoPoints returns location fixes in [start, end) ordered by time
	// ascending, for the location clusterer.
	GeoPoints(ctx context.Context, userID string, start, end time.Time, limit int) ([]GeoPoint, error)

	// HourlyActivity rolls geo events into per-hour buckets for the
	// routine miner.
	HourlyActivity(ctx context.Context, userID string, start, end time.Time) ([]HourlyBucket, error)

	// SavePattern stores a mined pattern, deactivating any prior active
	// pattern with the same (user, type, fingerprint).
	SavePattern(ctx context.Context, p *Pattern) error

	// ListPatterns returns a user's patterns ordered by confidence then
	// occurrences, descending. patternType filters when non-empty.
	ListPatterns(ctx context.Context, userID, patternType string, activeOnly bool) ([]Pattern, error)

	// SaveInsight appends an insight to the audit log.
	SaveInsight(ctx context.Context, ins *Insight) error

	// ActiveUsers returns ids of users with at least one event since the
	// given time.
	ActiveUsers(ctx context.Context, since time.Time) ([]string, error)

	Ping(ctx context.Context) error
	Close() error
}

// Filter bounds an event query.
type Filter struct {
	Start time.Time
	End   time.Time
	Types []event.Type
	Limit int
}

func (f Filter) limit() int {
	if f.Limit <= 0 {
		return 100
	}
	return f.Limit
}

// GeoPoint is a single location fix, the clusterer's input unit.
type GeoPoint struct {
	Time time.Time `json:"ts"`
	Lat  float64   `json:"lat"`
	Lon  float64   `json:"lon"`
}

// HourlyBucket aggregates one hour of geo activity.
type HourlyBucket struct {
	Hour     time.Time `json:"hour"`
	Points   int       `json:"points"`
	AvgSpeed float64   `json:"avg_speed"`
	MaxSpeed float64   `json:"max_speed"`
}

// TypeStats summarizes one event type for a user.
type TypeStats struct {
	Count int       `json:"count"`
	First time.Time `json:"first"`
	Last  time.Time `json:"last"`
}

// EventStats is the per-user storage summary.
type EventStats struct {
	Total  int                  `json:"total"`
	ByType map[string]TypeStats `json:"by_type"`
}

// Pattern type names.
const (
	PatternLocationCluster = "location_cluster"
	PatternRoutine         = "routine"
	PatternHabit           = "habit"
	PatternRelationship    = "relationship"
	PatternAnomaly         = "anomaly"
)

// Pattern is a mined behavioral pattern. Fingerprint identifies the
// underlying phenomenon across miner runs so reruns supersede instead
// of accumulating; it is internal and never serialized.
type Pattern struct {
	ID               string         `json:"id"`
	UserID           string         `json:"user_id"`
	PatternType      string         `json:"pattern_type"`
	Fingerprint      string         `json:"-"`
	Name             string         `json:"name"`
	Description      string         `json:"description,omitempty"`
	Confidence       float64        `json:"confidence"`
	CenterLat        *float64       `json:"center_lat,omitempty"`
	CenterLon        *float64       `json:"center_lon,omitempty"`
	RadiusMeters     *float64       `json:"radius_meters,omitempty"`
	TimePattern      string         `json:"time_pattern,omitempty"`
	FrequencyPerWeek float64        `json:"frequency_per_week"`
	FirstSeen        time.Time      `json:"first_seen"`
	LastSeen         time.Time      `json:"last_seen"`
	Occurrences      int            `json:"occurrences"`
	IsActive         bool           `json:"is_active"`
	Evidence         map[string]any `json:"evidence,omitempty"`
}

// Insight is one audit record of an LLM-synthesized habit insight,
// linked to the graph node it produced.
type Insight struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	GraphNodeID   string    `json:"graph_node_id,omitempty"`
	InsightType   string    `json:"insight_type"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Confidence    float64   `json:"confidence"`
	EvidenceCount int       `json:"evidence_count"`
	Reasoning     string    `json:"reasoning,omitempty"`
	Source        string    `json:"source"`
	CreatedAt     time.Time `json:"created_at"`
}

// LocationFingerprint keys a location cluster by its centroid rounded
// to 3 decimal places, about 110 meters. Clusters whose centroids drift
// within that box count as the same place.
func LocationFingerprint(lat, lon float64) string {
	return fmt.Sprintf("loc:%.3f:%.3f", lat, lon)
}

// HourFingerprint keys an hourly routine by its hour of day.
func HourFingerprint(hour int) string {
	return fmt.Sprintf("hour:%02d", hour)
}

func marshalEvidence(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func unmarshalEvidence(s string) map[string]any {
	if s == "" || s == "{}" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil
	}
	return m
}
