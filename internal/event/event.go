// Package event defines the life-event data model shared by the store,
// the pattern miners, and the memory query engine.
package event

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// Type classifies a life event.
type Type string

const (
	TypeGeo      Type = "geo"
	TypePurchase Type = "purchase"
	TypeSocial   Type = "social"
	TypeHealth   Type = "health"
	TypeActivity Type = "activity"
	TypeCustom   Type = "custom"
)

// ValidTypes is the set of accepted event types.
var ValidTypes = map[Type]bool{
	TypeGeo: true, TypePurchase: true, TypeSocial: true,
	TypeHealth: true, TypeActivity: true, TypeCustom: true,
}

// Event is an immutable life-event record. Events are never mutated or
// deleted by this core once stored.
type Event struct {
	ID        string         `json:"id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	Time      time.Time      `json:"ts"`
	Type      Type           `json:"type"`
	Subtype   string         `json:"subtype,omitempty"`
	Source    string         `json:"source,omitempty"`
	DeviceID  string         `json:"device_id,omitempty"`
	Lat       *float64       `json:"lat,omitempty"`
	Lon       *float64       `json:"lon,omitempty"`
	Accuracy  *float64       `json:"accuracy,omitempty"`
	Speed     *float64       `json:"speed,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// PayloadJSON serializes the payload map for storage. Returns "{}" for
// an empty payload so the text-search path always has something to match.
func (e *Event) PayloadJSON() string {
	if len(e.Payload) == 0 {
		return "{}"
	}
	b, err := json.Marshal(e.Payload)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// PayloadString returns a string field from the payload, or "".
func (e *Event) PayloadString(key string) string {
	if v, ok := e.Payload[key].(string); ok {
		return v
	}
	return ""
}

// PayloadFloat returns a numeric field from the payload, or 0.
// JSON numbers arrive as float64.
func (e *Event) PayloadFloat(key string) float64 {
	if v, ok := e.Payload[key].(float64); ok {
		return v
	}
	return 0
}

// entropy is the shared entropy source for event IDs. It is a locked
// monotonic reader, safe for the concurrent ingest handlers. ULIDs
// embed the event time, so re-ingesting the same batch with ids
// already assigned is idempotent at the store layer.
var entropy = ulid.DefaultEntropy()

// NewID mints a ULID for an event using its own timestamp, keeping ids
// lexically ordered by event time.
func NewID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
