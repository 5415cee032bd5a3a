package event

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError reports a rejected event by its index in the batch.
type ValidationError struct {
	Index int    `json:"index"`
	Err   string `json:"error"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("event %d: %s", e.Index, e.Err)
}

// ValidateBatch checks each event's structural requirements for its type.
// Invalid events are skipped and reported by index; they never abort the
// batch. Valid events come back normalized: id and time assigned when
// missing, subtype derived from the payload when absent.
func ValidateBatch(userID string, events []Event) (valid []Event, errs []ValidationError) {
	now := time.Now().UTC()
	for i := range events {
		e := events[i]
		if err := validate(&e); err != nil {
			errs = append(errs, ValidationError{Index: i, Err: err.Error()})
			continue
		}
		if e.Time.IsZero() {
			e.Time = now
		}
		if e.ID == "" {
			e.ID = NewID(e.Time)
		}
		e.UserID = userID
		if e.Source == "" {
			e.Source = "api"
		}
		if e.Subtype == "" {
			e.Subtype = deriveSubtype(&e)
		}
		valid = append(valid, e)
	}
	return valid, errs
}

func validate(e *Event) error {
	if !ValidTypes[e.Type] {
		return fmt.Errorf("unknown event type %q", e.Type)
	}

	switch e.Type {
	case TypeGeo:
		if e.Lat == nil || e.Lon == nil {
			return fmt.Errorf("geo event requires lat and lon")
		}
		if *e.Lat < -90 || *e.Lat > 90 {
			return fmt.Errorf("lat %.4f out of range [-90, 90]", *e.Lat)
		}
		if *e.Lon < -180 || *e.Lon > 180 {
			return fmt.Errorf("lon %.4f out of range [-180, 180]", *e.Lon)
		}
	case TypePurchase:
		if strings.TrimSpace(e.PayloadString("item")) == "" {
			return fmt.Errorf("purchase event requires payload.item")
		}
		if amt, ok := e.Payload["amount"].(float64); ok && amt < 0 {
			return fmt.Errorf("purchase amount must be >= 0")
		}
	case TypeSocial:
		if strings.TrimSpace(e.PayloadString("action")) == "" {
			return fmt.Errorf("social event requires payload.action")
		}
	case TypeHealth:
		if strings.TrimSpace(e.PayloadString("metric")) == "" {
			return fmt.Errorf("health event requires payload.metric")
		}
		if _, ok := e.Payload["value"].(float64); !ok {
			return fmt.Errorf("health event requires numeric payload.value")
		}
	case TypeActivity:
		if strings.TrimSpace(e.PayloadString("activity")) == "" {
			return fmt.Errorf("activity event requires payload.activity")
		}
	case TypeCustom:
		if strings.TrimSpace(e.Subtype) == "" {
			return fmt.Errorf("custom event requires subtype")
		}
	}
	return nil
}

// deriveSubtype picks the most descriptive payload field per type, matching
// how events are labeled in search results.
func deriveSubtype(e *Event) string {
	switch e.Type {
	case TypeSocial:
		return e.PayloadString("action")
	case TypeHealth:
		return e.PayloadString("metric")
	case TypeActivity:
		return e.PayloadString("activity")
	case TypePurchase:
		return e.PayloadString("category")
	}
	return ""
}
