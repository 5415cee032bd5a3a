package memory

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/lifestream/lifestream/internal/event"
	"github.com/lifestream/lifestream/internal/graph"
	"github.com/lifestream/lifestream/internal/store"
)

const (
	maxEventsPerType   = 10
	maxContextPatterns = 5
)

// buildContext renders retrieved events, resolved people, and active
// patterns into the text block handed to the oracle. Events are grouped
// by type with a per-type display cap.
func buildContext(events []event.Event, people []graph.Person, patterns []store.Pattern) string {
	var b strings.Builder

	if len(events) > 0 {
		fmt.Fprintf(&b, "## Events (%d records)\n", len(events))

		byType := make(map[event.Type][]event.Event)
		var order []event.Type
		for _, ev := range events {
			if _, ok := byType[ev.Type]; !ok {
				order = append(order, ev.Type)
			}
			byType[ev.Type] = append(byType[ev.Type], ev)
		}

		for _, t := range order {
			group := byType[t]
			fmt.Fprintf(&b, "\n### %s (%d)\n", strings.ToUpper(string(t)), len(group))
			for i, ev := range group {
				if i >= maxEventsPerType {
					break
				}
				b.WriteString("- " + formatEvent(&ev) + "\n")
			}
		}
	}

	if len(people) > 0 {
		fmt.Fprintf(&b, "\n## People (%d)\n", len(people))
		for _, p := range people {
			fmt.Fprintf(&b, "- %s (%s)\n", p.Name, p.Email)
		}
	}

	if len(patterns) > 0 {
		fmt.Fprintf(&b, "\n## Known patterns (%d)\n", len(patterns))
		for i, p := range patterns {
			if i >= maxContextPatterns {
				break
			}
			fmt.Fprintf(&b, "- %s: %s\n", p.Name, p.Description)
		}
	}

	return b.String()
}

func formatEvent(ev *event.Event) string {
	ts := ev.Time.Format(time.RFC3339)
	switch ev.Type {
	case event.TypeGeo:
		lat, lon := 0.0, 0.0
		if ev.Lat != nil {
			lat = *ev.Lat
		}
		if ev.Lon != nil {
			lon = *ev.Lon
		}
		return fmt.Sprintf("%s: coordinates (%.5f, %.5f)", ts, lat, lon)
	case event.TypePurchase:
		return fmt.Sprintf("%s: %s - %.2f (%s)", ts,
			ev.PayloadString("item"), ev.PayloadFloat("amount"), ev.PayloadString("place"))
	case event.TypeSocial:
		action := ev.Subtype
		if action == "" {
			action = ev.PayloadString("action")
		}
		person := ev.PayloadString("person_name")
		if person == "" {
			person = ev.PayloadString("person_id")
		}
		return fmt.Sprintf("%s: %s with %s", ts, action, person)
	default:
		payload := ev.PayloadJSON()
		if len(payload) > 100 {
			payload = payload[:100]
		}
		return fmt.Sprintf("%s: %s", ts, payload)
	}
}

// extractLocations dedupes event coordinates to 4 decimal places,
// about 11 m, keeping first occurrence order. Capped at 20.
func extractLocations(events []event.Event) []Location {
	seen := make(map[string]bool)
	var out []Location
	for i := range events {
		ev := &events[i]
		if ev.Lat == nil || ev.Lon == nil {
			continue
		}
		key := fmt.Sprintf("%.4f,%.4f", round4(*ev.Lat), round4(*ev.Lon))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Location{Lat: *ev.Lat, Lon: *ev.Lon, Time: ev.Time})
		if len(out) == maxLocations {
			break
		}
	}
	return out
}

// extractPeople lists distinct person references from social events,
// preferring graph-resolved identities over raw payload names.
func extractPeople(events []event.Event, resolved []graph.Person) []graph.Person {
	byID := make(map[string]graph.Person, len(resolved))
	for _, p := range resolved {
		byID[p.ID] = p
	}

	seen := make(map[string]bool)
	var out []graph.Person
	for i := range events {
		ev := &events[i]
		if ev.Type != event.TypeSocial {
			continue
		}
		id := ev.PayloadString("person_id")
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := byID[id]; ok {
			out = append(out, p)
			continue
		}
		name := ev.PayloadString("person_name")
		if name == "" {
			name = "Unknown"
		}
		out = append(out, graph.Person{ID: id, Name: name})
	}
	return out
}

// extractTransactions lists purchases from the matched events, capped
// at 50.
func extractTransactions(events []event.Event) []Transaction {
	var out []Transaction
	for i := range events {
		ev := &events[i]
		if ev.Type != event.TypePurchase {
			continue
		}
		out = append(out, Transaction{
			Time:     ev.Time,
			Item:     ev.PayloadString("item"),
			Amount:   ev.PayloadFloat("amount"),
			Place:    ev.PayloadString("place"),
			Category: ev.PayloadString("category"),
		})
		if len(out) == maxTransaction {
			break
		}
	}
	return out
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
