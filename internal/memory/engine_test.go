package memory

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/lifestream/lifestream/internal/event"
	"github.com/lifestream/lifestream/internal/graph"
	"github.com/lifestream/lifestream/internal/llm"
	"github.com/lifestream/lifestream/internal/store"
)

func ptr(v float64) *float64 { return &v }

func testEngine(t *testing.T, g graph.Graph, oracle llm.Client) (*Engine, *store.DB) {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	eng := New(db, g, oracle)
	eng.now = func() time.Time { return time.Date(2026, 8, 19, 15, 30, 0, 0, time.UTC) }
	return eng, db
}

func seedEvents(t *testing.T, db *store.DB, userID string, events []event.Event) {
	t.Helper()
	if _, err := db.InsertEvents(context.Background(), userID, events); err != nil {
		t.Fatalf("InsertEvents: %v", err)
	}
}

func TestQueryZeroEvents(t *testing.T) {
	eng, _ := testEngine(t, nil, nil)

	ans, err := eng.Query(context.Background(), Question{UserID: "user-1", Question: "Where was I today?"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	if ans.EventsAnalyzed != 0 {
		t.Errorf("EventsAnalyzed = %d, want 0", ans.EventsAnalyzed)
	}
	if ans.Confidence != 0.1 {
		t.Errorf("Confidence = %v, want 0.1", ans.Confidence)
	}
	if !strings.Contains(ans.Answer, "No matching events") {
		t.Errorf("Answer = %q, want no-data message", ans.Answer)
	}
}

func TestQueryNoOracleFallback(t *testing.T) {
	eng, db := testEngine(t, nil, nil)

	now := time.Date(2026, 8, 19, 10, 0, 0, 0, time.UTC)
	seedEvents(t, db, "user-1", []event.Event{
		{ID: "ev-1", Time: now, Type: event.TypeGeo, Source: "test", Lat: ptr(55.75), Lon: ptr(37.61)},
		{ID: "ev-2", Time: now.Add(time.Hour), Type: event.TypeGeo, Source: "test", Lat: ptr(55.76), Lon: ptr(37.62)},
	})

	ans, err := eng.Query(context.Background(), Question{UserID: "user-1", Question: "Where was I today?"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	if ans.EventsAnalyzed != 2 {
		t.Errorf("EventsAnalyzed = %d, want 2", ans.EventsAnalyzed)
	}
	if ans.Confidence < 0.1 {
		t.Errorf("Confidence = %v, want >= 0.1", ans.Confidence)
	}
	if !strings.Contains(ans.Answer, "2 events") {
		t.Errorf("Answer = %q, want deterministic count answer", ans.Answer)
	}
	if len(ans.Locations) != 2 {
		t.Errorf("Locations = %d, want 2", len(ans.Locations))
	}
}

func TestQueryWithOracle(t *testing.T) {
	oracle := &llm.MockClient{Response: &llm.Response{
		Content: `{"answer": "You were at the office most of the day.", "reasoning": "Two geo fixes near the office cluster."}`,
	}}
	eng, db := testEngine(t, nil, oracle)

	now := time.Date(2026, 8, 19, 10, 0, 0, 0, time.UTC)
	seedEvents(t, db, "user-1", []event.Event{
		{ID: "ev-1", Time: now, Type: event.TypeGeo, Source: "test", Lat: ptr(55.75), Lon: ptr(37.61)},
	})

	ans, err := eng.Query(context.Background(), Question{
		UserID: "user-1", Question: "Where was I today?", IncludeReasoning: true,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	if ans.Answer != "You were at the office most of the day." {
		t.Errorf("Answer = %q", ans.Answer)
	}
	if ans.Reasoning == "" {
		t.Error("expected reasoning")
	}
	if len(oracle.Calls) != 1 {
		t.Fatalf("oracle calls = %d, want 1", len(oracle.Calls))
	}
	if !strings.Contains(oracle.Calls[0], "Where was I today?") {
		t.Error("prompt missing the question")
	}
}

func TestQueryOracleFailureDegrades(t *testing.T) {
	oracle := &llm.MockClient{Err: context.DeadlineExceeded}
	eng, db := testEngine(t, nil, oracle)

	now := time.Date(2026, 8, 19, 10, 0, 0, 0, time.UTC)
	seedEvents(t, db, "user-1", []event.Event{
		{ID: "ev-1", Time: now, Type: event.TypeGeo, Source: "test", Lat: ptr(55.75), Lon: ptr(37.61)},
	})

	ans, err := eng.Query(context.Background(), Question{UserID: "user-1", Question: "Where was I today?"})
	if err != nil {
		t.Fatalf("Query: %v (oracle failure must not fail the query)", err)
	}
	if !strings.Contains(ans.Answer, "1 events") {
		t.Errorf("Answer = %q, want deterministic fallback", ans.Answer)
	}
	if ans.Confidence < 0.1 {
		t.Errorf("Confidence = %v, want >= 0.1", ans.Confidence)
	}
}

func TestQueryPeopleEnrichment(t *testing.T) {
	g := &graph.MockGraph{People: []graph.Person{
		{ID: "p-1", Name: "Anna Petrova", Email: "anna@example.com"},
	}}
	eng, db := testEngine(t, g, nil)

	now := time.Date(2026, 8, 19, 13, 0, 0, 0, time.UTC)
	seedEvents(t, db, "user-1", []event.Event{
		{
			ID: "ev-1", Time: now, Type: event.TypeSocial, Subtype: "lunch", Source: "test",
			Payload: map[string]any{"action": "lunch", "person_id": "p-1"},
		},
		{
			ID: "ev-2", Time: now.Add(time.Hour), Type: event.TypeSocial, Subtype: "call", Source: "test",
			Payload: map[string]any{"action": "call", "person_id": "p-unknown", "person_name": "Boris"},
		},
	})

	ans, err := eng.Query(context.Background(), Question{UserID: "user-1", Question: "С кем я встречался сегодня?"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	if len(ans.People) != 2 {
		t.Fatalf("People = %d, want 2", len(ans.People))
	}
	byID := make(map[string]graph.Person)
	for _, p := range ans.People {
		byID[p.ID] = p
	}
	if byID["p-1"].Name != "Anna Petrova" {
		t.Errorf("resolved person = %+v", byID["p-1"])
	}
	// Unknown id degrades to the raw payload name.
	if byID["p-unknown"].Name != "Boris" {
		t.Errorf("unresolved person = %+v, want payload name", byID["p-unknown"])
	}
}

func TestQueryTransactions(t *testing.T) {
	eng, db := testEngine(t, nil, nil)

	now := time.Date(2026, 8, 19, 9, 0, 0, 0, time.UTC)
	seedEvents(t, db, "user-1", []event.Event{
		{
			ID: "ev-1", Time: now, Type: event.TypePurchase, Subtype: "food", Source: "test",
			Payload: map[string]any{"item": "cappuccino", "amount": 5.5, "place": "Blue Cup", "category": "food"},
		},
	})

	ans, err := eng.Query(context.Background(), Question{UserID: "user-1", Question: "Сколько я потратил сегодня?"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	if len(ans.Transactions) != 1 {
		t.Fatalf("Transactions = %d, want 1", len(ans.Transactions))
	}
	tx := ans.Transactions[0]
	if tx.Item != "cappuccino" || tx.Amount != 5.5 || tx.Place != "Blue Cup" {
		t.Errorf("Transaction = %+v", tx)
	}
}

func TestQueryLocationDedup(t *testing.T) {
	eng, db := testEngine(t, nil, nil)

	now := time.Date(2026, 8, 19, 9, 0, 0, 0, time.UTC)
	// Two fixes at effectively the same coordinates, one elsewhere.
	seedEvents(t, db, "user-1", []event.Event{
		{ID: "ev-1", Time: now, Type: event.TypeGeo, Source: "test", Lat: ptr(55.750012), Lon: ptr(37.610022)},
		{ID: "ev-2", Time: now.Add(time.Minute), Type: event.TypeGeo, Source: "test", Lat: ptr(55.750018), Lon: ptr(37.610019)},
		{ID: "ev-3", Time: now.Add(time.Hour), Type: event.TypeGeo, Source: "test", Lat: ptr(55.7601), Lon: ptr(37.6202)},
	})

	ans, err := eng.Query(context.Background(), Question{UserID: "user-1", Question: "Where was I today?"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(ans.Locations) != 2 {
		t.Errorf("Locations = %d, want 2 after 4-decimal dedup", len(ans.Locations))
	}
}

func TestScoreConfidence(t *testing.T) {
	cases := []struct {
		events int
		answer string
		want   float64
	}{
		{0, "anything", 0.1},
		{10, "clear answer", 0.6},
		{200, "clear answer", 0.95},
		{10, "возможно, вы были дома", 0.5},
		{10, "not sure, insufficient data", 0.4},
		{2, "возможно, вероятно, не уверен, недостаточно", 0.12},
	}
	for _, tc := range cases {
		got := scoreConfidence(tc.events, tc.answer)
		if diff := got - tc.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("scoreConfidence(%d, %q) = %v, want %v", tc.events, tc.answer, got, tc.want)
		}
	}
}

func TestParseAnswerResponseRawText(t *testing.T) {
	answer, reasoning := parseAnswerResponse("You were mostly at home.")
	if answer != "You were mostly at home." || reasoning != "" {
		t.Errorf("got (%q, %q)", answer, reasoning)
	}
}
