package insight

import (
	"context"
	"testing"
	"time"

	"github.com/lifestream/lifestream/internal/graph"
	"github.com/lifestream/lifestream/internal/llm"
	"github.com/lifestream/lifestream/internal/store"
)

func testPatterns() ([]store.Pattern, []store.Pattern) {
	now := time.Now().UTC()
	lat, lon := 55.751, 37.618
	locations := []store.Pattern{{
		ID: "pat-1", UserID: "user-1", PatternType: store.PatternLocationCluster,
		Name: "Morning place #0", Confidence: 0.55,
		CenterLat: &lat, CenterLon: &lon,
		FirstSeen: now.AddDate(0, 0, -7), LastSeen: now, Occurrences: 5, IsActive: true,
	}}
	routines := []store.Pattern{{
		ID: "pat-2", UserID: "user-1", PatternType: store.PatternRoutine,
		Name: "Morning activity, likely commute", Confidence: 0.6,
		TimePattern: "0 8 * * *",
		FirstSeen:   now.AddDate(0, 0, -7), LastSeen: now, Occurrences: 6, IsActive: true,
	}}
	return locations, routines
}

func TestSynthesizeAcceptsValidInsights(t *testing.T) {
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	oracle := &llm.MockClient{Response: &llm.Response{Content: "```json\n" + `[
		{"title": "Morning commuter", "description": "Leaves home around 8", "confidence": 0.8, "insight_type": "routine"},
		{"title": "Regular cafe visitor", "description": "Same place most mornings", "confidence": 0.7}
	]` + "\n```"}}
	g := &graph.MockGraph{HabitID: "node-42"}

	s := &Synthesizer{Oracle: oracle, Graph: g, Store: db, Model: "test-model"}
	locations, routines := testPatterns()

	insights := s.Synthesize(context.Background(), "user-1", locations, routines)

	if len(insights) != 2 {
		t.Fatalf("insights = %d, want 2", len(insights))
	}
	if len(oracle.Calls) != 1 {
		t.Errorf("oracle calls = %d, want 1", len(oracle.Calls))
	}

	first := insights[0]
	if first.Title != "Morning commuter" {
		t.Errorf("Title = %q", first.Title)
	}
	if first.InsightType != "routine" {
		t.Errorf("InsightType = %q", first.InsightType)
	}
	if first.GraphNodeID != "node-42" {
		t.Errorf("GraphNodeID = %q, want node-42", first.GraphNodeID)
	}
	if first.EvidenceCount != 2 {
		t.Errorf("EvidenceCount = %d, want 2", first.EvidenceCount)
	}
	// Missing insight_type defaults to habit.
	if insights[1].InsightType != "habit" {
		t.Errorf("default InsightType = %q, want habit", insights[1].InsightType)
	}

	if len(g.Habits) != 2 {
		t.Errorf("graph habits = %d, want 2", len(g.Habits))
	}

	// Audit log got both.
	audit, err := db.ListInsights(context.Background(), "user-1", 0)
	if err != nil {
		t.Fatalf("ListInsights: %v", err)
	}
	if len(audit) != 2 {
		t.Errorf("audit insights = %d, want 2", len(audit))
	}
}

func TestSynthesizeDiscardsInvalidCandidates(t *testing.T) {
	oracle := &llm.MockClient{Response: &llm.Response{Content: `[
		{"title": "", "confidence": 0.8},
		{"title": "Out of range", "confidence": 1.5},
		{"title": "Fine", "description": "ok", "confidence": 0.6, "insight_type": "habit"}
	]`}}

	s := &Synthesizer{Oracle: oracle}
	locations, routines := testPatterns()

	insights := s.Synthesize(context.Background(), "user-1", locations, routines)
	if len(insights) != 1 {
		t.Fatalf("insights = %d, want 1 (invalid candidates discarded)", len(insights))
	}
	if insights[0].Title != "Fine" {
		t.Errorf("Title = %q, want Fine", insights[0].Title)
	}
}

func TestSynthesizeOracleFailureYieldsEmpty(t *testing.T) {
	oracle := &llm.MockClient{Err: context.DeadlineExceeded}
	s := &Synthesizer{Oracle: oracle}
	locations, routines := testPatterns()

	if got := s.Synthesize(context.Background(), "user-1", locations, routines); got != nil {
		t.Errorf("insights = %v, want none on oracle failure", got)
	}
}

func TestSynthesizeUnparsableOutputYieldsEmpty(t *testing.T) {
	oracle := &llm.MockClient{Response: &llm.Response{Content: "I could not find any patterns worth mentioning."}}
	s := &Synthesizer{Oracle: oracle}
	locations, routines := testPatterns()

	if got := s.Synthesize(context.Background(), "user-1", locations, routines); got != nil {
		t.Errorf("insights = %v, want none for unparsable output", got)
	}
}

func TestSynthesizeNoPatternsSkipsOracle(t *testing.T) {
	oracle := &llm.MockClient{Response: &llm.Response{Content: "[]"}}
	s := &Synthesizer{Oracle: oracle}

	if got := s.Synthesize(context.Background(), "user-1", nil, nil); got != nil {
		t.Errorf("insights = %v, want none", got)
	}
	if len(oracle.Calls) != 0 {
		t.Errorf("oracle calls = %d, want 0 when there are no patterns", len(oracle.Calls))
	}
}

func TestParseInsightResponseFenced(t *testing.T) {
	content := "Here you go:\n```json\n[{\"title\": \"X\", \"confidence\": 0.5}]\n```"
	candidates, err := parseInsightResponse(content)
	if err != nil {
		t.Fatalf("parseInsightResponse: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Title != "X" {
		t.Errorf("candidates = %+v", candidates)
	}
}
