package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lifestream/lifestream/internal/event"
	"github.com/lifestream/lifestream/internal/graph"
	"github.com/lifestream/lifestream/internal/llm"
	"github.com/lifestream/lifestream/internal/store"
)

const (
	queryLimit     = 500
	searchLimit    = 50
	maxKeywords    = 3
	oracleTimeout  = 120 * time.Second
	maxLocations   = 20
	maxTransaction = 50
)

// Engine runs memory queries. Graph and Oracle may be nil; every
// enrichment they provide degrades instead of failing the query. Only
// the Store is required.
type Engine struct {
	Store  store.EventStore
	Graph  graph.Graph
	Oracle llm.Client

	// now is swappable for tests.
	now func() time.Time
}

// New creates a memory query engine.
func New(st store.EventStore, g graph.Graph, oracle llm.Client) *Engine {
	return &Engine{Store: st, Graph: g, Oracle: oracle, now: func() time.Time { return time.Now().UTC() }}
}

// Question is one natural-language memory query.
type Question struct {
	UserID           string    `json:"user_id"`
	Question         string    `json:"question"`
	Start            time.Time `json:"start,omitempty"`
	End              time.Time `json:"end,omitempty"`
	IncludeReasoning bool      `json:"include_reasoning"`
}

// Location is a deduplicated place reference from the matched events.
type Location struct {
	Lat  float64   `json:"lat"`
	Lon  float64   `json:"lon"`
	Time time.Time `json:"ts"`
}

// Transaction is a purchase extracted from the matched events.
type Transaction struct {
	Time     time.Time `json:"ts"`
	Item     string    `json:"item"`
	Amount   float64   `json:"amount"`
	Place    string    `json:"place,omitempty"`
	Category string    `json:"category,omitempty"`
}

// Answer is the result of one memory query.
type Answer struct {
	Question       string         `json:"question"`
	Answer         string         `json:"answer"`
	Confidence     float64        `json:"confidence"`
	EventsAnalyzed int            `json:"events_analyzed"`
	TimeRange      TimeRange      `json:"time_range"`
	Locations      []Location     `json:"locations"`
	People         []graph.Person `json:"people"`
	Transactions   []Transaction  `json:"transactions"`
	Reasoning      string         `json:"reasoning,omitempty"`
	Sources        []string       `json:"sources"`
}

// Query answers a question about the user's history. The read path is
// stateless; concurrent callers are safe. Only store unavailability
// fails the call.
func (e *Engine) Query(ctx context.Context, q Question) (*Answer, error) {
	tr := ResolveTimeRange(q.Question, q.Start, q.End, e.now())

	events, err := e.retrieve(ctx, q.UserID, q.Question, tr)
	if err != nil {
		return nil, err
	}

	people := e.resolvePeople(ctx, events)

	patterns, err := e.Store.ListPatterns(ctx, q.UserID, "", true)
	if err != nil {
		// Patterns are background context only.
		log.Printf("memory: list patterns for user %s: %v", q.UserID, err)
		patterns = nil
	}

	contextText := buildContext(events, people, patterns)
	answerText, reasoning := e.synthesizeAnswer(ctx, q.Question, contextText, len(events))

	ans := &Answer{
		Question:       q.Question,
		Answer:         answerText,
		Confidence:     scoreConfidence(len(events), answerText),
		EventsAnalyzed: len(events),
		TimeRange:      tr,
		Locations:      extractLocations(events),
		People:         extractPeople(events, people),
		Transactions:   extractTransactions(events),
		Sources: []string{
			fmt.Sprintf("events: %d", len(events)),
			fmt.Sprintf("people: %d", len(people)),
		},
	}
	if q.IncludeReasoning {
		ans.Reasoning = reasoning
	}
	return ans, nil
}

// retrieve runs one bounded range query plus up to three keyword
// searches, deduplicated by event id.
func (e *Engine) retrieve(ctx context.Context, userID, question string, tr TimeRange) ([]event.Event, error) {
	events, err := e.Store.QueryEvents(ctx, userID, store.Filter{
		Start: tr.Start,
		End:   tr.End,
		Types: InferEventTypes(question),
		Limit: queryLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	seen := make(map[string]bool, len(events))
	for _, ev := range events {
		seen[ev.ID] = true
	}

	keywords := ExtractKeywords(question)
	if len(keywords) > maxKeywords {
		keywords = keywords[:maxKeywords]
	}
	for _, kw := range keywords {
		matches, err := e.Store.SearchEvents(ctx, userID, kw, tr.Start, tr.End, searchLimit)
		if err != nil {
			return nil, fmt.Errorf("search events: %w", err)
		}
		for _, ev := range matches {
			if !seen[ev.ID] {
				seen[ev.ID] = true
				events = append(events, ev)
			}
		}
	}
	return events, nil
}

// resolvePeople looks up person references from social payloads in the
// graph. Any failure degrades to the raw payload names.
func (e *Engine) resolvePeople(ctx context.Context, events []event.Event) []graph.Person {
	if e.Graph == nil {
		return nil
	}

	seen := make(map[string]bool)
	var ids []string
	for i := range events {
		if events[i].Type != event.TypeSocial {
			continue
		}
		if id := events[i].PayloadString("person_id"); id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	people, err := e.Graph.ResolvePeople(ctx, ids)
	if err != nil {
		log.Printf("memory: resolve people: %v", err)
		return nil
	}
	return people
}

// synthesizeAnswer delegates to the oracle when configured, otherwise
// (or on any oracle failure) returns the deterministic fallback.
func (e *Engine) synthesizeAnswer(ctx context.Context, question, contextText string, eventCount int) (answer, reasoning string) {
	if e.Oracle == nil {
		return fallbackAnswer(eventCount), ""
	}

	cctx, cancel := context.WithTimeout(ctx, oracleTimeout)
	defer cancel()

	resp, err := e.Oracle.Complete(cctx, llm.AnswerPrompt(question, contextText))
	if err != nil {
		log.Printf("memory: oracle failed: %v", err)
		return fallbackAnswer(eventCount), ""
	}

	return parseAnswerResponse(resp.Content)
}

func fallbackAnswer(eventCount int) string {
	if eventCount == 0 {
		return "No matching events found for the requested period."
	}
	return fmt.Sprintf("Found %d events in the requested period.", eventCount)
}

// parseAnswerResponse extracts the {"answer", "reasoning"} object from
// the oracle output; raw text is used as-is when no object parses.
func parseAnswerResponse(content string) (answer, reasoning string) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		var data struct {
			Answer    string `json:"answer"`
			Reasoning string `json:"reasoning"`
		}
		if err := json.Unmarshal([]byte(content[start:end+1]), &data); err == nil && data.Answer != "" {
			return data.Answer, data.Reasoning
		}
	}
	return strings.TrimSpace(content), ""
}

// hedgingPhrases each cost 0.1 confidence when present in the answer.
var hedgingPhrases = []string{
	"возможно", "вероятно", "не уверен", "недостаточно", "нет данных",
	"possibly", "probably", "not sure", "insufficient", "no data",
}

// scoreConfidence rates an answer by evidence volume minus hedging,
// clamped to [0.1, 0.95]. Zero analyzed events pins it to the floor.
func scoreConfidence(eventCount int, answer string) float64 {
	if eventCount == 0 {
		return 0.1
	}

	eventScore := float64(eventCount) / 100
	if eventScore > 0.5 {
		eventScore = 0.5
	}

	lower := strings.ToLower(answer)
	penalty := 0.0
	for _, phrase := range hedgingPhrases {
		if strings.Contains(lower, phrase) {
			penalty += 0.1
		}
	}

	c := 0.5 + eventScore - penalty
	if c < 0.1 {
		return 0.1
	}
	if c > 0.95 {
		return 0.95
	}
	return c
}
