package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lifestream/lifestream/internal/config"
	"github.com/lifestream/lifestream/internal/memory"
	"github.com/lifestream/lifestream/internal/miner"
	"github.com/lifestream/lifestream/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.DB) {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	eng := memory.New(db, nil, nil)
	runner := miner.New(db, nil, config.Default().Miner)
	return New(db, eng, runner, "test"), db
}

func postJSON(t *testing.T, srv *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(b))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %v", resp["status"])
	}
	if resp["store"] != true {
		t.Errorf("store = %v, want true", resp["store"])
	}
}

func TestIngestPartialBatch(t *testing.T) {
	srv, _ := newTestServer(t)

	w := postJSON(t, srv, "/api/ingest", map[string]any{
		"user_id": "user-1",
		"events": []map[string]any{
			{"ts": time.Now().UTC(), "type": "geo", "lat": 55.75, "lon": 37.61},
			{"ts": time.Now().UTC(), "type": "geo"}, // missing coordinates
			{"ts": time.Now().UTC(), "type": "purchase", "payload": map[string]any{"item": "coffee", "amount": 4.5}},
		},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		StoredCount int `json:"stored_count"`
		Errors      []struct {
			Index int    `json:"index"`
			Error string `json:"error"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if resp.StoredCount != 2 {
		t.Errorf("stored_count = %d, want 2", resp.StoredCount)
	}
	if len(resp.Errors) != 1 {
		t.Fatalf("errors = %d, want 1", len(resp.Errors))
	}
	if resp.Errors[0].Index != 1 {
		t.Errorf("error index = %d, want 1", resp.Errors[0].Index)
	}
	if resp.StoredCount+len(resp.Errors) != 3 {
		t.Errorf("stored + errors = %d, want 3", resp.StoredCount+len(resp.Errors))
	}
}

func TestIngestValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	// Missing user_id
	w := postJSON(t, srv, "/api/ingest", map[string]any{
		"events": []map[string]any{{"type": "geo", "lat": 1.0, "lon": 1.0}},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing user_id: status = %d, want 400", w.Code)
	}

	// Empty events
	w = postJSON(t, srv, "/api/ingest", map[string]any{"user_id": "user-1"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty events: status = %d, want 400", w.Code)
	}

	// Broken JSON
	req := httptest.NewRequest("POST", "/api/ingest", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("broken json: status = %d, want 400", rec.Code)
	}
}

func TestEventsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	postJSON(t, srv, "/api/ingest", map[string]any{
		"user_id": "user-1",
		"events": []map[string]any{
			{"ts": time.Now().UTC(), "type": "geo", "lat": 55.75, "lon": 37.61},
		},
	})

	req := httptest.NewRequest("GET", "/api/events/user-1?types=geo", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 {
		t.Errorf("count = %d, want 1", resp.Count)
	}

	// Unknown type rejected
	req = httptest.NewRequest("GET", "/api/events/user-1?types=bogus", nil)
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bogus type: status = %d, want 400", w.Code)
	}
}

func TestPatternsEndpointEmpty(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/patterns/user-1", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		Count    int             `json:"count"`
		Patterns []store.Pattern `json:"patterns"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 0 || resp.Patterns == nil {
		t.Errorf("want empty (not null) pattern list, got %s", w.Body.String())
	}
}

func TestMemoryQueryNoEngine(t *testing.T) {
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()
	srv := New(db, nil, nil, "test")

	w := postJSON(t, srv, "/api/memory/query", map[string]any{
		"user_id": "user-1", "question": "Where was I today?",
	})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestMemoryQueryFallback(t *testing.T) {
	srv, _ := newTestServer(t)

	w := postJSON(t, srv, "/api/memory/query", map[string]any{
		"user_id": "user-1", "question": "Where was I today?",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}

	var ans memory.Answer
	if err := json.Unmarshal(w.Body.Bytes(), &ans); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ans.Confidence < 0.1 {
		t.Errorf("confidence = %v, want >= 0.1", ans.Confidence)
	}
	if ans.EventsAnalyzed != 0 {
		t.Errorf("events_analyzed = %d, want 0", ans.EventsAnalyzed)
	}
}

func TestMemoryQueryValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	w := postJSON(t, srv, "/api/memory/query", map[string]any{"user_id": "user-1", "question": "hi"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("short question: status = %d, want 400", w.Code)
	}

	w = postJSON(t, srv, "/api/memory/query", map[string]any{"question": "Where was I?"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing user_id: status = %d, want 400", w.Code)
	}
}

func TestMineAccepted(t *testing.T) {
	srv, _ := newTestServer(t)

	w := postJSON(t, srv, "/api/mine/user-1", nil)
	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", w.Code)
	}

	// Bad days_back rejected before scheduling anything.
	req := httptest.NewRequest("POST", "/api/mine/user-1?days_back=zero", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad days_back: status = %d, want 400", rec.Code)
	}
}

func TestMemorySummary(t *testing.T) {
	srv, _ := newTestServer(t)

	postJSON(t, srv, "/api/ingest", map[string]any{
		"user_id": "user-1",
		"events": []map[string]any{
			{"ts": time.Now().UTC(), "type": "geo", "lat": 55.75, "lon": 37.61},
		},
	})

	req := httptest.NewRequest("GET", "/api/memory/user-1/summary?days=7", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		PeriodDays         int `json:"period_days"`
		RecentEventsSample int `json:"recent_events_sample"`
		Stats              struct {
			Total int `json:"total"`
		} `json:"stats"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.PeriodDays != 7 {
		t.Errorf("period_days = %d, want 7", resp.PeriodDays)
	}
	if resp.Stats.Total != 1 || resp.RecentEventsSample != 1 {
		t.Errorf("stats total = %d, sample = %d, want 1/1", resp.Stats.Total, resp.RecentEventsSample)
	}

	// Out-of-range days rejected.
	req = httptest.NewRequest("GET", "/api/memory/user-1/summary?days=900", nil)
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("days=900: status = %d, want 400", w.Code)
	}
}
