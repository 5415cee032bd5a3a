package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lifestream/lifestream/internal/event"
	"github.com/lifestream/lifestream/internal/memory"
	"github.com/lifestream/lifestream/internal/store"
)

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string        `json:"user_id"`
		Events []event.Event `json:"events"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, `{"error":"user_id required"}`, http.StatusBadRequest)
		return
	}
	if len(req.Events) == 0 {
		http.Error(w, `{"error":"events required"}`, http.StatusBadRequest)
		return
	}

	valid, errs := event.ValidateBatch(req.UserID, req.Events)

	stored, err := s.store.InsertEvents(r.Context(), req.UserID, valid)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	type ingestError struct {
		Index int    `json:"index"`
		Error string `json:"error"`
	}
	out := make([]ingestError, 0, len(errs))
	for _, ve := range errs {
		out = append(out, ingestError{Index: ve.Index, Error: ve.Err})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"stored_count": stored,
		"errors":       out,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	f := store.Filter{}
	q := r.URL.Query()
	if v := q.Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, `{"error":"invalid start"}`, http.StatusBadRequest)
			return
		}
		f.Start = t
	}
	if v := q.Get("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, `{"error":"invalid end"}`, http.StatusBadRequest)
			return
		}
		f.End = t
	}
	if v := q.Get("types"); v != "" {
		for _, raw := range strings.Split(v, ",") {
			t := event.Type(strings.TrimSpace(raw))
			if !event.ValidTypes[t] {
				http.Error(w, `{"error":"invalid event type: `+string(t)+`"}`, http.StatusBadRequest)
				return
			}
			f.Types = append(f.Types, t)
		}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, `{"error":"invalid limit"}`, http.StatusBadRequest)
			return
		}
		f.Limit = n
	}

	events, err := s.store.QueryEvents(r.Context(), userID, f)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []event.Event{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"user_id": userID,
		"count":   len(events),
		"events":  events,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	stats, err := s.store.Stats(r.Context(), userID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"user_id": userID,
		"stats":   stats,
	})
}

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	patternType := r.URL.Query().Get("pattern_type")
	activeOnly := true
	if v := r.URL.Query().Get("active_only"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, `{"error":"invalid active_only"}`, http.StatusBadRequest)
			return
		}
		activeOnly = b
	}

	patterns, err := s.store.ListPatterns(r.Context(), userID, patternType, activeOnly)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if patterns == nil {
		patterns = []store.Pattern{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"user_id":  userID,
		"count":    len(patterns),
		"patterns": patterns,
	})
}

func (s *Server) handleMine(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	if s.miner == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": "miner not configured"})
		return
	}

	daysBack := 0
	if v := r.URL.Query().Get("days_back"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, `{"error":"invalid days_back"}`, http.StatusBadRequest)
			return
		}
		daysBack = n
	}

	// Mining runs in the background; the request returns 202 immediately.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := s.miner.RunAnalysis(ctx, userID, daysBack); err != nil {
			log.Printf("mining failed for user %s: %v", userID, err)
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "mining"})
}

func (s *Server) handleMemoryQuery(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": "memory engine not configured"})
		return
	}

	var req struct {
		UserID           string    `json:"user_id"`
		Question         string    `json:"question"`
		Start            time.Time `json:"start,omitempty"`
		End              time.Time `json:"end,omitempty"`
		IncludeReasoning *bool     `json:"include_reasoning,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, `{"error":"user_id required"}`, http.StatusBadRequest)
		return
	}
	if len(req.Question) < 3 {
		http.Error(w, `{"error":"question too short"}`, http.StatusBadRequest)
		return
	}

	includeReasoning := true
	if req.IncludeReasoning != nil {
		includeReasoning = *req.IncludeReasoning
	}

	answer, err := s.engine.Query(r.Context(), memory.Question{
		UserID:           req.UserID,
		Question:         req.Question,
		Start:            req.Start,
		End:              req.End,
		IncludeReasoning: includeReasoning,
	})
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(answer)
}

func (s *Server) handleMemorySummary(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 365 {
			http.Error(w, `{"error":"days must be 1-365"}`, http.StatusBadRequest)
			return
		}
		days = n
	}

	stats, err := s.store.Stats(r.Context(), userID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	patterns, err := s.store.ListPatterns(r.Context(), userID, "", true)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	end := time.Now().UTC()
	recent, err := s.store.QueryEvents(r.Context(), userID, store.Filter{
		Start: end.AddDate(0, 0, -days),
		End:   end,
		Limit: 100,
	})
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	top := patterns
	if len(top) > 5 {
		top = top[:5]
	}
	if top == nil {
		top = []store.Pattern{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"user_id":              userID,
		"period_days":          days,
		"stats":                stats,
		"patterns_count":       len(patterns),
		"recent_events_sample": len(recent),
		"patterns":             top,
	})
}
