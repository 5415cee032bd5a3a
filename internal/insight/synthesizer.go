// Package insight turns mined patterns into natural-language lifestyle
// insights via the reasoning oracle, and persists accepted ones as
// Habit nodes in the knowledge graph.
package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lifestream/lifestream/internal/graph"
	"github.com/lifestream/lifestream/internal/llm"
	"github.com/lifestream/lifestream/internal/store"
)

// oracleTimeout bounds a single synthesis call. The oracle is the one
// dependency allowed to be slow; it is never allowed to hang a miner
// run indefinitely.
const oracleTimeout = 120 * time.Second

// Synthesizer asks the oracle for 2-3 insights over a miner run's
// patterns. Oracle failure or unparsable output yields an empty list,
// never an error: mining succeeds with or without insights.
type Synthesizer struct {
	Oracle llm.Client
	Graph  graph.Graph
	Store  store.EventStore
	Model  string // recorded on Habit nodes as provenance
}

// candidate mirrors the JSON objects the oracle is asked to return.
type candidate struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
	InsightType string  `json:"insight_type"`
}

// Synthesize generates and persists insights for one miner run.
func (s *Synthesizer) Synthesize(ctx context.Context, userID string, locations, routines []store.Pattern) []store.Insight {
	if s.Oracle == nil || (len(locations) == 0 && len(routines) == 0) {
		return nil
	}

	locJSON, _ := json.MarshalIndent(locations, "", "  ")
	routJSON, _ := json.MarshalIndent(routines, "", "  ")
	prompt := llm.InsightPrompt(string(locJSON), string(routJSON))

	cctx, cancel := context.WithTimeout(ctx, oracleTimeout)
	defer cancel()

	resp, err := s.Oracle.Complete(cctx, prompt)
	if err != nil {
		log.Printf("insight: oracle failed for user %s: %v", userID, err)
		return nil
	}

	candidates, err := parseInsightResponse(resp.Content)
	if err != nil {
		log.Printf("insight: unparsable oracle output for user %s: %v", userID, err)
		return nil
	}

	evidenceCount := len(locations) + len(routines)
	reasoning := fmt.Sprintf("Based on %d location clusters and %d time patterns", len(locations), len(routines))

	var insights []store.Insight
	for i, c := range candidates {
		if c.Title == "" {
			log.Printf("insight: discarding candidate %d for user %s: missing title", i, userID)
			continue
		}
		if c.Confidence < 0 || c.Confidence > 1 {
			log.Printf("insight: discarding candidate %d for user %s: confidence %v out of range", i, userID, c.Confidence)
			continue
		}
		if c.InsightType == "" {
			c.InsightType = "habit"
		}

		ins := store.Insight{
			ID:            uuid.NewString(),
			UserID:        userID,
			InsightType:   c.InsightType,
			Title:         c.Title,
			Description:   c.Description,
			Confidence:    c.Confidence,
			EvidenceCount: evidenceCount,
			Reasoning:     reasoning,
		}

		if s.Graph != nil {
			nodeID, err := s.Graph.WriteHabit(ctx, userID, graph.Habit{
				ID:          ins.ID,
				Name:        ins.Title,
				Description: ins.Description,
				Confidence:  ins.Confidence,
				InsightType: ins.InsightType,
				Model:       s.Model,
			})
			if err != nil {
				log.Printf("insight: graph write failed for user %s: %v", userID, err)
			} else {
				ins.GraphNodeID = nodeID
			}
		}

		if s.Store != nil {
			if err := s.Store.SaveInsight(ctx, &ins); err != nil {
				log.Printf("insight: audit save failed for user %s: %v", userID, err)
			}
		}
		insights = append(insights, ins)
	}
	return insights
}

// parseInsightResponse extracts a JSON array from the oracle response.
// The response might contain markdown code fences or other wrapper text.
func parseInsightResponse(content string) ([]candidate, error) {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		if len(lines) > 2 {
			content = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}
	content = strings.TrimSpace(content)

	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array found in response")
	}

	var candidates []candidate
	if err := json.Unmarshal([]byte(content[start:end+1]), &candidates); err != nil {
		return nil, fmt.Errorf("unmarshal insights: %w", err)
	}
	return candidates, nil
}
