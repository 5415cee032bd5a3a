package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4j implements Graph on a bolt connection.
type Neo4j struct {
	driver neo4j.DriverWithContext
}

var _ Graph = (*Neo4j)(nil)

// OpenNeo4j connects to the graph and verifies reachability.
func OpenNeo4j(ctx context.Context, uri, user, password string) (*Neo4j, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	return &Neo4j{driver: driver}, nil
}

func (g *Neo4j) ResolvePeople(ctx context.Context, ids []string) ([]Person, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (p:Person) WHERE p.id IN $ids
		RETURN p.id AS id, p.name AS name, coalesce(p.email, '') AS email
	`, map[string]any{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("resolve people: %w", err)
	}

	var people []Person
	for result.Next(ctx) {
		rec := result.Record()
		p := Person{}
		if v, ok := rec.Get("id"); ok {
			p.ID, _ = v.(string)
		}
		if v, ok := rec.Get("name"); ok {
			p.Name, _ = v.(string)
		}
		if v, ok := rec.Get("email"); ok {
			p.Email, _ = v.(string)
		}
		people = append(people, p)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("resolve people: %w", err)
	}
	return people, nil
}

// WriteHabit creates (Person)-[:HAS_HABIT]->(Habit) with discovery
// provenance on the edge.
func (g *Neo4j) WriteHabit(ctx context.Context, personID string, h Habit) (string, error) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (p:Person {id: $person_id})
		CREATE (h:Habit {
			id: $habit_id,
			name: $name,
			description: $description,
			confidence: $confidence,
			insight_type: $insight_type,
			discovered_at: datetime(),
			ai_model: $model
		})
		CREATE (p)-[:HAS_HABIT {discovered_at: datetime(), source: 'pattern_miner'}]->(h)
		RETURN h.id AS habit_id
	`, map[string]any{
		"person_id":    personID,
		"habit_id":     h.ID,
		"name":         h.Name,
		"description":  h.Description,
		"confidence":   h.Confidence,
		"insight_type": h.InsightType,
		"model":        h.Model,
	})
	if err != nil {
		return "", fmt.Errorf("write habit: %w", err)
	}

	rec, err := result.Single(ctx)
	if err != nil {
		return "", fmt.Errorf("write habit: person %s not found: %w", personID, err)
	}
	if v, ok := rec.Get("habit_id"); ok {
		if id, ok := v.(string); ok {
			return id, nil
		}
	}
	return h.ID, nil
}

func (g *Neo4j) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}
