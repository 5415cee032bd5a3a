// Package graph is the knowledge-graph boundary. Insights become Habit
// nodes attached to Person nodes; the memory engine resolves person
// references through the same surface.
package graph

import "context"

// Person is a resolved identity from the graph.
type Person struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Habit is the payload written for one accepted insight.
type Habit struct {
	ID          string
	Name        string
	Description string
	Confidence  float64
	InsightType string
	Model       string
}

// Graph is the interface the miner and memory engine depend on.
type Graph interface {
	// ResolvePeople looks up person nodes by id. Unknown ids are simply
	// absent from the result, not an error.
	ResolvePeople(ctx context.Context, ids []string) ([]Person, error)

	// WriteHabit creates a Habit node linked to the person and returns
	// the node id.
	WriteHabit(ctx context.Context, personID string, h Habit) (string, error)

	Close(ctx context.Context) error
}
