package graph

import "context"

// MockGraph is a test double for the Graph interface.
type MockGraph struct {
	People  []Person
	Err     error
	Habits  []Habit // records habits written
	HabitID string  // returned node id
}

var _ Graph = (*MockGraph)(nil)

func (m *MockGraph) ResolvePeople(ctx context.Context, ids []string) ([]Person, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	var out []Person
	for _, id := range ids {
		for _, p := range m.People {
			if p.ID == id {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (m *MockGraph) WriteHabit(ctx context.Context, personID string, h Habit) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	m.Habits = append(m.Habits, h)
	if m.HabitID != "" {
		return m.HabitID, nil
	}
	return h.ID, nil
}

func (m *MockGraph) Close(ctx context.Context) error { return nil }
