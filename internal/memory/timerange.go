// Package memory answers natural-language questions about a user's
// life history: resolve a time range from the question, retrieve
// matching events, enrich with graph entities, and synthesize an
// answer with graceful degradation when no oracle is configured.
package memory

import (
	"strings"
	"time"
)

// TimeRange is the resolved query window.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// timeRule matches temporal phrases in a question. Rules are evaluated
// in order; the first match wins.
type timeRule struct {
	phrases []string
	resolve func(now time.Time) TimeRange
}

var timeRules = []timeRule{
	{
		phrases: []string{"сегодня", "today"},
		resolve: func(now time.Time) TimeRange {
			return TimeRange{Start: dayStart(now), End: now}
		},
	},
	{
		phrases: []string{"вчера", "yesterday"},
		resolve: func(now time.Time) TimeRange {
			y := now.AddDate(0, 0, -1)
			return TimeRange{Start: dayStart(y), End: dayEnd(y)}
		},
	},
	{
		phrases: []string{"прошлую пятницу", "в пятницу", "last friday", "friday"},
		resolve: func(now time.Time) TimeRange {
			// Most recent prior Friday; a full week back if today is
			// Friday.
			back := (int(now.Weekday()) + 2) % 7
			if back == 0 {
				back = 7
			}
			friday := now.AddDate(0, 0, -back)
			return TimeRange{Start: dayStart(friday), End: dayEnd(friday)}
		},
	},
	{
		phrases: []string{"выходные", "weekend"},
		resolve: func(now time.Time) TimeRange {
			sunday := now.AddDate(0, 0, -int(now.Weekday()))
			saturday := sunday.AddDate(0, 0, -1)
			return TimeRange{Start: dayStart(saturday), End: dayEnd(sunday)}
		},
	},
	{
		phrases: []string{"неделю", "week"},
		resolve: func(now time.Time) TimeRange {
			return TimeRange{Start: now.AddDate(0, 0, -7), End: now}
		},
	},
	{
		phrases: []string{"месяц", "month"},
		resolve: func(now time.Time) TimeRange {
			return TimeRange{Start: now.AddDate(0, 0, -30), End: now}
		},
	},
}

// ResolveTimeRange picks the query window. Explicit bounds win; then
// the phrase table; an unmatched question falls back to the trailing 7
// days rather than being rejected.
func ResolveTimeRange(question string, start, end time.Time, now time.Time) TimeRange {
	if !start.IsZero() && !end.IsZero() {
		return TimeRange{Start: start, End: end}
	}

	q := strings.ToLower(question)
	for _, rule := range timeRules {
		for _, p := range rule.phrases {
			if strings.Contains(q, p) {
				return rule.resolve(now)
			}
		}
	}
	return TimeRange{Start: now.AddDate(0, 0, -7), End: now}
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func dayEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
