package miner

import (
	"fmt"
	"math"
	"time"

	"github.com/lifestream/lifestream/internal/store"
)

// routineMinAvgPoints is the mean per-hour point count below which an
// hour does not count as significant activity.
const routineMinAvgPoints = 10

// MineRoutines finds recurring hourly activity across the analysis
// window. Each hour-of-day observed at least minOccurrences times with
// mean point count above the activity floor becomes one routine
// pattern. Hours below threshold produce nothing.
func MineRoutines(buckets []store.HourlyBucket, windowDays int, minOccurrences int) []store.Pattern {
	if len(buckets) == 0 || windowDays <= 0 {
		return nil
	}

	byHour := make(map[int][]store.HourlyBucket)
	for _, b := range buckets {
		h := b.Hour.Hour()
		byHour[h] = append(byHour[h], b)
	}

	var patterns []store.Pattern
	for hour := 0; hour < 24; hour++ {
		occ := byHour[hour]
		if len(occ) < minOccurrences {
			continue
		}

		var sum float64
		first := occ[0].Hour
		last := occ[0].Hour
		for _, b := range occ {
			sum += float64(b.Points)
			if b.Hour.Before(first) {
				first = b.Hour
			}
			if b.Hour.After(last) {
				last = b.Hour
			}
		}
		avgPoints := sum / float64(len(occ))
		if avgPoints <= routineMinAvgPoints {
			continue
		}

		patterns = append(patterns, store.Pattern{
			PatternType:      store.PatternRoutine,
			Fingerprint:      store.HourFingerprint(hour),
			Name:             routineName(hour),
			Description:      fmt.Sprintf("Regular activity around %02d:00 (%d days)", hour, len(occ)),
			Confidence:       math.Min(0.9, 0.4+float64(len(occ))/30),
			TimePattern:      fmt.Sprintf("0 %d * * *", hour),
			FrequencyPerWeek: float64(len(occ)) / (float64(windowDays) / 7),
			FirstSeen:        first,
			LastSeen:         last,
			Occurrences:      len(occ),
			IsActive:         true,
			Evidence: map[string]any{
				"hour":          hour,
				"avg_points":    avgPoints,
				"days_observed": len(occ),
			},
		})
	}
	return patterns
}

func routineName(hour int) string {
	switch {
	case hour >= 7 && hour <= 9:
		return "Morning activity, likely commute"
	case hour >= 12 && hour <= 14:
		return "Midday activity"
	case hour >= 17 && hour <= 19:
		return "Evening activity, likely commute home"
	default:
		return fmt.Sprintf("Regular activity at %02d:00", hour)
	}
}

// windowDaysBetween converts an analysis window to whole days, minimum 1.
func windowDaysBetween(start, end time.Time) int {
	days := int(end.Sub(start).Hours() / 24)
	if days < 1 {
		return 1
	}
	return days
}
