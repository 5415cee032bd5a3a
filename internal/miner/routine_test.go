package miner

import (
	"math"
	"testing"
	"time"

	"github.com/lifestream/lifestream/internal/store"
)

func hb(t time.Time, points int) store.HourlyBucket {
	return store.HourlyBucket{Hour: t, Points: points, AvgSpeed: 1.2, MaxSpeed: 4}
}

// Eight consecutive daily rollups at hour 8 with 15 points each must
// produce one routine with frequency 8 per window-week.
func TestMineRoutinesDailyCommute(t *testing.T) {
	base := time.Date(2026, 8, 3, 8, 0, 0, 0, time.UTC)
	var buckets []store.HourlyBucket
	for d := 0; d < 8; d++ {
		buckets = append(buckets, hb(base.AddDate(0, 0, d), 15))
	}

	patterns := MineRoutines(buckets, 30, 5)

	if len(patterns) != 1 {
		t.Fatalf("patterns = %d, want 1", len(patterns))
	}
	p := patterns[0]

	if p.PatternType != store.PatternRoutine {
		t.Errorf("PatternType = %q", p.PatternType)
	}
	if p.Name != "Morning activity, likely commute" {
		t.Errorf("Name = %q", p.Name)
	}
	if p.TimePattern != "0 8 * * *" {
		t.Errorf("TimePattern = %q, want 0 8 * * *", p.TimePattern)
	}
	if p.Occurrences != 8 {
		t.Errorf("Occurrences = %d, want 8", p.Occurrences)
	}
	wantFreq := 8.0 / (30.0 / 7.0)
	if math.Abs(p.FrequencyPerWeek-wantFreq) > 1e-9 {
		t.Errorf("FrequencyPerWeek = %v, want %v", p.FrequencyPerWeek, wantFreq)
	}
	wantConf := 0.4 + 8.0/30.0
	if math.Abs(p.Confidence-wantConf) > 1e-9 {
		t.Errorf("Confidence = %v, want %v", p.Confidence, wantConf)
	}
	if !p.FirstSeen.Equal(base) {
		t.Errorf("FirstSeen = %v, want %v", p.FirstSeen, base)
	}
	if !p.LastSeen.Equal(base.AddDate(0, 0, 7)) {
		t.Errorf("LastSeen = %v", p.LastSeen)
	}
}

func TestMineRoutinesBelowOccurrenceThreshold(t *testing.T) {
	base := time.Date(2026, 8, 3, 8, 0, 0, 0, time.UTC)
	var buckets []store.HourlyBucket
	for d := 0; d < 4; d++ {
		buckets = append(buckets, hb(base.AddDate(0, 0, d), 50))
	}

	if got := MineRoutines(buckets, 30, 5); got != nil {
		t.Errorf("patterns = %v, want none below occurrence threshold", got)
	}
}

func TestMineRoutinesBelowActivityFloor(t *testing.T) {
	base := time.Date(2026, 8, 3, 8, 0, 0, 0, time.UTC)
	var buckets []store.HourlyBucket
	for d := 0; d < 10; d++ {
		buckets = append(buckets, hb(base.AddDate(0, 0, d), 10)) // avg exactly 10, not above
	}

	if got := MineRoutines(buckets, 30, 5); got != nil {
		t.Errorf("patterns = %v, want none at the activity floor", got)
	}
}

func TestRoutineNameBuckets(t *testing.T) {
	cases := []struct {
		hour int
		want string
	}{
		{8, "Morning activity, likely commute"},
		{13, "Midday activity"},
		{18, "Evening activity, likely commute home"},
		{22, "Regular activity at 22:00"},
	}
	for _, tc := range cases {
		if got := routineName(tc.hour); got != tc.want {
			t.Errorf("routineName(%d) = %q, want %q", tc.hour, got, tc.want)
		}
	}
}
