package miner

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lifestream/lifestream/internal/config"
	"github.com/lifestream/lifestream/internal/insight"
	"github.com/lifestream/lifestream/internal/store"
)

// geoBatchSize caps how many fixes one clustering run loads.
const geoBatchSize = 10000

// Runner executes pattern analysis per user, either on demand or on a
// background interval. Runs are re-entrant: patterns carry fingerprints
// so a rerun supersedes its predecessors instead of duplicating them.
type Runner struct {
	store  store.EventStore
	synth  *insight.Synthesizer
	cfg    config.MinerConfig
	stopCh chan struct{}
}

// Result summarizes one analysis run.
type Result struct {
	UserID   string          `json:"user_id"`
	Start    time.Time       `json:"start"`
	End      time.Time       `json:"end"`
	Patterns []store.Pattern `json:"patterns"`
	Insights []store.Insight `json:"insights"`
}

// New creates a Runner. synth may be nil; mining then persists
// statistical patterns only.
func New(st store.EventStore, synth *insight.Synthesizer, cfg config.MinerConfig) *Runner {
	return &Runner{
		store:  st,
		synth:  synth,
		cfg:    cfg,
		stopCh: make(chan struct{}),
	}
}

// RunAnalysis mines patterns for one user over the trailing daysBack
// days. Insufficient data yields an empty result, not an error; only
// store failures fail the run.
func (r *Runner) RunAnalysis(ctx context.Context, userID string, daysBack int) (*Result, error) {
	if daysBack <= 0 {
		daysBack = r.cfg.DaysBack
	}
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -daysBack)
	windowDays := windowDaysBetween(start, end)

	log.Printf("miner: analyzing user %s, %d days back", userID, daysBack)

	points, err := r.store.GeoPoints(ctx, userID, start, end, geoBatchSize)
	if err != nil {
		return nil, fmt.Errorf("load geo points: %w", err)
	}
	locations := ClusterLocations(points, r.cfg.Eps/degreesToMeters, r.cfg.MinClusterSize)

	buckets, err := r.store.HourlyActivity(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load hourly activity: %w", err)
	}
	routines := MineRoutines(buckets, windowDays, r.cfg.MinOccurrences)

	result := &Result{UserID: userID, Start: start, End: end}
	for i := range locations {
		locations[i].UserID = userID
		if err := r.store.SavePattern(ctx, &locations[i]); err != nil {
			return nil, fmt.Errorf("save location pattern: %w", err)
		}
	}
	for i := range routines {
		routines[i].UserID = userID
		if err := r.store.SavePattern(ctx, &routines[i]); err != nil {
			return nil, fmt.Errorf("save routine pattern: %w", err)
		}
	}
	result.Patterns = append(result.Patterns, locations...)
	result.Patterns = append(result.Patterns, routines...)

	if r.synth != nil && len(result.Patterns) > 0 {
		result.Insights = r.synth.Synthesize(ctx, userID, locations, routines)
	}

	log.Printf("miner: user %s: %d patterns, %d insights", userID, len(result.Patterns), len(result.Insights))
	return result, nil
}

// StartTimer sweeps all recently active users on the configured
// interval. A zero interval disables the timer.
func (r *Runner) StartTimer() {
	if r.cfg.IntervalHours <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(time.Duration(r.cfg.IntervalHours) * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.sweep()
			case <-r.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the background timer.
func (r *Runner) Stop() {
	close(r.stopCh)
}

func (r *Runner) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	since := time.Now().UTC().AddDate(0, 0, -7)
	users, err := r.store.ActiveUsers(ctx, since)
	if err != nil {
		log.Printf("miner: list active users: %v", err)
		return
	}

	for _, userID := range users {
		if _, err := r.RunAnalysis(ctx, userID, r.cfg.DaysBack); err != nil {
			log.Printf("miner: analysis failed for user %s: %v", userID, err)
		}
	}
}
