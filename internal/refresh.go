package internal

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultRefreshWindow is how far back a scheduled refresh reaches.
const DefaultRefreshWindow = 24 * time.Hour

// RefreshResult is passed to the refresher's handler after every run.
type RefreshResult struct {
	Range     TimeRange
	Summaries []ThreadSummary
	Err       error
}

// Refresher re-fetches a trailing time window on a cron schedule, keeping
// the range cache warm. Schedules use standard cron syntax or the @every
// form ("@every 15m").
type Refresher struct {
	dataset  *Dataset
	schedule string
	window   time.Duration
	handler  func(RefreshResult)
	cron     *cron.Cron
}

// NewRefresher builds a refresher. handler may be nil; results are then
// only logged.
func NewRefresher(dataset *Dataset, schedule string, window time.Duration, handler func(RefreshResult)) *Refresher {
	if window <= 0 {
		window = DefaultRefreshWindow
	}
	return &Refresher{
		dataset:  dataset,
		schedule: schedule,
		window:   window,
		handler:  handler,
	}
}

// Start validates the schedule and begins running refreshes until Stop or
// context cancellation.
func (r *Refresher) Start(ctx context.Context) error {
	r.cron = cron.New()
	_, err := r.cron.AddFunc(r.schedule, func() { r.runOnce(ctx) })
	if err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", r.schedule, err)
	}
	r.cron.Start()
	LogInfo("Refresh schedule %q active (window: %s)", r.schedule, r.window)
	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

// Stop halts the schedule, waiting for an in-flight refresh to finish.
func (r *Refresher) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

// RunOnce performs a single refresh immediately, outside the schedule.
func (r *Refresher) RunOnce(ctx context.Context) RefreshResult {
	return r.runOnce(ctx)
}

func (r *Refresher) runOnce(ctx context.Context) RefreshResult {
	now := time.Now().UTC()
	rng := TimeRange{Start: now.Add(-r.window), End: now}
	summaries, err := r.dataset.RefreshThreadRange(ctx, rng)
	result := RefreshResult{Range: rng, Summaries: summaries, Err: err}
	if err != nil {
		if err == ErrStaleFetch {
			LogDebug("Scheduled refresh superseded, discarding result")
		} else {
			LogWarn("Scheduled refresh failed: %v", err)
		}
	} else {
		LogDebug("Scheduled refresh complete: %d threads in the last %s", len(summaries), r.window)
	}
	if r.handler != nil {
		r.handler(result)
	}
	return result
}
