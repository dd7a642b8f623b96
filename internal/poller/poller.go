package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carebridge-ops/carebridge-backend/internal/recordings"
	"github.com/carebridge-ops/carebridge-backend/pkg/config"
	"github.com/carebridge-ops/carebridge-backend/pkg/db/models"
	pkgerrors "github.com/carebridge-ops/carebridge-backend/pkg/errors"
	"github.com/carebridge-ops/carebridge-backend/pkg/logger"
	"github.com/carebridge-ops/carebridge-backend/pkg/metrics"
	"github.com/carebridge-ops/carebridge-backend/pkg/resilience"
)

const defaultConcurrency = 3

type pendingFinder interface {
	FindPendingMeetCreatedSince(ctx context.Context, cutoff time.Time, limit int) ([]models.Recording, error)
}

type meetProcessor interface {
	ProcessMeetRecording(ctx context.Context, input recordings.ProcessInput) recordings.ProcessResult
}

// Params tunes one poll run. Zero values fall back to the configured
// defaults.
type Params struct {
	LookbackMinutes      int
	MaxResults           int
	Concurrency          int
	EnableRateLimit      *bool
	EnableCircuitBreaker *bool
}

// RunStats summarizes one poll run.
type RunStats struct {
	Checked   int           `json:"checked"`
	Processed int           `json:"processed"`
	Errors    int           `json:"errors"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration"`
	StartedAt time.Time     `json:"started_at"`
}

// Health is the operational snapshot exposed by GET /recordings/poll.
type Health struct {
	Gate    resilience.Health `json:"gate"`
	LastRun *RunStats         `json:"last_run,omitempty"`
}

// Poller selects recently-created pending recordings and drives each one
// through the processor with bounded parallelism. Candidates older than the
// look-back window are left alone: they stay visible for manual triggers but
// polling does not keep retrying them forever.
type Poller struct {
	repo      pendingFinder
	processor meetProcessor
	gate      *resilience.Gate
	metrics   *metrics.PollMetrics
	logger    *logger.Logger
	cfg       config.PollingConfig

	mu      sync.Mutex
	lastRun *RunStats
}

// PollerParams bundles the poller's collaborators.
type PollerParams struct {
	Repo      *recordings.Repository
	Processor *recordings.Processor
	Gate      *resilience.Gate
	Metrics   *metrics.PollMetrics
	Logger    *logger.Logger
	Config    config.PollingConfig
}

// New validates collaborators and builds a poller.
func New(params PollerParams) (*Poller, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("recordings repository required")
	}
	if params.Processor == nil {
		return nil, fmt.Errorf("recording processor required")
	}
	if params.Gate == nil {
		return nil, fmt.Errorf("resilience gate required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Poller{
		repo:      params.Repo,
		processor: params.Processor,
		gate:      params.Gate,
		metrics:   params.Metrics,
		logger:    params.Logger,
		cfg:       params.Config,
	}, nil
}

// Run performs one poll cycle: select candidates, process them on a bounded
// worker pool, tally outcomes. One candidate's failure never aborts the run.
func (p *Poller) Run(ctx context.Context, params Params) (RunStats, error) {
	lookback := params.LookbackMinutes
	if lookback <= 0 {
		lookback = p.cfg.LookbackMinutes
	}
	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = p.cfg.MaxResults
	}
	concurrency := params.Concurrency
	if concurrency <= 0 {
		concurrency = p.cfg.Concurrency
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	opts := resilience.DefaultCallOptions()
	if params.EnableRateLimit != nil {
		opts.RateLimit = *params.EnableRateLimit
	}
	if params.EnableCircuitBreaker != nil {
		opts.Breaker = *params.EnableCircuitBreaker
	}

	stats := RunStats{StartedAt: time.Now().UTC()}
	started := time.Now()

	cutoff := time.Now().Add(-time.Duration(lookback) * time.Minute)
	candidates, err := p.repo.FindPendingMeetCreatedSince(ctx, cutoff, maxResults)
	if err != nil {
		return stats, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "selecting poll candidates")
	}
	stats.Checked = len(candidates)

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)

	for _, candidate := range candidates {
		group.Go(func() error {
			result := p.processor.ProcessMeetRecording(groupCtx, recordings.ProcessInput{
				RecordingID: candidate.ID,
				Trigger:     "poll",
				Options:     opts,
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case result.Success:
				stats.Processed++
			case pkgerrors.Is(result.Err, pkgerrors.CodeStateConflict):
				// Another trigger claimed it first.
				stats.Skipped++
			default:
				stats.Errors++
			}
			return nil
		})
	}
	_ = group.Wait()

	stats.Duration = time.Since(started)
	p.observe(stats)

	p.logger.Info(p.logger.WithFields(ctx, map[string]any{
		"checked":     stats.Checked,
		"processed":   stats.Processed,
		"errors":      stats.Errors,
		"skipped":     stats.Skipped,
		"duration_ms": stats.Duration.Milliseconds(),
	}), "poll run complete")
	return stats, nil
}

func (p *Poller) observe(stats RunStats) {
	p.metrics.ObserveRun("poll", stats.Duration)
	p.metrics.AddOutcome("processed", stats.Processed)
	p.metrics.AddOutcome("errors", stats.Errors)
	p.metrics.AddOutcome("skipped", stats.Skipped)
	p.metrics.SetCircuitState(p.gate.CircuitStateValue())

	p.mu.Lock()
	copied := stats
	p.lastRun = &copied
	p.mu.Unlock()
}

// Health reports the resilience gate snapshot and the most recent run.
func (p *Poller) Health() Health {
	p.mu.Lock()
	last := p.lastRun
	p.mu.Unlock()

	return Health{
		Gate:    p.gate.Health(),
		LastRun: last,
	}
}
