package poller

import (
	"context"
	"errors"
	"time"

	"github.com/carebridge-ops/carebridge-backend/pkg/logger"
)

// Job represents a scheduled task that runs inside the poll worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// PollJob runs one poll cycle with the configured defaults.
type PollJob struct {
	poller *Poller
}

// NewPollJob wraps a poller as a scheduled job.
func NewPollJob(p *Poller) (*PollJob, error) {
	if p == nil {
		return nil, errors.New("poller required")
	}
	return &PollJob{poller: p}, nil
}

func (j *PollJob) Name() string { return "drive_poll" }

func (j *PollJob) Run(ctx context.Context) error {
	_, err := j.poller.Run(ctx, Params{})
	return err
}

type staleResetter interface {
	ResetStaleProcessing(ctx context.Context, olderThan time.Time) (int64, error)
}

// ReaperJob returns recordings stuck in processing (e.g. after a worker
// crash) to pending so the next cycle can retry them. Safe because every
// processing step tolerates re-invocation.
type ReaperJob struct {
	repo       staleResetter
	staleAfter time.Duration
	logger     *logger.Logger
}

// NewReaperJob builds the stale-processing reaper.
func NewReaperJob(repo staleResetter, staleAfter time.Duration, logg *logger.Logger) (*ReaperJob, error) {
	if repo == nil {
		return nil, errors.New("recordings repository required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if staleAfter <= 0 {
		staleAfter = 30 * time.Minute
	}
	return &ReaperJob{repo: repo, staleAfter: staleAfter, logger: logg}, nil
}

func (j *ReaperJob) Name() string { return "stale_processing_reaper" }

func (j *ReaperJob) Run(ctx context.Context) error {
	reset, err := j.repo.ResetStaleProcessing(ctx, time.Now().Add(-j.staleAfter))
	if err != nil {
		return err
	}
	if reset > 0 {
		j.logger.Warn(j.logger.WithField(ctx, "reset", reset), "stale processing recordings returned to pending")
	}
	return nil
}

type watchRenewer interface {
	RenewIfNeeded(ctx context.Context) error
}

// WatchRenewalJob re-registers the Drive push channel before it lapses.
type WatchRenewalJob struct {
	manager watchRenewer
}

// NewWatchRenewalJob builds the watch renewal job.
func NewWatchRenewalJob(manager watchRenewer) (*WatchRenewalJob, error) {
	if manager == nil {
		return nil, errors.New("watch manager required")
	}
	return &WatchRenewalJob{manager: manager}, nil
}

func (j *WatchRenewalJob) Name() string { return "watch_renewal" }

func (j *WatchRenewalJob) Run(ctx context.Context) error {
	return j.manager.RenewIfNeeded(ctx)
}
