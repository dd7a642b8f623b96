package poller

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge-ops/carebridge-backend/internal/recordings"
	"github.com/carebridge-ops/carebridge-backend/pkg/config"
	"github.com/carebridge-ops/carebridge-backend/pkg/db/models"
	pkgerrors "github.com/carebridge-ops/carebridge-backend/pkg/errors"
	"github.com/carebridge-ops/carebridge-backend/pkg/logger"
	"github.com/carebridge-ops/carebridge-backend/pkg/metrics"
	"github.com/carebridge-ops/carebridge-backend/pkg/resilience"
)

type stubFinder struct {
	recs      []models.Recording
	lastLimit int
	err       error
}

func (s *stubFinder) FindPendingMeetCreatedSince(_ context.Context, _ time.Time, limit int) ([]models.Recording, error) {
	s.lastLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	if limit > 0 && len(s.recs) > limit {
		return s.recs[:limit], nil
	}
	return s.recs, nil
}

type stubProcessor struct {
	results map[uuid.UUID]recordings.ProcessResult
	calls   int
}

func (s *stubProcessor) ProcessMeetRecording(_ context.Context, input recordings.ProcessInput) recordings.ProcessResult {
	s.calls++
	if result, ok := s.results[input.RecordingID]; ok {
		return result
	}
	return recordings.ProcessResult{Success: true}
}

func newTestPoller(t *testing.T, finder *stubFinder, processor *stubProcessor) *Poller {
	t.Helper()

	return &Poller{
		repo:      finder,
		processor: processor,
		gate:      resilience.New(config.ResilienceConfig{}),
		metrics:   metrics.NewPollMetrics(nil),
		logger:    logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		cfg: config.PollingConfig{
			LookbackMinutes: 30,
			MaxResults:      10,
			Concurrency:     3,
		},
	}
}

func someRecordings(n int) []models.Recording {
	recs := make([]models.Recording, n)
	for i := range recs {
		recs[i] = models.Recording{ID: uuid.New()}
	}
	return recs
}

func TestRunTalliesOutcomes(t *testing.T) {
	recs := someRecordings(4)
	processor := &stubProcessor{results: map[uuid.UUID]recordings.ProcessResult{
		recs[1].ID: {Err: pkgerrors.New(pkgerrors.CodeStateConflict, "recording is not pending")},
		recs[2].ID: {Err: pkgerrors.New(pkgerrors.CodeEmptyTranscript, "transcript contains no dialogue")},
	}}
	p := newTestPoller(t, &stubFinder{recs: recs}, processor)

	stats, err := p.Run(context.Background(), Params{})
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Checked)
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 4, processor.calls)
	assert.Greater(t, stats.Duration, time.Duration(0))
}

func TestRunRespectsMaxResults(t *testing.T) {
	finder := &stubFinder{recs: someRecordings(10)}
	processor := &stubProcessor{}
	p := newTestPoller(t, finder, processor)

	stats, err := p.Run(context.Background(), Params{MaxResults: 5})
	require.NoError(t, err)

	assert.Equal(t, 5, finder.lastLimit)
	assert.Equal(t, 5, stats.Checked)
	assert.Equal(t, 5, processor.calls)
}

func TestRunSelectionFailure(t *testing.T) {
	finder := &stubFinder{err: pkgerrors.New(pkgerrors.CodeInternal, "db down")}
	p := newTestPoller(t, finder, &stubProcessor{})

	_, err := p.Run(context.Background(), Params{})
	require.Error(t, err)
}

func TestHealthExposesLastRun(t *testing.T) {
	p := newTestPoller(t, &stubFinder{recs: someRecordings(2)}, &stubProcessor{})

	health := p.Health()
	assert.Nil(t, health.LastRun)
	assert.Equal(t, "closed", health.Gate.CircuitState)

	_, err := p.Run(context.Background(), Params{})
	require.NoError(t, err)

	health = p.Health()
	require.NotNil(t, health.LastRun)
	assert.Equal(t, 2, health.LastRun.Checked)
	assert.Equal(t, 2, health.LastRun.Processed)
}

func TestRunOverridesGateFlags(t *testing.T) {
	recs := someRecordings(1)
	seen := make(chan resilience.CallOptions, 1)
	processor := &capturingProcessor{seen: seen}
	p := newTestPoller(t, &stubFinder{recs: recs}, nil)
	p.processor = processor

	off := false
	_, err := p.Run(context.Background(), Params{EnableRateLimit: &off, EnableCircuitBreaker: &off})
	require.NoError(t, err)

	opts := <-seen
	assert.False(t, opts.RateLimit)
	assert.False(t, opts.Breaker)
}

type capturingProcessor struct {
	seen chan resilience.CallOptions
}

func (c *capturingProcessor) ProcessMeetRecording(_ context.Context, input recordings.ProcessInput) recordings.ProcessResult {
	select {
	case c.seen <- input.Options:
	default:
	}
	return recordings.ProcessResult{Success: true}
}
