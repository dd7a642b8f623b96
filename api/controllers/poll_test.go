package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/carebridge-ops/carebridge-backend/internal/poller"
	pkgerrors "github.com/carebridge-ops/carebridge-backend/pkg/errors"
	"github.com/carebridge-ops/carebridge-backend/pkg/resilience"
)

type stubPollRunner struct {
	lastParams *poller.Params
	stats      poller.RunStats
	runErr     error
	health     poller.Health
}

func (s *stubPollRunner) Run(_ context.Context, params poller.Params) (poller.RunStats, error) {
	s.lastParams = &params
	if s.runErr != nil {
		return poller.RunStats{}, s.runErr
	}
	return s.stats, nil
}

func (s *stubPollRunner) Health() poller.Health {
	return s.health
}

func TestTriggerPoll(t *testing.T) {
	logg := testLogger()

	t.Run("empty body uses defaults", func(t *testing.T) {
		stub := &stubPollRunner{stats: poller.RunStats{Checked: 3, Processed: 2, Skipped: 1, Duration: 40 * time.Millisecond}}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/recordings/poll", nil)
		rec := httptest.NewRecorder()
		TriggerPoll(stub, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if stub.lastParams == nil {
			t.Fatal("expected Run to be invoked")
		}
		if stub.lastParams.MaxResults != 0 || stub.lastParams.EnableRateLimit != nil {
			t.Fatalf("expected zero-value params, got %+v", stub.lastParams)
		}

		var envelope struct {
			Data pollResponse `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if !envelope.Data.Success || envelope.Data.Checked != 3 || envelope.Data.Processed != 2 {
			t.Fatalf("unexpected payload: %+v", envelope.Data)
		}
	})

	t.Run("overrides reach the run", func(t *testing.T) {
		stub := &stubPollRunner{}
		body := `{"interval_minutes":120,"max_results":5,"concurrency":2,"enable_rate_limit":false,"enable_circuit_breaker":false}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/recordings/poll", strings.NewReader(body))
		rec := httptest.NewRecorder()
		TriggerPoll(stub, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		p := stub.lastParams
		if p == nil {
			t.Fatal("expected Run to be invoked")
		}
		if p.LookbackMinutes != 120 || p.MaxResults != 5 || p.Concurrency != 2 {
			t.Fatalf("unexpected params: %+v", p)
		}
		if p.EnableRateLimit == nil || *p.EnableRateLimit {
			t.Fatal("expected rate limit disabled")
		}
		if p.EnableCircuitBreaker == nil || *p.EnableCircuitBreaker {
			t.Fatal("expected circuit breaker disabled")
		}
	})

	t.Run("out of range override rejected", func(t *testing.T) {
		stub := &stubPollRunner{}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/recordings/poll", strings.NewReader(`{"max_results":5000}`))
		rec := httptest.NewRecorder()
		TriggerPoll(stub, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if stub.lastParams != nil {
			t.Fatal("run should not start on invalid payload")
		}
	})

	t.Run("run failure surfaces", func(t *testing.T) {
		stub := &stubPollRunner{runErr: pkgerrors.New(pkgerrors.CodeInternal, "selecting pending recordings")}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/recordings/poll", nil)
		rec := httptest.NewRecorder()
		TriggerPoll(stub, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
	})
}

func TestPollHealth(t *testing.T) {
	logg := testLogger()
	stub := &stubPollRunner{health: poller.Health{
		Gate:    resilience.Health{CircuitState: "closed", RateLimitPerSecond: 2},
		LastRun: &poller.RunStats{Checked: 4, Processed: 4},
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/recordings/poll", nil)
	rec := httptest.NewRecorder()
	PollHealth(stub, logg).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var envelope struct {
		Data poller.Health `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if envelope.Data.Gate.CircuitState != "closed" {
		t.Fatalf("unexpected circuit state %q", envelope.Data.Gate.CircuitState)
	}
	if envelope.Data.LastRun == nil || envelope.Data.LastRun.Checked != 4 {
		t.Fatalf("unexpected last run: %+v", envelope.Data.LastRun)
	}
}

func TestCronPoll(t *testing.T) {
	logg := testLogger()
	stub := &stubPollRunner{stats: poller.RunStats{Checked: 1, Processed: 1}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cron/poll-drive", nil)
	rec := httptest.NewRecorder()
	CronPoll(stub, logg).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if stub.lastParams == nil {
		t.Fatal("expected Run to be invoked")
	}
	if *stub.lastParams != (poller.Params{}) {
		t.Fatalf("cron run must use defaults, got %+v", stub.lastParams)
	}
}
