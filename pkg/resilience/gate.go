package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/carebridge-ops/carebridge-backend/pkg/config"
	pkgerrors "github.com/carebridge-ops/carebridge-backend/pkg/errors"
)

const errorWindowSize = 50

// CallOptions toggles the gate's guards for a single invocation. Scheduled
// runs keep both on; manual triggers may disable either.
type CallOptions struct {
	RateLimit bool
	Breaker   bool
}

// DefaultCallOptions enables both guards.
func DefaultCallOptions() CallOptions {
	return CallOptions{RateLimit: true, Breaker: true}
}

// Gate fronts every outbound call to the external document store with a
// shared token bucket and circuit breaker. One instance is shared by the
// webhook path and the polling path so the external API sees a single
// coherent client.
type Gate struct {
	cfg config.ResilienceConfig

	mu      sync.Mutex
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[any]
	window  []bool
}

// Health is a point-in-time snapshot for operational visibility.
type Health struct {
	CircuitState        string  `json:"circuitState"`
	ConsecutiveFailures uint32  `json:"consecutiveFailures"`
	Requests            uint32  `json:"requests"`
	RecentErrorRate     float64 `json:"recentErrorRate"`
	RateLimitPerSecond  float64 `json:"rateLimitPerSecond"`
}

// New builds a gate from configuration. Zero/negative values fall back to
// permissive defaults.
func New(cfg config.ResilienceConfig) *Gate {
	if cfg.RequestsPerInterval <= 0 {
		cfg.RequestsPerInterval = 10
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerInterval
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 2 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = time.Minute
	}

	g := &Gate{cfg: cfg}
	g.arm()
	return g
}

func (g *Gate) arm() {
	interval := g.cfg.Interval / time.Duration(g.cfg.RequestsPerInterval)
	g.limiter = rate.NewLimiter(rate.Every(interval), g.cfg.Burst)
	g.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "drive",
		MaxRequests: 1,
		Timeout:     g.cfg.CoolDown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(g.cfg.FailureThreshold)
		},
	})
	g.window = nil
}

// Reset re-arms the limiter and breaker, clearing all counters.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.arm()
}

// guards snapshots the limiter and breaker so in-flight calls keep a
// coherent pair even when Reset swaps them.
func (g *Gate) guards() (*rate.Limiter, *gobreaker.CircuitBreaker[any]) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.limiter, g.breaker
}

// Do runs fn behind the configured guards. When the bucket is exhausted the
// caller queues up to MaxWait and then receives a RateLimited error; when the
// breaker is open the call fails fast with CircuitOpen without touching the
// network.
func (g *Gate) Do(ctx context.Context, op string, opts CallOptions, fn func(context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	limiter, breaker := g.guards()

	if opts.RateLimit {
		waitCtx, cancel := context.WithTimeout(ctx, g.cfg.MaxWait)
		err := limiter.Wait(waitCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return pkgerrors.Wrap(pkgerrors.CodeRateLimited, err, fmt.Sprintf("rate limit exceeded for %s", op))
		}
	}

	if !opts.Breaker {
		err := fn(ctx)
		g.observe(err)
		return err
	}

	_, err := breaker.Execute(func() (any, error) {
		return nil, fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return pkgerrors.Wrap(pkgerrors.CodeCircuitOpen, err, fmt.Sprintf("circuit open for %s", op))
	}
	g.observe(err)
	return err
}

func (g *Gate) observe(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.window = append(g.window, err != nil)
	if len(g.window) > errorWindowSize {
		g.window = g.window[len(g.window)-errorWindowSize:]
	}
}

// Health reports the breaker state and recent error rate.
func (g *Gate) Health() Health {
	g.mu.Lock()
	defer g.mu.Unlock()

	counts := g.breaker.Counts()
	failures := 0
	for _, failed := range g.window {
		if failed {
			failures++
		}
	}
	errorRate := 0.0
	if len(g.window) > 0 {
		errorRate = float64(failures) / float64(len(g.window))
	}

	return Health{
		CircuitState:        g.breaker.State().String(),
		ConsecutiveFailures: counts.ConsecutiveFailures,
		Requests:            counts.Requests,
		RecentErrorRate:     errorRate,
		RateLimitPerSecond:  float64(g.limiter.Limit()),
	}
}

// CircuitStateValue maps the breaker state onto the metric scale
// (0 closed, 1 half-open, 2 open).
func (g *Gate) CircuitStateValue() float64 {
	_, breaker := g.guards()
	switch breaker.State() {
	case gobreaker.StateOpen:
		return 2
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 0
	}
}
