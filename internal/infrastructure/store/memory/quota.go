package memory

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/alexisbeaulieu97/pipegate/internal/ports"
)

// QuotaPolicy is a token bucket refilled at PerMinute executions per minute
// holding at most Burst tokens. PerMinute <= 0 disables the quota.
type QuotaPolicy struct {
	PerMinute float64
	Burst     int
}

func (p QuotaPolicy) unlimited() bool {
	return p.PerMinute <= 0
}

// ErrQuotaExhausted is returned by Consume when no token is available.
var ErrQuotaExhausted = fmt.Errorf("quota exhausted")

// QuotaStore meters execution starts per application using one token bucket
// per application.
type QuotaStore struct {
	mu        sync.Mutex
	defaults  QuotaPolicy
	overrides map[string]QuotaPolicy
	limiters  map[string]*rate.Limiter
	now       func() time.Time
}

// QuotaOption configures a QuotaStore.
type QuotaOption func(*QuotaStore)

// WithQuotaClock overrides the time source, mainly for tests.
func WithQuotaClock(now func() time.Time) QuotaOption {
	return func(s *QuotaStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithApplicationPolicy sets a per-application policy.
func WithApplicationPolicy(application string, policy QuotaPolicy) QuotaOption {
	return func(s *QuotaStore) {
		s.overrides[application] = policy
	}
}

// NewQuotaStore creates a store applying defaults to every application
// without an override.
func NewQuotaStore(defaults QuotaPolicy, opts ...QuotaOption) *QuotaStore {
	s := &QuotaStore{
		defaults:  defaults,
		overrides: make(map[string]QuotaPolicy),
		limiters:  make(map[string]*rate.Limiter),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Remaining reports the tokens currently available without consuming any.
// Unlimited applications report +Inf.
func (s *QuotaStore) Remaining(ctx context.Context, application string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter := s.limiter(application)
	if limiter == nil {
		return math.Inf(1), nil
	}
	return limiter.TokensAt(s.now()), nil
}

// Consume takes one token for application.
func (s *QuotaStore) Consume(ctx context.Context, application string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter := s.limiter(application)
	if limiter == nil {
		return nil
	}
	if !limiter.AllowN(s.now(), 1) {
		return fmt.Errorf("application %s: %w", application, ErrQuotaExhausted)
	}
	return nil
}

// limiter returns the bucket for application, or nil when unlimited.
// Callers must hold s.mu.
func (s *QuotaStore) limiter(application string) *rate.Limiter {
	policy, ok := s.overrides[application]
	if !ok {
		policy = s.defaults
	}
	if policy.unlimited() {
		return nil
	}
	if limiter, ok := s.limiters[application]; ok {
		return limiter
	}
	burst := policy.Burst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(policy.PerMinute/60.0), burst)
	s.limiters[application] = limiter
	return limiter
}

var _ ports.QuotaStore = (*QuotaStore)(nil)
