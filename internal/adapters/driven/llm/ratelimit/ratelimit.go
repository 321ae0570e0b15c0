// Package ratelimit wraps an LLM service with a client-side request throttle.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
	"github.com/custodia-labs/lexcheck/internal/logger"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// DefaultBackoff is the pause after the provider reports rate limiting.
const DefaultBackoff = 30 * time.Second

// Config holds rate limiting configuration.
type Config struct {
	// RequestsPerSecond is the sustained request rate.
	RequestsPerSecond float64

	// BurstSize is the maximum burst size (default: ceil(RequestsPerSecond), at least 1).
	BurstSize int

	// Backoff pauses every caller after a rate-limited response (default: 30s).
	Backoff time.Duration
}

// LLMService throttles calls to an inner LLM service with a token bucket.
// A rate-limited response pauses all callers for the backoff period.
//
// Token-per-minute budgeting is the batch orchestrator's job; this only
// spaces out individual requests.
type LLMService struct {
	inner   driven.LLMService
	limiter *rate.Limiter
	backoff time.Duration
	log     *logger.Logger

	mu      sync.Mutex
	retryAt time.Time
	now     func() time.Time
}

// Wrap returns inner throttled to cfg. A non-positive rate returns inner unchanged.
func Wrap(inner driven.LLMService, cfg Config, log *logger.Logger) driven.LLMService {
	if cfg.RequestsPerSecond <= 0 {
		return inner
	}
	return New(inner, cfg, log)
}

// New creates a throttled LLM service.
func New(inner driven.LLMService, cfg Config, log *logger.Logger) *LLMService {
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = int(math.Max(1, math.Ceil(cfg.RequestsPerSecond)))
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	return &LLMService{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		backoff: backoff,
		log:     log.With("ratelimit"),
		now:     time.Now,
	}
}

// Generate waits for a request slot, then delegates.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	out, err := s.inner.Generate(ctx, prompt, opts)
	s.observe(err)
	return out, err
}

// Chat waits for a request slot, then delegates.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	out, err := s.inner.Chat(ctx, messages, opts)
	s.observe(err)
	return out, err
}

// ModelName returns the inner service's model.
func (s *LLMService) ModelName() string {
	return s.inner.ModelName()
}

// Ping is not throttled.
func (s *LLMService) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

// Close closes the inner service.
func (s *LLMService) Close() error {
	return s.inner.Close()
}

// wait blocks for any backoff period, then for the token bucket.
func (s *LLMService) wait(ctx context.Context) error {
	s.mu.Lock()
	retryAt := s.retryAt
	s.mu.Unlock()

	if delay := retryAt.Sub(s.now()); delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", domain.ErrRateLimited, ctx.Err())
		case <-timer.C:
		}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrRateLimited, err)
	}
	return nil
}

// observe starts a backoff period when the provider reports rate limiting.
func (s *LLMService) observe(err error) {
	if !errors.Is(err, domain.ErrRateLimited) {
		return
	}
	s.mu.Lock()
	s.retryAt = s.now().Add(s.backoff)
	s.mu.Unlock()
	s.log.Warn("provider rate limited %s, pausing requests for %s", s.inner.ModelName(), s.backoff)
}
