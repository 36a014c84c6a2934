package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/trainproof/trainproof/internal/config"
	apperr "github.com/trainproof/trainproof/internal/pkg/errors"
)

// Limiter enforces one provider's outbound budget: a token bucket for
// request rate plus a slot pool for concurrent in-flight calls. One
// Limiter instance is shared by every job targeting the provider.
type Limiter struct {
	name    string
	bucket  *rate.Limiter
	slots   chan struct{}
	maxWait time.Duration
}

func New(name string, cfg config.RateConfig) *Limiter {
	perSecond := rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	concurrent := cfg.MaxConcurrent
	if concurrent < 1 {
		concurrent = 1
	}
	return &Limiter{
		name:    name,
		bucket:  rate.NewLimiter(perSecond, burst),
		slots:   make(chan struct{}, concurrent),
		maxWait: time.Duration(cfg.MaxWaitSeconds) * time.Second,
	}
}

func (l *Limiter) Name() string { return l.name }

// MaxConcurrent reports the in-flight call budget.
func (l *Limiter) MaxConcurrent() int { return cap(l.slots) }

// Acquire blocks until both a concurrency slot and a rate token are
// available, or until the wait ceiling elapses. The returned release
// function must be called when the provider call finishes. A wait
// ceiling hit surfaces as ErrRateLimited so the caller's retry policy
// handles it.
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	waitCtx := ctx
	if l.maxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.maxWait)
		defer cancel()
	}

	select {
	case l.slots <- struct{}{}:
	case <-waitCtx.Done():
		return nil, l.waitErr(ctx, waitCtx)
	}

	if err := l.bucket.Wait(waitCtx); err != nil {
		<-l.slots
		return nil, l.waitErr(ctx, waitCtx)
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-l.slots })
	}, nil
}

func (l *Limiter) waitErr(parent, waitCtx context.Context) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	_ = waitCtx
	return fmt.Errorf("%w: provider %s budget exhausted after %s", apperr.ErrRateLimited, l.name, l.maxWait)
}

// Registry holds the per-provider limiters built at startup.
type Registry struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
}

func NewRegistry(providers map[string]config.ProviderConfig) *Registry {
	limiters := make(map[string]*Limiter, len(providers))
	for name, p := range providers {
		limiters[name] = New(name, p.Rate)
	}
	return &Registry{limiters: limiters}
}

func (r *Registry) Get(provider string) (*Limiter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	limiter, ok := r.limiters[provider]
	if !ok {
		return nil, fmt.Errorf("no rate limiter configured for provider %s", provider)
	}
	return limiter, nil
}
