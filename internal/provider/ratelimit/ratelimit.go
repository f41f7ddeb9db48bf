package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"stocktool/internal/provider"
)

// Provider wraps a provider and paces every upstream call, quote or history,
// through one shared token bucket. Callers wait for a token or return early
// when their context is canceled or its deadline would pass first.
type Provider struct {
	P       provider.Provider
	Limiter *rate.Limiter
}

// PerMinute allows perMinute calls a minute with the given burst. A
// non-positive perMinute disables pacing.
func PerMinute(p provider.Provider, perMinute, burst int) *Provider {
	if perMinute <= 0 {
		return &Provider{P: p}
	}
	if burst <= 0 {
		burst = 1
	}
	return &Provider{P: p, Limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60), burst)}
}

// MinInterval enforces at least interval between calls.
func MinInterval(p provider.Provider, interval time.Duration) *Provider {
	if interval <= 0 {
		return &Provider{P: p}
	}
	return &Provider{P: p, Limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

func (l *Provider) Name() string { return l.P.Name() }

func (l *Provider) FetchQuote(ctx context.Context, symbol string) (provider.Quote, error) {
	if err := l.wait(ctx); err != nil {
		return provider.Quote{}, err
	}
	return l.P.FetchQuote(ctx, symbol)
}

// FetchHistory returns provider.ErrNotSupported without waiting when the
// wrapped provider has no history.
func (l *Provider) FetchHistory(ctx context.Context, symbol string) (*provider.History, error) {
	hp, ok := l.P.(provider.HistoryProvider)
	if !ok {
		return nil, provider.ErrNotSupported
	}
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return hp.FetchHistory(ctx, symbol)
}

func (l *Provider) wait(ctx context.Context) error {
	if l.Limiter == nil {
		return nil
	}
	if err := l.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for %s rate limit: %w", l.P.Name(), err)
	}
	return nil
}
