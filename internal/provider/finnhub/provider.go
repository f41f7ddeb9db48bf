package finnhub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stocktool/internal/provider"
)

type Config struct {
	Name        string // display name, default: Finnhub
	Resolution  string // candle resolution, default: D
	HistoryDays int    // candle window, default: 30
	// Now is the clock used to build the candle window.
	Now func() time.Time
}

// Provider adapts the Finnhub client to provider.Provider and
// provider.HistoryProvider.
type Provider struct {
	cfg    Config
	client *Client
}

func New(cfg Config, client *Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "Finnhub"
	}
	if cfg.Resolution == "" {
		cfg.Resolution = "D"
	}
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = 30
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Provider{cfg: cfg, client: client}
}

func (p *Provider) Name() string { return p.cfg.Name }

func (p *Provider) FetchQuote(ctx context.Context, symbol string) (provider.Quote, error) {
	q, err := p.client.GetQuote(ctx, symbol)
	if err != nil {
		return provider.Quote{}, p.classify(err)
	}
	if q.Error != "" {
		return provider.Quote{}, provider.Upstream(q.Error)
	}
	// Finnhub answers unknown or delisted symbols with an all-zero quote.
	if q.Current == 0 {
		return provider.Quote{}, provider.NoData("No quote data.")
	}

	out := provider.Quote{
		Symbol:    symbol,
		Price:     q.Current,
		Open:      provider.Float(q.Open),
		High:      provider.Float(q.High),
		Low:       provider.Float(q.Low),
		PrevClose: provider.Float(q.PrevClose),
	}
	if q.Change != nil {
		out.Change = *q.Change
	}
	if q.PercentChange != nil {
		out.ChangePercent = *q.PercentChange
	}
	if q.Timestamp > 0 {
		out.LastTrade = time.Unix(q.Timestamp, 0)
	}
	return out, nil
}

// FetchHistory returns daily closes as {x: epoch ms, y: close} points.
func (p *Provider) FetchHistory(ctx context.Context, symbol string) (*provider.History, error) {
	to := p.cfg.Now()
	from := to.AddDate(0, 0, -p.cfg.HistoryDays)
	c, err := p.client.GetCandles(ctx, symbol, p.cfg.Resolution, from, to)
	if err != nil {
		return nil, p.classify(err)
	}
	if c.Error != "" {
		return nil, provider.Upstream(c.Error)
	}
	if c.Status == "no_data" {
		return &provider.History{Points: []provider.Point{}}, nil
	}
	if len(c.Close) != len(c.Timestamp) {
		return nil, fmt.Errorf("candles count mismatch: %d closes, %d timestamps", len(c.Close), len(c.Timestamp))
	}

	points := make([]provider.Point, 0, len(c.Close))
	for i, ts := range c.Timestamp {
		points = append(points, provider.Point{X: ts * 1000, Y: c.Close[i]})
	}
	return &provider.History{Points: points}, nil
}

func (p *Provider) classify(err error) error {
	switch {
	case errors.Is(err, ErrRateLimited):
		return provider.RateLimited(p.cfg.Name+" rate limit reached.", err)
	case errors.Is(err, ErrUnauthorized):
		return &provider.Error{Kind: provider.KindUpstream, Msg: p.cfg.Name + " rejected the API key.", Err: err}
	default:
		return err
	}
}
