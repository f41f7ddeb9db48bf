package alphavantage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"stocktool/internal/httpx"
	"stocktool/internal/provider"
)

// Config controls the Alpha Vantage provider behavior.
type Config struct {
	Name          string
	URL           string // query endpoint, default https://www.alphavantage.co/query
	APIKey        string
	HistoryPoints int // closes kept from the daily series, default 30
}

// Provider reads GLOBAL_QUOTE for current prices and TIME_SERIES_DAILY for
// the closing series.
type Provider struct {
	cfg    Config
	client httpx.Doer
}

func New(cfg Config, client httpx.Doer) *Provider {
	if cfg.Name == "" {
		cfg.Name = "Alpha Vantage"
	}
	if cfg.URL == "" {
		cfg.URL = "https://www.alphavantage.co/query"
	}
	if cfg.HistoryPoints <= 0 {
		cfg.HistoryPoints = 30
	}
	return &Provider{cfg: cfg, client: client}
}

func (p *Provider) Name() string { return p.cfg.Name }

// envelope holds the fields Alpha Vantage uses to signal problems instead of
// a non-200 status.
type envelope struct {
	Note         string `json:"Note"`
	Information  string `json:"Information"`
	ErrorMessage string `json:"Error Message"`
}

func (e envelope) err() error {
	switch {
	case e.ErrorMessage != "":
		return provider.Upstream(e.ErrorMessage)
	case e.Note != "":
		return provider.RateLimited(e.Note, nil)
	case e.Information != "":
		return provider.RateLimited(e.Information, nil)
	}
	return nil
}

type globalQuoteResponse struct {
	envelope
	Quote map[string]string `json:"Global Quote"`
}

type dailySeriesResponse struct {
	envelope
	Series map[string]map[string]string `json:"Time Series (Daily)"`
}

func (p *Provider) FetchQuote(ctx context.Context, symbol string) (provider.Quote, error) {
	var res globalQuoteResponse
	if err := httpx.GetJSON(ctx, p.client, p.url("GLOBAL_QUOTE", symbol), nil, &res); err != nil {
		return provider.Quote{}, classify(err)
	}
	if err := res.envelope.err(); err != nil {
		return provider.Quote{}, err
	}
	if len(res.Quote) == 0 || res.Quote["05. price"] == "" {
		return provider.Quote{}, provider.NoData("No quote data.")
	}

	price, err := provider.ParseNumber(res.Quote["05. price"])
	if err != nil {
		return provider.Quote{}, err
	}
	if price == 0 {
		return provider.Quote{}, provider.NoData("No quote data.")
	}

	out := provider.Quote{Symbol: symbol, Price: price}
	if v, ok := res.Quote["09. change"]; ok {
		if out.Change, err = provider.ParseNumber(v); err != nil {
			return provider.Quote{}, err
		}
	}
	if v, ok := res.Quote["10. change percent"]; ok {
		if out.ChangePercent, err = provider.ParsePercent(v); err != nil {
			return provider.Quote{}, err
		}
	}
	out.Open = optional(res.Quote, "02. open")
	out.High = optional(res.Quote, "03. high")
	out.Low = optional(res.Quote, "04. low")
	out.PrevClose = optional(res.Quote, "08. previous close")
	return out, nil
}

// FetchHistory returns the most recent daily closes, oldest first.
func (p *Provider) FetchHistory(ctx context.Context, symbol string) (*provider.History, error) {
	var res dailySeriesResponse
	if err := httpx.GetJSON(ctx, p.client, p.url("TIME_SERIES_DAILY", symbol), nil, &res); err != nil {
		return nil, classify(err)
	}
	if err := res.envelope.err(); err != nil {
		return nil, err
	}

	// ISO dates sort chronologically as strings.
	days := make([]string, 0, len(res.Series))
	for day := range res.Series {
		days = append(days, day)
	}
	sort.Strings(days)
	if len(days) > p.cfg.HistoryPoints {
		days = days[len(days)-p.cfg.HistoryPoints:]
	}

	closes := make([]float64, 0, len(days))
	for _, day := range days {
		v, err := provider.ParseNumber(res.Series[day]["4. close"])
		if err != nil {
			return nil, fmt.Errorf("close for %s: %w", day, err)
		}
		closes = append(closes, v)
	}
	return &provider.History{Closes: closes}, nil
}

func (p *Provider) url(function, symbol string) string {
	q := url.Values{}
	q.Set("function", function)
	q.Set("symbol", symbol)
	q.Set("apikey", p.cfg.APIKey)
	sep := "?"
	if strings.Contains(p.cfg.URL, "?") {
		sep = "&"
	}
	return p.cfg.URL + sep + q.Encode()
}

func optional(m map[string]string, key string) *float64 {
	v, ok := m[key]
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	f, err := provider.ParseNumber(v)
	if err != nil {
		return nil
	}
	return &f
}

func classify(err error) error {
	if se, ok := err.(*httpx.StatusError); ok && se.StatusCode == http.StatusTooManyRequests {
		return provider.RateLimited("Alpha Vantage rate limit reached.", err)
	}
	return err
}
