package factory

import (
	"fmt"
	"strings"

	"stocktool/internal/config"
	"stocktool/internal/httpx"
	"stocktool/internal/provider"
	"stocktool/internal/provider/alphavantage"
	"stocktool/internal/provider/finnhub"
	"stocktool/internal/provider/ratelimit"
	"stocktool/internal/provider/scrape"
	"stocktool/internal/provider/yahoo"
)

// NewFromConfig builds the provider selected by cfg.Provider, paced by the
// rate limiter when max_requests_per_minute is set. A missing credential is
// not an error here; the aggregator reports it per request.
func NewFromConfig(cfg config.Quotes) (provider.Provider, error) {
	timeout := cfg.UpstreamTimeout()
	name := config.DisplayName(cfg.Provider)

	var p provider.Provider
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case config.ProviderFinnhub:
		client := finnhub.NewClient(cfg.Finnhub.APIKey,
			finnhub.WithBaseURL(strings.TrimRight(cfg.Finnhub.Endpoint, "/")),
			finnhub.WithHTTPClient(httpx.New(timeout)),
		)
		p = finnhub.New(finnhub.Config{Name: name, HistoryDays: cfg.HistoryDays}, client)
	case config.ProviderAlphaVantage:
		p = alphavantage.New(alphavantage.Config{
			Name:          name,
			URL:           cfg.AlphaVantage.Endpoint,
			APIKey:        cfg.AlphaVantage.APIKey,
			HistoryPoints: cfg.HistoryPoints,
		}, httpx.New(timeout))
	case config.ProviderYahoo:
		ycfg := yahoo.Config{
			Name:      name,
			QuoteURL:  cfg.Yahoo.Endpoint,
			ChartURL:  cfg.Yahoo.ChartEndpoint,
			UserAgent: userAgent(cfg.Yahoo.UserAgent),
			Timeout:   timeout,
		}
		p = yahoo.New(ycfg, yahoo.NewClient(ycfg))
	case config.ProviderScrape:
		client := httpx.New(timeout)
		client.UserAgent = userAgent(cfg.Scrape.UserAgent)
		p = scrape.New(scrape.Config{Name: name, URL: cfg.Scrape.Endpoint, UserAgent: client.UserAgent}, client)
	default:
		return nil, fmt.Errorf("unknown quotes provider %q", cfg.Provider)
	}

	if cfg.MaxRequestsPerMinute > 0 {
		p = ratelimit.PerMinute(p, cfg.MaxRequestsPerMinute, cfg.Burst)
	}
	return p, nil
}

func userAgent(ua string) string {
	if ua == "" {
		return config.BrowserUserAgent
	}
	return ua
}
