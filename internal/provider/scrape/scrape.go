package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"stocktool/internal/httpx"
	"stocktool/internal/provider"
)

// Config controls the HTML scraping provider.
type Config struct {
	Name string
	// URL is a pattern with a single %s replaced by the escaped symbol.
	URL       string
	UserAgent string
}

// Provider reads live values from the fin-streamer elements of a quote page.
type Provider struct {
	cfg    Config
	client httpx.Doer
}

func New(cfg Config, client httpx.Doer) *Provider {
	if cfg.Name == "" {
		cfg.Name = "Yahoo Finance (scrape)"
	}
	if cfg.URL == "" {
		cfg.URL = "https://finance.yahoo.com/quote/%s/"
	}
	return &Provider{cfg: cfg, client: client}
}

func (p *Provider) Name() string { return p.cfg.Name }

func (p *Provider) FetchQuote(ctx context.Context, symbol string) (provider.Quote, error) {
	doc, err := p.page(ctx, symbol)
	if err != nil {
		return provider.Quote{}, err
	}

	raw, ok := field(doc, symbol, "regularMarketPrice")
	if !ok {
		return provider.Quote{}, provider.NoData("Data not available from source.")
	}
	price, err := provider.ParseNumber(raw)
	if err != nil {
		return provider.Quote{}, err
	}

	out := provider.Quote{Symbol: symbol, Price: price}
	if raw, ok := field(doc, symbol, "regularMarketChange"); ok {
		if out.Change, err = provider.ParseNumber(raw); err != nil {
			return provider.Quote{}, err
		}
	}
	if raw, ok := field(doc, symbol, "regularMarketChangePercent"); ok {
		if out.ChangePercent, err = provider.ParsePercent(raw); err != nil {
			return provider.Quote{}, err
		}
	}
	out.PrevClose = optional(doc, symbol, "regularMarketPreviousClose")
	out.Open = optional(doc, symbol, "regularMarketOpen")
	out.High = optional(doc, symbol, "regularMarketDayHigh")
	out.Low = optional(doc, symbol, "regularMarketDayLow")
	return out, nil
}

func (p *Provider) page(ctx context.Context, symbol string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(p.cfg.URL, url.PathEscape(symbol)), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	if p.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", p.cfg.UserAgent)
	}

	res, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusTooManyRequests {
		return nil, provider.RateLimited(p.cfg.Name+" rate limit reached.", &httpx.StatusError{StatusCode: res.StatusCode})
	}
	if err := httpx.CheckStatus(res); err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}
	return doc, nil
}

// field prefers the raw value attribute and falls back to the rendered text.
func field(doc *goquery.Document, symbol, name string) (string, bool) {
	sel := doc.Find(fmt.Sprintf(`fin-streamer[data-symbol=%q][data-field=%q]`, symbol, name)).First()
	if sel.Length() == 0 {
		return "", false
	}
	if v, ok := sel.Attr("value"); ok && strings.TrimSpace(v) != "" {
		return v, true
	}
	v := strings.TrimSpace(sel.Text())
	return v, v != ""
}

func optional(doc *goquery.Document, symbol, name string) *float64 {
	raw, ok := field(doc, symbol, name)
	if !ok {
		return nil
	}
	v, err := provider.ParseNumber(raw)
	if err != nil {
		return nil
	}
	return &v
}
