package yahoo

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"stocktool/internal/httpx"
	"stocktool/internal/provider"
)

// Config controls the Yahoo Finance provider behavior.
type Config struct {
	Name      string
	QuoteURL  string // host serving /v6/finance/quote
	ChartURL  string // chart v8 base, symbol is appended as a path segment
	UserAgent string
	Range     string // chart range, default 1d
	Interval  string // chart interval, default 5m
	Timeout   time.Duration
}

// Provider reads the unofficial Yahoo Finance quote and chart endpoints.
type Provider struct {
	cfg    Config
	client *resty.Client
}

// NewClient returns a resty client with the headers the unofficial endpoints
// expect and transparent brotli/gzip decoding.
func NewClient(cfg Config) *resty.Client {
	c := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeaders(map[string]string{
			"Accept":          "application/json",
			"Accept-Encoding": acceptEncoding,
			"User-Agent":      cfg.UserAgent,
		})
	c.OnAfterResponse(Decompress)
	return c
}

func New(cfg Config, client *resty.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "Yahoo Finance"
	}
	if cfg.QuoteURL == "" {
		cfg.QuoteURL = "https://query2.finance.yahoo.com"
	}
	if cfg.ChartURL == "" {
		cfg.ChartURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	}
	if cfg.Range == "" {
		cfg.Range = "1d"
	}
	if cfg.Interval == "" {
		cfg.Interval = "5m"
	}
	if client == nil {
		client = NewClient(cfg)
	}
	return &Provider{cfg: cfg, client: client}
}

func (p *Provider) Name() string { return p.cfg.Name }

type quoteResponse struct {
	QuoteResponse struct {
		Result []quoteResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteResponse"`
}

type quoteResult struct {
	Symbol                     string   `json:"symbol"`
	RegularMarketPrice         *float64 `json:"regularMarketPrice"`
	RegularMarketChange        *float64 `json:"regularMarketChange"`
	RegularMarketChangePercent *float64 `json:"regularMarketChangePercent"`
	RegularMarketOpen          *float64 `json:"regularMarketOpen"`
	RegularMarketDayHigh       *float64 `json:"regularMarketDayHigh"`
	RegularMarketDayLow        *float64 `json:"regularMarketDayLow"`
	RegularMarketPreviousClose *float64 `json:"regularMarketPreviousClose"`
	RegularMarketTime          int64    `json:"regularMarketTime"`
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (p *Provider) FetchQuote(ctx context.Context, symbol string) (provider.Quote, error) {
	var res quoteResponse
	err := p.get(ctx, strings.TrimRight(p.cfg.QuoteURL, "/")+"/v6/finance/quote", map[string]string{"symbols": symbol}, &res)
	if err != nil {
		return provider.Quote{}, err
	}
	if e := res.QuoteResponse.Error; e != nil {
		msg := e.Description
		if msg == "" {
			msg = "Yahoo Finance API returned an error."
		}
		return provider.Quote{}, provider.Upstream(msg)
	}

	var r *quoteResult
	for i := range res.QuoteResponse.Result {
		if strings.EqualFold(res.QuoteResponse.Result[i].Symbol, symbol) {
			r = &res.QuoteResponse.Result[i]
			break
		}
	}
	if r == nil || r.RegularMarketPrice == nil {
		return provider.Quote{}, provider.NoData("Data not available from source.")
	}

	out := provider.Quote{
		Symbol:    symbol,
		Price:     *r.RegularMarketPrice,
		Open:      r.RegularMarketOpen,
		High:      r.RegularMarketDayHigh,
		Low:       r.RegularMarketDayLow,
		PrevClose: r.RegularMarketPreviousClose,
	}
	if r.RegularMarketChange != nil {
		out.Change = *r.RegularMarketChange
	}
	if r.RegularMarketChangePercent != nil {
		out.ChangePercent = *r.RegularMarketChangePercent
	}
	if r.RegularMarketTime > 0 {
		out.LastTrade = time.Unix(r.RegularMarketTime, 0)
	}
	return out, nil
}

// FetchHistory returns intraday closes as {x: epoch ms, y: close} points,
// skipping intervals without a trade.
func (p *Provider) FetchHistory(ctx context.Context, symbol string) (*provider.History, error) {
	var res chartResponse
	u := strings.TrimRight(p.cfg.ChartURL, "/") + "/" + url.PathEscape(symbol)
	err := p.get(ctx, u, map[string]string{"range": p.cfg.Range, "interval": p.cfg.Interval}, &res)
	if err != nil {
		return nil, err
	}
	if e := res.Chart.Error; e != nil {
		return nil, provider.Upstream(e.Description)
	}

	points := []provider.Point{}
	if len(res.Chart.Result) == 0 || len(res.Chart.Result[0].Indicators.Quote) == 0 {
		return &provider.History{Points: points}, nil
	}
	result := res.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		points = append(points, provider.Point{X: ts * 1000, Y: *closes[i]})
	}
	return &provider.History{Points: points}, nil
}

func (p *Provider) get(ctx context.Context, u string, query map[string]string, out any) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(query).
		Get(u)
	if err != nil {
		return fmt.Errorf("performing request: %w", httpx.RedactURL(err))
	}
	if resp.StatusCode() == http.StatusTooManyRequests {
		return provider.RateLimited(p.cfg.Name+" rate limit reached.", &httpx.StatusError{StatusCode: resp.StatusCode()})
	}
	if !resp.IsSuccess() {
		return &httpx.StatusError{StatusCode: resp.StatusCode(), Body: excerpt(resp.Body())}
	}
	return httpx.DecodeJSON(bytes.NewReader(resp.Body()), out)
}

func excerpt(b []byte) string {
	if len(b) > 512 {
		b = b[:512]
	}
	return strings.TrimSpace(string(b))
}
