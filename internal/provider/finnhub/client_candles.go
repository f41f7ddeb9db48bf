package finnhub

import (
	"context"
	"net/url"
	"strconv"
	"time"
)

// CandlesResponse is the /stock/candle payload. Status is "ok" or "no_data".
type CandlesResponse struct {
	Close     []float64 `json:"c"`
	High      []float64 `json:"h"`
	Low       []float64 `json:"l"`
	Open      []float64 `json:"o"`
	Timestamp []int64   `json:"t"`
	Volume    []float64 `json:"v"`
	Status    string    `json:"s"`
	Error     string    `json:"error,omitempty"`
}

// GetCandles retrieves OHLCV candles for symbol between from and to.
// Resolution is one of 1, 5, 15, 30, 60, D, W, M.
func (c *Client) GetCandles(ctx context.Context, symbol, resolution string, from, to time.Time, opts ...ClientOption) (*CandlesResponse, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("resolution", resolution)
	query.Set("from", strconv.FormatInt(from.Unix(), 10))
	query.Set("to", strconv.FormatInt(to.Unix(), 10))

	var candles CandlesResponse
	if err := c.get(ctx, "/stock/candle", query, &candles, opts...); err != nil {
		return nil, err
	}
	return &candles, nil
}
