package finnhub

import (
	"context"
	"net/url"
)

// QuoteResponse is the /quote payload.
//
//	{"c":189.98,"d":1.25,"dp":0.6623,"h":190.3,"l":187.6,"o":188.1,"pc":188.73,"t":1717012800}
//
// d and dp are null for unknown symbols, which also report c == 0.
type QuoteResponse struct {
	Current       float64  `json:"c"`
	Change        *float64 `json:"d"`
	PercentChange *float64 `json:"dp"`
	High          float64  `json:"h"`
	Low           float64  `json:"l"`
	Open          float64  `json:"o"`
	PrevClose     float64  `json:"pc"`
	Timestamp     int64    `json:"t"`
	Error         string   `json:"error,omitempty"`
}

// GetQuote retrieves the real-time quote for symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string, opts ...ClientOption) (*QuoteResponse, error) {
	var quote QuoteResponse
	if err := c.get(ctx, "/quote", url.Values{"symbol": []string{symbol}}, &quote, opts...); err != nil {
		return nil, err
	}
	return &quote, nil
}
