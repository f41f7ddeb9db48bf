package aggregate

import (
	"encoding/json"

	"stocktool/internal/provider"
)

// QuoteResult is the per-symbol outcome. A result with a non-empty Error is a
// failure and carries no market data.
type QuoteResult struct {
	Symbol         string
	Price          float64
	ChangeAmount   float64
	ChangePercent  float64
	Open           *float64
	High           *float64
	Low            *float64
	PrevClose      *float64
	LastTradeTime  string
	HistoricalData *provider.History
	Error          string
}

// Failure returns a result reporting msg for symbol.
func Failure(symbol, msg string) QuoteResult {
	return QuoteResult{Symbol: symbol, Error: msg}
}

// Failed reports whether r is a failure.
func (r QuoteResult) Failed() bool { return r.Error != "" }

type successJSON struct {
	Symbol         string            `json:"symbol"`
	Price          float64           `json:"price"`
	ChangeAmount   float64           `json:"changeAmount"`
	ChangePercent  float64           `json:"changePercent"`
	Open           *float64          `json:"open,omitempty"`
	High           *float64          `json:"high,omitempty"`
	Low            *float64          `json:"low,omitempty"`
	PrevClose      *float64          `json:"prevClose,omitempty"`
	LastTradeTime  string            `json:"lastTradeTime,omitempty"`
	HistoricalData *provider.History `json:"historicalData,omitempty"`
}

type failureJSON struct {
	Symbol string `json:"symbol"`
	Error  string `json:"error"`
}

// MarshalJSON writes {symbol, error} for failures and the market fields
// otherwise, so the two shapes never mix.
func (r QuoteResult) MarshalJSON() ([]byte, error) {
	if r.Failed() {
		return json.Marshal(failureJSON{Symbol: r.Symbol, Error: r.Error})
	}
	return json.Marshal(successJSON{
		Symbol:         r.Symbol,
		Price:          r.Price,
		ChangeAmount:   r.ChangeAmount,
		ChangePercent:  r.ChangePercent,
		Open:           r.Open,
		High:           r.High,
		Low:            r.Low,
		PrevClose:      r.PrevClose,
		LastTradeTime:  r.LastTradeTime,
		HistoricalData: r.HistoricalData,
	})
}

func (r *QuoteResult) UnmarshalJSON(b []byte) error {
	var raw struct {
		successJSON
		Error string `json:"error"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Error != "" {
		*r = Failure(raw.Symbol, raw.Error)
		return nil
	}
	s := raw.successJSON
	*r = QuoteResult{
		Symbol:         s.Symbol,
		Price:          s.Price,
		ChangeAmount:   s.ChangeAmount,
		ChangePercent:  s.ChangePercent,
		Open:           s.Open,
		High:           s.High,
		Low:            s.Low,
		PrevClose:      s.PrevClose,
		LastTradeTime:  s.LastTradeTime,
		HistoricalData: s.HistoricalData,
	}
	return nil
}
