package provider

import (
	"context"
	"errors"
	"time"
)

// Quote is the normalized current quote every provider returns.
// Optional fields are nil when the upstream does not report them.
type Quote struct {
	Symbol        string
	Price         float64
	Change        float64
	ChangePercent float64
	Open          *float64
	High          *float64
	Low           *float64
	PrevClose     *float64
	// LastTrade is the zero time when unknown.
	LastTrade time.Time
}

// Finite reports whether every number in q can be encoded as JSON.
func (q Quote) Finite() bool {
	for _, v := range []float64{q.Price, q.Change, q.ChangePercent} {
		if !Finite(v) {
			return false
		}
	}
	for _, v := range []*float64{q.Open, q.High, q.Low, q.PrevClose} {
		if v != nil && !Finite(*v) {
			return false
		}
	}
	return true
}

// Provider fetches the current quote for one symbol.
type Provider interface {
	Name() string
	FetchQuote(ctx context.Context, symbol string) (Quote, error)
}

// HistoryProvider is implemented by providers that can also return a price
// series ordered oldest to newest.
type HistoryProvider interface {
	FetchHistory(ctx context.Context, symbol string) (*History, error)
}

// ErrNotSupported is returned by decorators whose wrapped provider has no history.
var ErrNotSupported = errors.New("not supported by provider")

// Float returns a pointer to v, for the optional Quote fields.
func Float(v float64) *float64 { return &v }
