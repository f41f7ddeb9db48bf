package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stocktool/internal/config"
	"stocktool/internal/provider"
	"stocktool/internal/telemetry"
)

// LastTradeLayout formats the last trade as a 12-hour time of day.
const LastTradeLayout = "03:04 PM"

// Failure messages shown to clients.
const (
	MsgFetchFailed = "Failed to fetch."
	MsgNoQuoteData = "No quote data."
)

// FatalError aborts a whole request before any upstream call.
type FatalError struct {
	// Msg is safe to return to clients.
	Msg string
	Err error
}

func (e *FatalError) Error() string { return e.Msg + ": " + e.Err.Error() }

func (e *FatalError) Unwrap() error { return e.Err }

type Option func(*Aggregator)

// WithLogger overrides the global zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Aggregator) { a.log = l }
}

// Aggregator fans a fixed symbol list out to one provider and collects one
// result per symbol in configured order.
type Aggregator struct {
	symbols      []string
	p            provider.Provider
	history      provider.HistoryProvider
	timeout      time.Duration
	limit        int
	loc          *time.Location
	cacheControl string
	precondition error
	log          *zap.Logger
	marshal      func(v any) ([]byte, error)
}

// New checks cfg once; a bad configuration makes every Collect fail fast
// with a *FatalError.
func New(cfg config.Quotes, p provider.Provider, opts ...Option) *Aggregator {
	a := &Aggregator{
		symbols:      append([]string(nil), cfg.Symbols...),
		p:            p,
		timeout:      cfg.UpstreamTimeout(),
		limit:        cfg.MaxConcurrency,
		loc:          time.Local,
		cacheControl: CacheControl(cfg),
		log:          zap.L(),
		marshal:      sonic.ConfigStd.Marshal,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.Named("aggregate").With(zap.String("provider", cfg.Provider))

	if err := cfg.Validate(); err != nil {
		msg := "Server configuration error."
		var mce *config.MissingCredentialError
		if errors.As(err, &mce) {
			msg = mce.Public()
		}
		a.precondition = &FatalError{Msg: msg, Err: err}
		return a
	}
	if loc, err := cfg.Location(); err == nil {
		a.loc = loc
	}
	if hp, ok := p.(provider.HistoryProvider); ok && cfg.History {
		a.history = hp
	}
	return a
}

// Collect fetches every symbol concurrently. The only error it returns is a
// *FatalError; per-symbol problems become failure results.
func (a *Aggregator) Collect(ctx context.Context) ([]QuoteResult, error) {
	if a.precondition != nil {
		return nil, a.precondition
	}

	results := make([]QuoteResult, len(a.symbols))
	var g errgroup.Group
	if a.limit > 0 {
		g.SetLimit(a.limit)
	}
	for i, symbol := range a.symbols {
		g.Go(func() error {
			results[i] = a.fetchSymbol(ctx, symbol)
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

func (a *Aggregator) fetchSymbol(ctx context.Context, symbol string) QuoteResult {
	var (
		quote      provider.Quote
		history    *provider.History
		qerr, herr error
		g          errgroup.Group
	)
	g.Go(func() error {
		quote, qerr = a.fetchQuote(ctx, symbol)
		return nil
	})
	if a.history != nil {
		g.Go(func() error {
			history, herr = a.fetchHistory(ctx, symbol)
			return nil
		})
	}
	_ = g.Wait()

	if qerr != nil {
		return a.fail(symbol, "quote", qerr)
	}
	if herr != nil {
		if !errors.Is(herr, provider.ErrNotSupported) {
			return a.fail(symbol, "history", herr)
		}
	}
	if quote.Price == 0 {
		return a.fail(symbol, "quote", provider.NoData(MsgNoQuoteData))
	}
	if !quote.Finite() {
		return a.fail(symbol, "quote", fmt.Errorf("quote for %s: %w", symbol, provider.ErrNotFinite))
	}
	if !history.Finite() {
		return a.fail(symbol, "history", fmt.Errorf("history for %s: %w", symbol, provider.ErrNotFinite))
	}

	telemetry.SymbolServed()
	res := QuoteResult{
		Symbol:         symbol,
		Price:          quote.Price,
		ChangeAmount:   quote.Change,
		ChangePercent:  quote.ChangePercent,
		Open:           quote.Open,
		High:           quote.High,
		Low:            quote.Low,
		PrevClose:      quote.PrevClose,
		HistoricalData: history,
	}
	if !quote.LastTrade.IsZero() {
		res.LastTradeTime = quote.LastTrade.In(a.loc).Format(LastTradeLayout)
	}
	return res
}

func (a *Aggregator) fetchQuote(ctx context.Context, symbol string) (provider.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	telemetry.UpstreamCall("quote")
	return a.p.FetchQuote(ctx, symbol)
}

func (a *Aggregator) fetchHistory(ctx context.Context, symbol string) (*provider.History, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	telemetry.UpstreamCall("history")
	return a.history.FetchHistory(ctx, symbol)
}

func (a *Aggregator) fail(symbol, op string, err error) QuoteResult {
	kind := provider.KindTransport
	msg := MsgFetchFailed
	var perr *provider.Error
	if errors.As(err, &perr) {
		kind = perr.Kind
		if perr.Kind != provider.KindTransport && perr.Msg != "" {
			msg = perr.Msg
		}
	}

	telemetry.UpstreamFailure(kind.String())
	telemetry.SymbolFailed()
	a.log.Warn("symbol failed",
		zap.String("symbol", symbol),
		zap.String("op", op),
		zap.Stringer("kind", kind),
		zap.Error(err),
	)
	return Failure(symbol, msg)
}
