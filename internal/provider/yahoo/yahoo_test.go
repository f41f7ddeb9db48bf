package yahoo_test

import (
	"bytes"
	"compress/gzip"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/require"

	"stocktool/internal/provider"
	"stocktool/internal/provider/yahoo"
)

const quoteBody = `{"quoteResponse":{"result":[{"symbol":"AAPL","regularMarketPrice":190.12,"regularMarketChange":-1.5,"regularMarketChangePercent":-0.78,"regularMarketOpen":191.0,"regularMarketDayHigh":192.2,"regularMarketDayLow":189.9,"regularMarketPreviousClose":191.62,"regularMarketTime":1717185600}],"error":null}}`

func newTestProvider(t *testing.T, handler http.HandlerFunc) *yahoo.Provider {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	cfg := yahoo.Config{
		QuoteURL:  ts.URL,
		ChartURL:  ts.URL + "/v8/finance/chart",
		UserAgent: "test-browser",
		Timeout:   5 * time.Second,
	}
	return yahoo.New(cfg, yahoo.NewClient(cfg))
}

func TestFetchQuote(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v6/finance/quote" || r.URL.Query().Get("symbols") != "AAPL" || r.UserAgent() != "test-browser" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(quoteBody))
	})

	q, err := p.FetchQuote(t.Context(), "AAPL")
	require.NoError(t, err)
	require.InEpsilon(t, 190.12, q.Price, 0.0001)
	require.InEpsilon(t, -1.5, q.Change, 0.0001)
	require.InEpsilon(t, -0.78, q.ChangePercent, 0.0001)
	require.InEpsilon(t, 192.2, *q.High, 0.0001)
	require.True(t, q.LastTrade.Equal(time.Unix(1717185600, 0)))
}

func TestFetchQuote_Brotli(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		_, _ = bw.Write([]byte(quoteBody))
		_ = bw.Close()

		w.Header().Set("Content-Encoding", "br")
		_, _ = w.Write(buf.Bytes())
	})

	q, err := p.FetchQuote(t.Context(), "AAPL")
	require.NoError(t, err)
	require.InEpsilon(t, 190.12, q.Price, 0.0001)
}

func TestFetchQuote_Gzip(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		_, _ = gw.Write([]byte(quoteBody))
		_ = gw.Close()

		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	})

	q, err := p.FetchQuote(t.Context(), "AAPL")
	require.NoError(t, err)
	require.InEpsilon(t, 190.12, q.Price, 0.0001)
}

func TestFetchQuote_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
		kind provider.Kind
		msg  string
	}{
		{"upstream error", `{"quoteResponse":{"result":null,"error":{"code":"Unauthorized","description":"Invalid Crumb"}}}`, provider.KindUpstream, "Invalid Crumb"},
		{"missing price", `{"quoteResponse":{"result":[{"symbol":"AAPL"}],"error":null}}`, provider.KindNoData, "Data not available from source."},
		{"missing symbol", `{"quoteResponse":{"result":[],"error":null}}`, provider.KindNoData, "Data not available from source."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			})

			_, err := p.FetchQuote(t.Context(), "AAPL")

			var perr *provider.Error
			require.True(t, errors.As(err, &perr))
			require.Equal(t, tc.kind, perr.Kind)
			require.Equal(t, tc.msg, perr.Msg)
		})
	}
}

func TestFetchQuote_StatusErrors(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`Unauthorized`))
	})

	_, err := p.FetchQuote(t.Context(), "AAPL")
	require.ErrorContains(t, err, "unexpected status code: 401")

	limited := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err = limited.FetchQuote(t.Context(), "AAPL")

	var perr *provider.Error
	require.True(t, errors.As(err, &perr))
	require.Equal(t, provider.KindRateLimited, perr.Kind)
}

func TestFetchHistory_SkipsNullCloses(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/v8/finance/chart/AAPL" || q.Get("range") != "1d" || q.Get("interval") != "5m" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"chart":{"result":[{"timestamp":[100,400,700],"indicators":{"quote":[{"close":[190.1,null,190.4]}]}}],"error":null}}`))
	})

	h, err := p.FetchHistory(t.Context(), "AAPL")
	require.NoError(t, err)
	require.Equal(t, []provider.Point{{X: 100000, Y: 190.1}, {X: 700000, Y: 190.4}}, h.Points)
}

func TestFetchHistory_EmptyResult(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":[],"error":null}}`))
	})

	h, err := p.FetchHistory(t.Context(), "AAPL")
	require.NoError(t, err)
	require.NotNil(t, h.Points)
	require.Zero(t, h.Len())
}
