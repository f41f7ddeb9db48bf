package aggregate

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"stocktool/internal/config"
)

// Response is a transport-neutral HTTP answer shared by the server and the
// Lambda entry point.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

type errorBody struct {
	Error string `json:"error"`
}

// CacheControl returns the Cache-Control value for the configured policy.
func CacheControl(cfg config.Quotes) string {
	if cfg.CachePolicy == config.CacheNoStore {
		return "no-cache, no-store, must-revalidate"
	}
	maxAge := cfg.CacheMaxAgeSec
	if maxAge <= 0 {
		maxAge = 15
	}
	return fmt.Sprintf("public, max-age=%d", maxAge)
}

// Render collects the quotes and serializes them. Fatal configuration
// problems and encoding failures become a 500 with an {"error"} body.
func (a *Aggregator) Render(ctx context.Context) Response {
	results, err := a.Collect(ctx)
	if err != nil {
		msg := "Internal server error."
		var fe *FatalError
		if errors.As(err, &fe) {
			msg = fe.Msg
		}
		a.log.Error("quotes request aborted", zap.Error(err))
		return errorResponse(http.StatusInternalServerError, msg)
	}

	body, err := a.marshal(results)
	if err != nil {
		a.log.Error("encoding quotes", zap.Error(err))
		return errorResponse(http.StatusInternalServerError, "Failed to encode quotes.")
	}
	h := jsonHeader()
	h.Set("Cache-Control", a.cacheControl)
	return Response{Status: http.StatusOK, Header: h, Body: body}
}

func errorResponse(status int, msg string) Response {
	body, _ := sonic.ConfigStd.Marshal(errorBody{Error: msg})
	h := jsonHeader()
	h.Set("Cache-Control", "no-store")
	return Response{Status: status, Header: h, Body: body}
}

func jsonHeader() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json; charset=utf-8")
	return h
}

// Handler serves Render over HTTP.
func (a *Aggregator) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			res := errorResponse(http.StatusMethodNotAllowed, "Method not allowed.")
			Write(w, r, res)
			return
		}
		Write(w, r, a.Render(r.Context()))
	})
}

// Write copies res to w, omitting the body for HEAD requests.
func Write(w http.ResponseWriter, r *http.Request, res Response) {
	for k, vs := range res.Header {
		w.Header()[k] = vs
	}
	w.WriteHeader(res.Status)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(res.Body)
}
