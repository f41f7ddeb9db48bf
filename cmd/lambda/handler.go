package main

import (
	"context"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"stocktool/internal/aggregate"
)

// Renderer produces the quotes response.
type Renderer interface {
	Render(ctx context.Context) aggregate.Response
}

// Handler adapts the aggregator to API Gateway proxy events.
type Handler struct {
	r       Renderer
	timeout time.Duration
}

func NewHandler(r Renderer, timeout time.Duration) *Handler {
	return &Handler{r: r, timeout: timeout}
}

func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	switch req.HTTPMethod {
	case "", http.MethodGet, http.MethodHead:
	case http.MethodOptions:
		return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent, Headers: corsHeaders()}, nil
	default:
		headers := corsHeaders()
		headers["Allow"] = "GET, HEAD"
		headers["Content-Type"] = "application/json; charset=utf-8"
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusMethodNotAllowed,
			Headers:    headers,
			Body:       `{"error":"Method not allowed."}`,
		}, nil
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	res := h.r.Render(ctx)
	headers := corsHeaders()
	for k := range res.Header {
		headers[k] = res.Header.Get(k)
	}
	out := events.APIGatewayProxyResponse{StatusCode: res.Status, Headers: headers}
	if req.HTTPMethod != http.MethodHead {
		out.Body = string(res.Body)
	}
	return out, nil
}

func corsHeaders() map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "GET,HEAD,OPTIONS",
	}
}
