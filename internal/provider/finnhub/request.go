package finnhub

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"

	"stocktool/internal/httpx"
)

var (
	// ErrUnauthorized is returned for 401/403 responses.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRateLimited is returned for 429 responses.
	ErrRateLimited = errors.New("rate limited")
)

// get performs a GET on path with the client's query merged with query and
// decodes a 200 JSON body into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any, opts ...ClientOption) error {
	var override = &Client{
		baseURL:    c.baseURL,
		httpClient: c.httpClient,
		header:     c.header.Clone(),
		query:      c.query,
	}
	for _, opt := range opts {
		opt(override)
	}

	q := maps.Clone(override.query)
	if q == nil {
		q = url.Values{}
	}
	for key, values := range query {
		for _, value := range values {
			q.Add(key, value)
		}
	}

	u := fmt.Sprintf("%s%s?%s", override.baseURL, path, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header = override.header
	req.Header.Set("Accept", "application/json")

	res, err := override.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", httpx.RedactURL(err))
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		break

	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized

	case http.StatusTooManyRequests:
		return ErrRateLimited

	default:
		return httpx.CheckStatus(res)
	}

	return httpx.DecodeJSON(res.Body, out)
}
