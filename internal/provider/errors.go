package provider

import "fmt"

// Kind classifies a provider failure.
type Kind int

const (
	// KindTransport covers network errors, bad statuses and malformed bodies.
	KindTransport Kind = iota
	// KindUpstream is an explicit error reported in the upstream payload.
	KindUpstream
	// KindRateLimited is a rate-limit status or note from the upstream.
	KindRateLimited
	// KindNoData is a sentinel "nothing to report" payload, e.g. a zero price.
	KindNoData
)

func (k Kind) String() string {
	switch k {
	case KindUpstream:
		return "upstream"
	case KindRateLimited:
		return "rate_limited"
	case KindNoData:
		return "no_data"
	default:
		return "transport"
	}
}

// Error is the normalized failure returned by provider adapters. Msg is safe
// to show to clients; Err keeps the underlying cause for logs.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func NoData(msg string) *Error { return &Error{Kind: KindNoData, Msg: msg} }

func Upstream(msg string) *Error { return &Error{Kind: KindUpstream, Msg: msg} }

func RateLimited(msg string, err error) *Error {
	return &Error{Kind: KindRateLimited, Msg: msg, Err: err}
}
