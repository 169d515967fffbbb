// Package rest holds the outgoing request pipeline and the typed clients for
// the marketplace backend.
package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const RequestIDHeader = "X-Request-ID"

// Doer sends a single request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoerFunc adapts a function to Doer.
type DoerFunc func(req *http.Request) (*http.Response, error)

func (f DoerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

// Middleware decorates a Doer.
type Middleware func(next Doer) Doer

// Chain wraps base so that mws[0] runs first.
func Chain(base Doer, mws ...Middleware) Doer {
	for i := len(mws) - 1; i >= 0; i-- {
		base = mws[i](base)
	}
	return base
}

// BearerToken attaches the token returned by token at the moment the
// request is sent. An empty token sends the request unauthenticated.
func BearerToken(token func() string) Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			if t := token(); t != "" && req.Header.Get("Authorization") == "" {
				req = req.Clone(req.Context())
				req.Header.Set("Authorization", "Bearer "+t)
			}
			return next.Do(req)
		})
	}
}

// OnUnauthorized calls fn for every 401 response. The response is still
// returned to the caller.
func OnUnauthorized(fn func()) Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			resp, err := next.Do(req)
			if err == nil && resp.StatusCode == http.StatusUnauthorized {
				fn()
			}
			return resp, err
		})
	}
}

// RequestID stamps every request with a fresh X-Request-ID unless one is set.
func RequestID() Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get(RequestIDHeader) == "" {
				req = req.Clone(req.Context())
				req.Header.Set(RequestIDHeader, uuid.NewString())
			}
			return next.Do(req)
		})
	}
}

// Observer receives one sample per completed request. status is 0 when the
// request never produced a response.
type Observer func(operation, method string, status int, elapsed time.Duration)

// Instrument reports every request to observe.
func Instrument(observe Observer) Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.Do(req)
			status := 0
			if err == nil {
				status = resp.StatusCode
			}
			observe(Operation(req.Context()), req.Method, status, time.Since(start))
			return resp, err
		})
	}
}

// Logging writes one debug line per request, and a warning for failures.
func Logging(log zerolog.Logger) Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.Do(req)
			ev := log.Debug()
			if err != nil {
				ev = log.Warn().Err(err)
			} else {
				if resp.StatusCode >= http.StatusInternalServerError {
					ev = log.Warn()
				}
				ev = ev.Int("status", resp.StatusCode)
			}
			ev.Str("op", Operation(req.Context())).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("request_id", req.Header.Get(RequestIDHeader)).
				Dur("elapsed", time.Since(start)).
				Msg("backend call")
			return resp, err
		})
	}
}

type operationKey struct{}

func withOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, operationKey{}, op)
}

// Operation returns the client operation name carried by ctx, e.g.
// "notifications.list".
func Operation(ctx context.Context) string {
	op, _ := ctx.Value(operationKey{}).(string)
	return op
}
