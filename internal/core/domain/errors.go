package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrTokenExpired         = errors.New("token expired")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("access forbidden")
	ErrLoginSuperseded      = errors.New("login superseded by a newer session change")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrChannelClosed        = errors.New("channel closed")
	ErrUnreadableToken      = errors.New("persisted token is unreadable")
)

// AuthError is returned for rejected credentials, expired tokens and
// insufficient roles. Message is the backend's text when there was one.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "authentication failed"
}

func (e *AuthError) Unwrap() error { return e.Err }

// TransportError wraps network and channel failures.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ValidationError carries per-field messages for input rejected before it
// reaches the backend.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, e.Fields[k])
	}
	return strings.Join(msgs, "; ")
}

// BackendError is a non-2xx backend response. Message is surfaced verbatim.
type BackendError struct {
	Status  int
	Message string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("backend responded with status %d", e.Status)
}

// Unwrap maps 401 and 403 to the matching sentinel so callers can use errors.Is.
func (e *BackendError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	switch e.Status {
	case 401:
		return ErrUnauthorized
	case 403:
		return ErrForbidden
	}
	return nil
}
