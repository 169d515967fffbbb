package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
)

const maxErrorBody = 64 << 10

// Client performs JSON calls against the backend base URL.
type Client struct {
	baseURL string
	doer    Doer
}

// NewClient returns a client for baseURL (e.g. http://localhost:8080/api).
func NewClient(baseURL string, doer Doer) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("rest: invalid base url %q", baseURL)
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), doer: doer}, nil
}

type messageResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// call sends in as JSON (when non-nil) and decodes a 2xx body into out (when
// non-nil). Non-2xx responses become *domain.BackendError with the backend's
// message verbatim; network failures become *domain.TransportError.
func (c *Client) call(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(withOperation(ctx, op), method, target, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, op, out)
}

func (c *Client) send(req *http.Request, op string, out any) error {
	resp, err := c.doer.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return ctxErr
		}
		return &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return backendError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.TransportError{Op: op, Err: err}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func backendError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(raw))

	var m messageResponse
	if json.Unmarshal(raw, &m) == nil {
		switch {
		case m.Message != "":
			msg = m.Message
		case m.Error != "":
			msg = m.Error
		}
	}
	return &domain.BackendError{Status: resp.StatusCode, Message: msg}
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) error {
	return c.call(ctx, op, http.MethodGet, path, query, nil, out)
}

func (c *Client) post(ctx context.Context, op, path string, in, out any) error {
	return c.call(ctx, op, http.MethodPost, path, nil, in, out)
}

func (c *Client) put(ctx context.Context, op, path string, in, out any) error {
	return c.call(ctx, op, http.MethodPut, path, nil, in, out)
}

func (c *Client) delete(ctx context.Context, op, path string) error {
	return c.call(ctx, op, http.MethodDelete, path, nil, nil, nil)
}

// idPath joins prefix and an escaped id.
func idPath(prefix string, id domain.ID, suffix ...string) string {
	p := prefix + "/" + url.PathEscape(id.String())
	for _, s := range suffix {
		p += "/" + s
	}
	return p
}
