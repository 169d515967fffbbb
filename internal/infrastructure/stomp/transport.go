// Package stomp implements the notification channel as STOMP 1.2 frames
// carried over a WebSocket.
package stomp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-stomp/stomp/v3"
	"github.com/rs/zerolog"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
	"github.com/homeservice/marketplace-agent/internal/core/ports"
)

const (
	defaultDialTimeout = 10 * time.Second
	disconnectTimeout  = 2 * time.Second
	messageBuffer      = 64
)

// Config describes the broker endpoint.
type Config struct {
	URL         string
	Heartbeat   time.Duration // 0 disables heart-beating
	DialTimeout time.Duration
}

// Transport dials authenticated STOMP sessions.
type Transport struct {
	cfg Config
	log zerolog.Logger
}

// NewTransport returns a transport for cfg.URL.
func NewTransport(cfg Config, log zerolog.Logger) *Transport {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	return &Transport{cfg: cfg, log: log}
}

var _ ports.ChannelTransport = (*Transport)(nil)

// Dial opens the WebSocket and performs the STOMP handshake. The token goes
// out both on the upgrade request and in the CONNECT frame.
func (t *Transport) Dial(ctx context.Context, token string) (ports.ChannelConn, error) {
	u, err := url.Parse(t.cfg.URL)
	if err != nil {
		return nil, &domain.TransportError{Op: "parse channel url", Err: err}
	}

	dialCtx, cancel := context.WithTimeout(ctx, t.cfg.DialTimeout)
	defer cancel()

	ws, _, err := websocket.Dial(dialCtx, t.cfg.URL, &websocket.DialOptions{
		HTTPHeader:   http.Header{"Authorization": {"Bearer " + token}},
		Subprotocols: []string{"v12.stomp", "v11.stomp"},
	})
	if err != nil {
		return nil, &domain.TransportError{Op: "websocket dial", Err: err}
	}

	connCtx, connCancel := context.WithCancel(context.Background())
	nc := websocket.NetConn(connCtx, ws, websocket.MessageText)

	// stomp.Connect has no context; closing the socket unblocks it.
	stop := context.AfterFunc(dialCtx, func() { _ = nc.Close() })
	sc, err := stomp.Connect(nc,
		stomp.ConnOpt.Host(u.Hostname()),
		stomp.ConnOpt.HeartBeat(t.cfg.Heartbeat, t.cfg.Heartbeat),
		stomp.ConnOpt.Header("Authorization", "Bearer "+token),
	)
	if !stop() {
		err = errors.Join(err, dialCtx.Err())
	}
	if err != nil {
		connCancel()
		_ = ws.CloseNow()
		return nil, &domain.TransportError{Op: "stomp connect", Err: err}
	}

	t.log.Debug().Str("url", t.cfg.URL).Msg("stomp session established")
	return &conn{
		stomp:  sc,
		ws:     ws,
		cancel: connCancel,
		msgs:   make(chan domain.ChannelMessage, messageBuffer),
		done:   make(chan struct{}),
	}, nil
}

// conn is one STOMP session. Messages is never closed; Done closes when the
// session ends for any reason.
type conn struct {
	stomp  *stomp.Conn
	ws     *websocket.Conn
	cancel context.CancelFunc

	msgs chan domain.ChannelMessage
	done chan struct{}

	mu       sync.Mutex
	err      error
	closing  bool
	finished sync.Once
}

func (c *conn) Subscribe(topic string) error {
	sub, err := c.stomp.Subscribe(topic, stomp.AckAuto)
	if err != nil {
		return &domain.TransportError{Op: "subscribe " + topic, Err: err}
	}
	go c.forward(topic, sub)
	return nil
}

func (c *conn) forward(topic string, sub *stomp.Subscription) {
	for msg := range sub.C {
		if msg.Err != nil {
			c.finish(msg.Err)
			return
		}
		select {
		case c.msgs <- domain.ChannelMessage{Topic: topic, Body: msg.Body}:
		case <-c.done:
			return
		}
	}
	c.finish(fmt.Errorf("subscription %s: %w", topic, domain.ErrChannelClosed))
}

func (c *conn) Messages() <-chan domain.ChannelMessage { return c.msgs }

func (c *conn) Done() <-chan struct{} { return c.done }

func (c *conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close sends DISCONNECT, waiting briefly for the receipt, then drops the
// socket. It is safe to call more than once.
func (c *conn) Close() error {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	c.mu.Unlock()

	disconnected := make(chan struct{})
	go func() {
		_ = c.stomp.Disconnect()
		close(disconnected)
	}()
	select {
	case <-disconnected:
	case <-time.After(disconnectTimeout):
	}
	c.finish(domain.ErrChannelClosed)
	return nil
}

func (c *conn) finish(err error) {
	c.finished.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
		c.cancel()
		_ = c.ws.Close(websocket.StatusNormalClosure, "")
	})
}
