package ports

import (
	"context"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
)

// ChannelTransport opens authenticated real-time connections.
type ChannelTransport interface {
	Dial(ctx context.Context, token string) (ChannelConn, error)
}

// ChannelConn is one live connection. Done is closed when the connection
// ends for any reason; Err then reports why (nil after Close). Messages may
// stay open after Done; consumers must watch both.
type ChannelConn interface {
	Subscribe(topic string) error
	Messages() <-chan domain.ChannelMessage
	Done() <-chan struct{}
	Err() error
	Close() error
}

// MessageSink accepts inbound frames for ordered processing.
type MessageSink interface {
	Enqueue(msg domain.ChannelMessage)
}
