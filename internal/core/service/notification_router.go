package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
)

// PushReceiver accepts decoded private-topic notifications.
type PushReceiver interface {
	ReceivePush(ctx context.Context, n domain.Notification) bool
}

// IdentitySource reports who the session currently belongs to.
type IdentitySource interface {
	CurrentIdentity() *domain.Identity
}

// NotificationRouter turns inbound channel frames into notification state
// updates. Frames stamped with an owner other than the current identity
// belong to a torn-down connection and are dropped.
type NotificationRouter struct {
	receiver PushReceiver
	identity IdentitySource
	log      zerolog.Logger
}

// NewNotificationRouter returns a router delivering into receiver.
func NewNotificationRouter(receiver PushReceiver, identity IdentitySource, log zerolog.Logger) *NotificationRouter {
	return &NotificationRouter{receiver: receiver, identity: identity, log: log}
}

// Handle processes a single frame.
func (r *NotificationRouter) Handle(ctx context.Context, msg domain.ChannelMessage) error {
	current := r.identity.CurrentIdentity()
	if current == nil || current.ID != msg.Owner {
		r.log.Debug().Str("topic", msg.Topic).Msg("dropping frame from a previous session")
		return nil
	}

	switch msg.Kind {
	case domain.TopicPrivate:
		var n domain.Notification
		if err := json.Unmarshal(msg.Body, &n); err != nil {
			return fmt.Errorf("decode notification: %w", err)
		}
		if n.UserID == "" {
			n.UserID = msg.Owner
		}
		r.receiver.ReceivePush(ctx, n)
		return nil

	default:
		var m domain.RoleTopicMessage
		if err := json.Unmarshal(msg.Body, &m); err != nil {
			r.log.Info().Str("topic", msg.Topic).Bytes("body", msg.Body).Msg("role topic message")
			return nil
		}
		r.log.Info().Str("topic", msg.Topic).Str("type", m.Type).Msg("role topic message")
		return nil
	}
}
