package ports

import (
	"context"
	"time"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
)

// NotificationAPI is the REST surface backing the notification state.
type NotificationAPI interface {
	List(ctx context.Context) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id domain.ID) error
	MarkAllRead(ctx context.Context) error
	Delete(ctx context.Context, id domain.ID) error
}

// PushDeduplicator remembers notification ids that were already accepted.
type PushDeduplicator interface {
	IsDuplicate(ctx context.Context, id domain.ID) (bool, error)
	Mark(ctx context.Context, id domain.ID) error
}

// NotificationArchive keeps a durable copy of accepted pushes.
type NotificationArchive interface {
	Append(ctx context.Context, n domain.Notification) error
	Recent(ctx context.Context, owner domain.ID, since time.Time, limit int) ([]domain.Notification, error)
}
