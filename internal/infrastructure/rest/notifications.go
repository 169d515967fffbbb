package rest

import (
	"context"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
	"github.com/homeservice/marketplace-agent/internal/core/ports"
)

const notificationsPath = "/notifications"

type NotificationClient struct {
	c *Client
}

func NewNotificationClient(c *Client) *NotificationClient {
	return &NotificationClient{c: c}
}

var _ ports.NotificationAPI = (*NotificationClient)(nil)

func (n *NotificationClient) List(ctx context.Context) ([]domain.Notification, error) {
	var list []domain.Notification
	if err := n.c.get(ctx, "notifications.list", notificationsPath, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (n *NotificationClient) MarkRead(ctx context.Context, id domain.ID) error {
	return n.c.put(ctx, "notifications.read", idPath(notificationsPath, id, "read"), nil, nil)
}

func (n *NotificationClient) MarkAllRead(ctx context.Context) error {
	return n.c.put(ctx, "notifications.read_all", notificationsPath+"/mark-all-read", nil, nil)
}

func (n *NotificationClient) Delete(ctx context.Context, id domain.ID) error {
	return n.c.delete(ctx, "notifications.delete", idPath(notificationsPath, id))
}
