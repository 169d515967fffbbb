package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
	"github.com/homeservice/marketplace-agent/internal/core/ports"
)

const (
	collectionNotifications = "notification_archive"
	defaultRecentLimit      = 50
)

// NotificationArchive keeps a local history of every push the agent
// accepted, independent of what the backend later returns from its list.
type NotificationArchive struct {
	col *mongo.Collection
	now func() time.Time
}

// NewNotificationArchive creates a NotificationArchive on db.
func NewNotificationArchive(db *mongo.Database) *NotificationArchive {
	return &NotificationArchive{col: db.Collection(collectionNotifications), now: time.Now}
}

var _ ports.NotificationArchive = (*NotificationArchive)(nil)

type archivedNotification struct {
	NotificationID   string     `bson:"notification_id"`
	OwnerID          string     `bson:"owner_id"`
	Title            string     `bson:"title"`
	Message          string     `bson:"message"`
	NotificationType string     `bson:"notification_type,omitempty"`
	EntityType       string     `bson:"entity_type,omitempty"`
	EntityID         string     `bson:"entity_id,omitempty"`
	Read             bool       `bson:"read"`
	CreatedAt        *time.Time `bson:"created_at,omitempty"`
	ReceivedAt       time.Time  `bson:"received_at"`
}

func toArchived(n domain.Notification, receivedAt time.Time) archivedNotification {
	doc := archivedNotification{
		NotificationID:   n.ID.String(),
		OwnerID:          n.UserID.String(),
		Title:            n.Title,
		Message:          n.Message,
		NotificationType: n.NotificationType,
		EntityType:       n.EntityType,
		EntityID:         n.EntityID.String(),
		Read:             n.Read,
		ReceivedAt:       receivedAt.UTC(),
	}
	if !n.CreatedAt.IsZero() {
		created := n.CreatedAt.UTC()
		doc.CreatedAt = &created
	}
	return doc
}

func (d archivedNotification) toDomain() domain.Notification {
	n := domain.Notification{
		ID:               domain.ID(d.NotificationID),
		UserID:           domain.ID(d.OwnerID),
		Title:            d.Title,
		Message:          d.Message,
		NotificationType: d.NotificationType,
		EntityType:       d.EntityType,
		EntityID:         domain.ID(d.EntityID),
		Read:             d.Read,
	}
	if d.CreatedAt != nil {
		n.CreatedAt = *d.CreatedAt
	}
	return n
}

// Append stores n. The read flag is the one it had when it arrived.
func (a *NotificationArchive) Append(ctx context.Context, n domain.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := a.col.InsertOne(ctx, toArchived(n, a.now())); err != nil {
		return fmt.Errorf("archive notification: %w", err)
	}
	return nil
}

// Recent returns owner's archived notifications received at or after since,
// newest first.
func (a *NotificationArchive) Recent(ctx context.Context, owner domain.ID, since time.Time, limit int) ([]domain.Notification, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if limit <= 0 {
		limit = defaultRecentLimit
	}
	filter := bson.M{"owner_id": owner.String()}
	if !since.IsZero() {
		filter["received_at"] = bson.M{"$gte": since.UTC()}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "received_at", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := a.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find archived notifications: %w", err)
	}
	defer cur.Close(ctx)

	var docs []archivedNotification
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode archived notifications: %w", err)
	}
	out := make([]domain.Notification, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

// EnsureIndexes creates necessary indexes on the archive collection.
func (a *NotificationArchive) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "received_at", Value: -1}}},
		{Keys: bson.D{{Key: "notification_id", Value: 1}}},
	}

	_, err := a.col.Indexes().CreateMany(ctx, indexes)
	return err
}
