package domain

import "time"

// Notification is a single user-facing notification.
type Notification struct {
	ID               ID         `json:"id"`
	UserID           ID         `json:"userId,omitempty"`
	Title            string     `json:"title"`
	Message          string     `json:"message"`
	NotificationType string     `json:"notificationType,omitempty"`
	EntityType       string     `json:"entityType,omitempty"`
	EntityID         ID         `json:"entityId,omitempty"`
	Read             bool       `json:"read"`
	CreatedAt        time.Time  `json:"createdAt"`
	ReadAt           *time.Time `json:"readAt,omitempty"`
}

// CountUnread returns the number of entries with Read == false.
func CountUnread(list []Notification) int {
	n := 0
	for i := range list {
		if !list[i].Read {
			n++
		}
	}
	return n
}
