package notifications

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is one in-app notification addressed to a user.
type Notification struct {
	ID          string            `json:"id" gorm:"type:uuid;primaryKey"`
	UserID      string            `json:"user_id" gorm:"not null;index:idx_notifications_user_created"`
	Type        string            `json:"type" gorm:"type:varchar(48);not null"`
	Title       string            `json:"title" gorm:"not null"`
	Message     string            `json:"message"`
	Link        string            `json:"link"`
	EntityType  string            `json:"entity_type" gorm:"type:varchar(16)"`
	EntityID    string            `json:"entity_id" gorm:"index"`
	TriggeredBy string            `json:"triggered_by"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	ReadAt      *time.Time        `json:"read_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at" gorm:"index:idx_notifications_user_created"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}

// ListFilter narrows a user's notification listing.
type ListFilter struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

// DeliveryStatus is the outcome of one channel for one notification.
type DeliveryStatus struct {
	Channel string `json:"channel"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

const (
	StatusDelivered = "DELIVERED"
	StatusSkipped   = "SKIPPED"
	StatusFailed    = "FAILED"
)

type UnreadCountResponse struct {
	Count int64 `json:"count"`
}

type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}
