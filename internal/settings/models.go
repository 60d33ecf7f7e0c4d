package settings

import (
	"time"

	"gorm.io/datatypes"
)

// Delivery channels a user can toggle.
const (
	ChannelInApp     = "in_app"
	ChannelWebSocket = "websocket"
	ChannelEmail     = "email"
	ChannelSNS       = "sns"
)

// KnownChannels lists every channel in display order.
var KnownChannels = []string{ChannelInApp, ChannelWebSocket, ChannelEmail, ChannelSNS}

// NotificationPreferences controls which channels deliver which
// notification types to one user.
type NotificationPreferences struct {
	UserID     string                              `gorm:"primaryKey" json:"user_id"`
	Channels   datatypes.JSONType[map[string]bool] `gorm:"type:jsonb" json:"channels"`
	MutedTypes datatypes.JSONType[[]string]        `gorm:"type:jsonb" json:"muted_types"`
	CreatedAt  time.Time                           `json:"created_at"`
	UpdatedAt  time.Time                           `json:"updated_at"`
}

func (NotificationPreferences) TableName() string {
	return "notification_preferences"
}

// DefaultPreferences is what a user gets before saving anything.
func DefaultPreferences(userID string) *NotificationPreferences {
	return &NotificationPreferences{
		UserID: userID,
		Channels: datatypes.NewJSONType(map[string]bool{
			ChannelInApp:     true,
			ChannelWebSocket: true,
			ChannelEmail:     false,
			ChannelSNS:       false,
		}),
		MutedTypes: datatypes.NewJSONType([]string{}),
	}
}

// Allows reports whether channel delivers notifications of type kind.
func (p *NotificationPreferences) Allows(channel, kind string) bool {
	enabled, ok := p.Channels.Data()[channel]
	if !ok {
		enabled = DefaultPreferences(p.UserID).Channels.Data()[channel]
	}
	if !enabled {
		return false
	}
	for _, muted := range p.MutedTypes.Data() {
		if muted == kind {
			return false
		}
	}
	return true
}

type UpdateNotificationsRequest struct {
	Channels   map[string]bool `json:"channels"`
	MutedTypes []string        `json:"muted_types"`
}
