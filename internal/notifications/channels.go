package notifications

import (
	"context"
	"time"

	"simflow/portal-backend/internal/notifications/websocket"
	"simflow/portal-backend/internal/settings"
)

// Channel delivers a stored notification outside the in-app inbox.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, n *Notification) error
}

// WebSocketChannel pushes to the user's open browser sessions.
type WebSocketChannel struct {
	manager *websocket.Manager
}

func NewWebSocketChannel(manager *websocket.Manager) *WebSocketChannel {
	return &WebSocketChannel{manager: manager}
}

func (c *WebSocketChannel) Name() string {
	return settings.ChannelWebSocket
}

// Deliver treats an offline user as delivered: the inbox still has the row.
func (c *WebSocketChannel) Deliver(_ context.Context, n *Notification) error {
	err := c.manager.SendToUser(n.UserID, websocket.Message{
		Type:      websocket.MessageTypeNotification,
		Data:      n,
		Timestamp: time.Now().UTC(),
	})
	if err == websocket.ErrNotConnected {
		return nil
	}
	return err
}
