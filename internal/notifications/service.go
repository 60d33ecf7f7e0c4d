package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"simflow/portal-backend/internal/events"
	"simflow/portal-backend/internal/settings"
)

// Preferences decides whether a channel may carry a notification type.
type Preferences interface {
	Allows(ctx context.Context, userID, channel, kind string) bool
}

// Service stores in-app notifications and fans them out to the enabled
// channels. It is the events.Notifier of the running server.
type Service struct {
	repo     Repository
	prefs    Preferences
	channels []Channel
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(repo Repository, prefs Preferences, logger *zap.Logger, channels ...Channel) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		prefs:    prefs,
		channels: channels,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var _ events.Notifier = (*Service)(nil)

// Notify stores the notification in the recipient's inbox and delivers it
// on every other enabled channel. Channel failures are joined into the
// returned error after all channels were tried.
func (s *Service) Notify(ctx context.Context, ev events.Notification) error {
	if ev.RecipientUserID == "" {
		return fmt.Errorf("notification %q has no recipient", ev.Type)
	}

	n := &Notification{
		ID:          uuid.New().String(),
		UserID:      ev.RecipientUserID,
		Type:        ev.Type,
		Title:       ev.Title,
		Message:     ev.Message,
		Link:        ev.Link,
		EntityType:  string(ev.EntityType),
		EntityID:    ev.EntityID,
		TriggeredBy: ev.TriggeredBy,
		CreatedAt:   s.now(),
	}

	var errs []error
	statuses := make([]DeliveryStatus, 0, len(s.channels)+1)

	if s.allows(ctx, n, settings.ChannelInApp) {
		n.Metadata = datatypes.JSONMap{"channels": s.enabledChannels(ctx, n)}
		if err := s.repo.Create(ctx, n); err != nil {
			errs = append(errs, err)
			statuses = append(statuses, DeliveryStatus{Channel: settings.ChannelInApp, Status: StatusFailed, Error: err.Error()})
		} else {
			statuses = append(statuses, DeliveryStatus{Channel: settings.ChannelInApp, Status: StatusDelivered})
		}
	}

	for _, ch := range s.channels {
		if !s.allows(ctx, n, ch.Name()) {
			continue
		}
		if err := ch.Deliver(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
			statuses = append(statuses, DeliveryStatus{Channel: ch.Name(), Status: StatusFailed, Error: err.Error()})
			continue
		}
		statuses = append(statuses, DeliveryStatus{Channel: ch.Name(), Status: StatusDelivered})
	}

	s.logger.Debug("notification processed",
		zap.String("notification_id", n.ID),
		zap.String("user_id", n.UserID),
		zap.String("type", n.Type),
		zap.Any("delivery", statuses))
	return errors.Join(errs...)
}

func (s *Service) allows(ctx context.Context, n *Notification, channel string) bool {
	if s.prefs == nil {
		return true
	}
	return s.prefs.Allows(ctx, n.UserID, channel, n.Type)
}

func (s *Service) enabledChannels(ctx context.Context, n *Notification) []string {
	out := []string{settings.ChannelInApp}
	for _, ch := range s.channels {
		if s.allows(ctx, n, ch.Name()) {
			out = append(out, ch.Name())
		}
	}
	return out
}

// GetUserNotifications lists the inbox, newest first.
func (s *Service) GetUserNotifications(ctx context.Context, userID string, filter ListFilter) ([]Notification, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(ctx, userID, filter)
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

// MarkNotificationAsRead is idempotent for already-read notifications.
func (s *Service) MarkNotificationAsRead(ctx context.Context, userID, notificationID string) error {
	return s.repo.MarkRead(ctx, userID, notificationID, s.now())
}

func (s *Service) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID, s.now())
}
