package settings

import (
	"context"
	"errors"
	"slices"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"simflow/portal-backend/internal/workflow"
)

type Service struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger}
}

// GetNotifications returns the saved preferences or the defaults.
func (s *Service) GetNotifications(ctx context.Context, userID string) (*NotificationPreferences, error) {
	prefs, err := s.repo.GetNotifications(ctx, userID)
	if errors.Is(err, workflow.ErrNotFound) {
		return DefaultPreferences(userID), nil
	}
	return prefs, err
}

// UpdateNotifications merges req into the user's preferences.
func (s *Service) UpdateNotifications(ctx context.Context, userID string, req UpdateNotificationsRequest) (*NotificationPreferences, error) {
	for channel := range req.Channels {
		if !slices.Contains(KnownChannels, channel) {
			return nil, workflow.Invalid("channels", "%v: channel %q", workflow.ErrUnknownValue, channel)
		}
	}

	prefs, err := s.GetNotifications(ctx, userID)
	if err != nil {
		return nil, err
	}
	channels := prefs.Channels.Data()
	if channels == nil {
		channels = map[string]bool{}
	}
	for channel, enabled := range req.Channels {
		channels[channel] = enabled
	}
	prefs.Channels = datatypes.NewJSONType(channels)
	if req.MutedTypes != nil {
		muted := slices.Clone(req.MutedTypes)
		slices.Sort(muted)
		prefs.MutedTypes = datatypes.NewJSONType(slices.Compact(muted))
	}
	prefs.UpdatedAt = time.Now().UTC()

	if err := s.repo.SaveNotifications(ctx, prefs); err != nil {
		return nil, err
	}
	s.logger.Info("notification preferences updated", zap.String("user_id", userID))
	return prefs, nil
}

// Allows reports whether channel may deliver notifications of type kind to
// userID. Lookup failures fall back to the defaults.
func (s *Service) Allows(ctx context.Context, userID, channel, kind string) bool {
	prefs, err := s.GetNotifications(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to load notification preferences",
			zap.String("user_id", userID),
			zap.Error(err))
		prefs = DefaultPreferences(userID)
	}
	return prefs.Allows(channel, kind)
}
