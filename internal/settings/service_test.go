package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simflow/portal-backend/internal/workflow"
)

func TestDefaultsBeforeSave(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil)
	prefs, err := svc.GetNotifications(context.Background(), "u-1")
	require.NoError(t, err)
	assert.True(t, prefs.Allows(ChannelInApp, "comment_added"))
	assert.True(t, prefs.Allows(ChannelWebSocket, "comment_added"))
	assert.False(t, prefs.Allows(ChannelEmail, "comment_added"))
}

func TestUpdateNotificationsMerges(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository(), nil)

	_, err := svc.UpdateNotifications(ctx, "u-1", UpdateNotificationsRequest{
		Channels: map[string]bool{ChannelEmail: true},
	})
	require.NoError(t, err)
	prefs, err := svc.UpdateNotifications(ctx, "u-1", UpdateNotificationsRequest{
		Channels:   map[string]bool{ChannelWebSocket: false},
		MutedTypes: []string{"comment_added", "comment_added", "request_assigned"},
	})
	require.NoError(t, err)

	assert.True(t, svc.Allows(ctx, "u-1", ChannelEmail, "request_status_changed"))
	assert.False(t, svc.Allows(ctx, "u-1", ChannelWebSocket, "request_status_changed"))
	assert.False(t, svc.Allows(ctx, "u-1", ChannelInApp, "comment_added"))
	assert.Equal(t, []string{"comment_added", "request_assigned"}, prefs.MutedTypes.Data())

	// Other users keep the defaults.
	assert.False(t, svc.Allows(ctx, "u-2", ChannelEmail, "request_status_changed"))
}

func TestUpdateNotificationsRejectsUnknownChannel(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil)
	_, err := svc.UpdateNotifications(context.Background(), "u-1", UpdateNotificationsRequest{
		Channels: map[string]bool{"carrier_pigeon": true},
	})
	var v *workflow.ValidationError
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "channels", v.Field)
}
