package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dial(t *testing.T, m *Manager, userID string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := m.HandleConnection(w, r, userID)
		assert.NoError(t, err)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestSendToUser(t *testing.T) {
	m := NewManager(zap.NewNop())
	defer m.Close()

	conn := dial(t, m, "e-1")
	status := readMessage(t, conn)
	assert.Equal(t, MessageTypeStatus, status.Type)

	require.Eventually(t, func() bool { return m.IsConnected("e-1") }, time.Second, 10*time.Millisecond)
	require.NoError(t, m.SendToUser("e-1", Message{Type: MessageTypeNotification, Data: map[string]string{"title": "hi"}}))

	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypeNotification, msg.Type)
	assert.Equal(t, "e-1", msg.Target)
	assert.Equal(t, map[string]any{"title": "hi"}, msg.Data)

	assert.ErrorIs(t, m.SendToUser("someone-else", Message{Type: MessageTypeNotification}), ErrNotConnected)
}

func TestDisconnectUnregisters(t *testing.T) {
	m := NewManager(zap.NewNop())
	defer m.Close()

	conn := dial(t, m, "e-1")
	readMessage(t, conn)
	require.Eventually(t, func() bool { return m.GetConnectionCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return m.GetConnectionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestOriginCheck(t *testing.T) {
	m := NewManager(nil, "https://portal.example")
	defer m.Close()

	ok := httptest.NewRequest(http.MethodGet, "/ws", nil)
	ok.Header.Set("Origin", "https://portal.example")
	assert.True(t, m.upgrader.CheckOrigin(ok))

	bad := httptest.NewRequest(http.MethodGet, "/ws", nil)
	bad.Header.Set("Origin", "https://evil.example")
	assert.False(t, m.upgrader.CheckOrigin(bad))
}
