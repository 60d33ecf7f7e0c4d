package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"simflow/portal-backend/internal/config"
	"simflow/portal-backend/internal/scheduler"
)

func testConfig() *config.Config {
	return &config.Config{
		Storage:       config.StorageConfig{Driver: config.StorageMemory},
		Auth:          config.AuthConfig{JWTSecret: "test-secret", Issuer: "simflow-test", TokenTTLHours: 1, AllowDevTokens: true},
		Workflow:      config.WorkflowConfig{ArchiveAfterDays: 30},
		Notifications: config.NotificationsConfig{WebSocketEnabled: true},
		Scheduler:     config.SchedulerConfig{ExpirySpec: "0 * * * *", ReconcileSpec: "30 3 * * *"},
	}
}

type client struct {
	t      *testing.T
	router *gin.Engine
}

func (c *client) do(method, path, token string, body any) (int, map[string]any) {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(c.t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)

	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w.Code, out
}

func (c *client) token(userID, role string) string {
	c.t.Helper()
	code, body := c.do(http.MethodPost, "/auth/token", "", gin.H{"user_id": userID, "name": userID, "role": role})
	require.Equal(c.t, http.StatusOK, code, body)
	return body["token"].(string)
}

func TestBuildInMemory(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, err := Build(context.Background(), Deps{Config: testConfig(), Logger: zap.NewNop()})
	require.NoError(t, err)
	defer app.Close()

	c := &client{t: t, router: app.Router()}

	code, _ := c.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = c.do(http.MethodGet, "/api/v1/projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	manager := c.token("m-1", "Manager")
	admin := c.token("a-1", "Admin")

	code, me := c.do(http.MethodGet, "/auth/me", manager, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Manager", me["role"])
	assert.Equal(t, true, me["privileged"])

	code, project := c.do(http.MethodPost, "/api/v1/projects", manager, gin.H{"name": "Rotor", "total_hours": 80})
	require.Equal(t, http.StatusCreated, code, project)
	assert.NotEmpty(t, project["code"])

	code, audit := c.do(http.MethodGet, "/api/v1/audit?action=create_project", admin, nil)
	require.Equal(t, http.StatusOK, code, audit)
	assert.Equal(t, float64(1), audit["total"])

	code, _ = c.do(http.MethodGet, "/api/v1/audit", manager, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, dash := c.do(http.MethodGet, "/api/v1/reports/dashboard", manager, nil)
	require.Equal(t, http.StatusOK, code, dash)
	assert.Equal(t, float64(80), dash["projects"].(map[string]any)["total_hours"])

	code, prefs := c.do(http.MethodGet, "/api/v1/settings/notifications", manager, nil)
	assert.Equal(t, http.StatusOK, code, prefs)

	code, job := c.do(http.MethodPost, "/api/v1/admin/jobs/"+scheduler.JobExpireOverdue+"/run", admin, nil)
	require.Equal(t, http.StatusOK, code, job)
	assert.Equal(t, float64(0), job["last_count"])
}

func TestDevTokensDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	cfg.Auth.AllowDevTokens = false
	app, err := Build(context.Background(), Deps{Config: cfg, Logger: zap.NewNop()})
	require.NoError(t, err)
	defer app.Close()

	c := &client{t: t, router: app.Router()}
	code, _ := c.do(http.MethodPost, "/auth/token", "", gin.H{"user_id": "x", "role": "Admin"})
	assert.Equal(t, http.StatusNotFound, code)
}
