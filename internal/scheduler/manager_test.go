package scheduler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"simflow/portal-backend/internal/auth"
	"simflow/portal-backend/internal/workflow"
)

type fakeMaintainer struct {
	expired    int
	reconciled int
	err        error
}

func (f *fakeMaintainer) ExpireOverdue(context.Context) (int, error) {
	return f.expired, f.err
}

func (f *fakeMaintainer) ReconcileUsedHours(context.Context) (int, error) {
	return f.reconciled, nil
}

func TestRegisterRejectsBadSpec(t *testing.T) {
	m := NewManager(zap.NewNop())
	err := m.Register(Job{Name: "broken", Spec: "every tuesday", Run: func(context.Context) (int, error) { return 0, nil }})
	assert.Error(t, err)

	require.NoError(t, m.Register(Job{Name: "ok", Spec: "*/5 * * * *", Run: func(context.Context) (int, error) { return 0, nil }}))
	assert.Error(t, m.Register(Job{Name: "ok"}))
}

func TestWorkflowJobsRunNow(t *testing.T) {
	fake := &fakeMaintainer{expired: 2}
	changes := 0
	m := NewManager(zap.NewNop())
	for _, job := range WorkflowJobs(fake, "0 * * * *", "30 3 * * *", func() { changes++ }) {
		require.NoError(t, m.Register(job))
	}

	status, err := m.RunNow(context.Background(), JobExpireOverdue)
	require.NoError(t, err)
	assert.Equal(t, 2, status.LastCount)
	assert.Equal(t, 1, status.Runs)
	assert.Empty(t, status.LastError)
	require.NotNil(t, status.LastRun)
	assert.Equal(t, 1, changes)

	status, err = m.RunNow(context.Background(), JobReconcileHours)
	require.NoError(t, err)
	assert.Equal(t, 0, status.LastCount)
	assert.Equal(t, 1, changes, "no change callback when nothing changed")

	_, err = m.RunNow(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestFailedRunIsRecorded(t *testing.T) {
	fake := &fakeMaintainer{err: errors.New("db down")}
	m := NewManager(zap.NewNop())
	for _, job := range WorkflowJobs(fake, "", "", nil) {
		require.NoError(t, m.Register(job))
	}

	status, err := m.RunNow(context.Background(), JobExpireOverdue)
	require.NoError(t, err)
	assert.Equal(t, "db down", status.LastError)
	assert.Nil(t, status.NextRun)
}

func TestStartStop(t *testing.T) {
	m := NewManager(zap.NewNop())
	require.NoError(t, m.Register(Job{Name: "tick", Spec: "0 * * * *", Run: func(context.Context) (int, error) { return 0, nil }}))
	require.NoError(t, m.Start())
	assert.Error(t, m.Start())

	statuses := m.Statuses()
	require.Len(t, statuses, 1)
	require.NotNil(t, statuses[0].NextRun)
	assert.True(t, statuses[0].NextRun.After(time.Now()))

	m.Stop()
	m.Stop()
}

func TestHandlerIsAdminOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := auth.NewTokenService("test-secret", "simflow-test", time.Hour)
	m := NewManager(zap.NewNop())
	for _, job := range WorkflowJobs(&fakeMaintainer{expired: 1}, "", "", nil) {
		require.NoError(t, m.Register(job))
	}

	router := gin.New()
	api := router.Group("/api/v1")
	api.Use(auth.Middleware(tokens, zap.NewNop()))
	NewHandler(m, zap.NewNop()).RegisterRoutes(api)

	do := func(role workflow.Role, method, url string) int {
		token, _, err := tokens.Issue(workflow.Actor{ID: "x", Name: "X", Role: role})
		require.NoError(t, err)
		req := httptest.NewRequest(method, url, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusForbidden, do(workflow.RoleManager, http.MethodGet, "/api/v1/admin/jobs"))
	assert.Equal(t, http.StatusOK, do(workflow.RoleAdmin, http.MethodGet, "/api/v1/admin/jobs"))
	assert.Equal(t, http.StatusOK, do(workflow.RoleAdmin, http.MethodPost, "/api/v1/admin/jobs/"+JobExpireOverdue+"/run"))
	assert.Equal(t, http.StatusNotFound, do(workflow.RoleAdmin, http.MethodPost, "/api/v1/admin/jobs/nope/run"))
}
