package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simflow/portal-backend/internal/projects"
	"simflow/portal-backend/internal/requests"
	"simflow/portal-backend/internal/workflow"
)

type countingSource struct {
	projects []*projects.Project
	views    []requests.RequestView
	calls    int
}

func (s *countingSource) ListProjects(context.Context, string, string, int, int) ([]*projects.Project, error) {
	s.calls++
	return s.projects, nil
}

func (s *countingSource) ListRequests(context.Context, workflow.Actor, requests.ListQuery) ([]requests.RequestView, error) {
	return s.views, nil
}

func TestCompute(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	ps := []*projects.Project{
		{Status: workflow.ProjectActive, TotalHours: 100, UsedHours: 40, Deadline: &past},
		{Status: workflow.ProjectActive, TotalHours: 50, UsedHours: 5, Deadline: &future},
		{Status: workflow.ProjectOnHold, TotalHours: 50, UsedHours: 5, Deadline: &past},
	}
	alloc := 12.5
	rs := []requests.RequestView{
		{Request: &requests.Request{Status: workflow.RequestSubmitted, Priority: workflow.PriorityHigh}, NeedsAttention: true},
		{Request: &requests.Request{Status: workflow.RequestInProgress, Priority: workflow.PriorityLow, AllocatedHours: &alloc}},
	}

	s := Compute(ps, rs, now)

	assert.Equal(t, 3, s.Projects.Total)
	assert.Equal(t, 2, s.Projects.ByStatus[workflow.ProjectActive])
	assert.Equal(t, 2, s.Projects.ByCategory[workflow.CategoryActive])
	assert.Equal(t, 1, s.Projects.ByCategory[workflow.CategoryOnHold])
	assert.Equal(t, 200.0, s.Projects.TotalHours)
	assert.Equal(t, 50.0, s.Projects.UsedHours)
	assert.Equal(t, 150.0, s.Projects.RemainingHours)
	assert.Equal(t, 0.25, s.Projects.Utilization)
	assert.Equal(t, 1, s.Projects.Overdue)

	assert.Equal(t, 2, s.Requests.Total)
	assert.Equal(t, 1, s.Requests.NeedsAttention)
	assert.Equal(t, 1, s.Requests.ByPriority[workflow.PriorityHigh])
	assert.Equal(t, 12.5, s.Requests.AllocatedHours)
	assert.Equal(t, now, s.ComputedAt)
}

func TestSummaryIsCachedPerActor(t *testing.T) {
	src := &countingSource{projects: []*projects.Project{{Status: workflow.ProjectActive, TotalHours: 10}}}
	agg := NewAggregator(src, src, nil, DefaultAggregatorConfig())
	defer agg.Stop()

	ctx := context.Background()
	a := workflow.Actor{ID: "m-1", Role: workflow.RoleManager}
	b := workflow.Actor{ID: "u-1", Role: workflow.RoleEndUser}

	_, err := agg.Summary(ctx, a)
	require.NoError(t, err)
	_, err = agg.Summary(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	_, err = agg.Summary(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)

	agg.Invalidate()
	_, err = agg.Summary(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 3, src.calls)

	stats := agg.CacheStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(3), stats.Misses)
}

func TestCacheExpiry(t *testing.T) {
	c := NewAggregateCache(10 * time.Millisecond)
	defer c.Stop()

	c.Set("k", 1)
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	time.Sleep(20 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok)

	c.removeExpired()
	assert.Equal(t, 0, c.Size())
}
