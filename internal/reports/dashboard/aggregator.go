// Package dashboard computes the portfolio summary shown on the landing page.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"simflow/portal-backend/internal/projects"
	"simflow/portal-backend/internal/requests"
	"simflow/portal-backend/internal/workflow"
)

const keyPrefix = "dashboard:"

// ProjectSource is the slice of projects.Service the aggregator reads.
type ProjectSource interface {
	ListProjects(ctx context.Context, status, category string, limit, offset int) ([]*projects.Project, error)
}

// RequestSource is the slice of requests.Service the aggregator reads.
type RequestSource interface {
	ListRequests(ctx context.Context, actor workflow.Actor, q requests.ListQuery) ([]requests.RequestView, error)
}

// ProjectSummary aggregates hour budgets across projects.
type ProjectSummary struct {
	Total          int                              `json:"total"`
	ByCategory     map[workflow.ProjectCategory]int `json:"by_category"`
	ByStatus       map[workflow.ProjectStatus]int   `json:"by_status"`
	TotalHours     float64                          `json:"total_hours"`
	UsedHours      float64                          `json:"used_hours"`
	RemainingHours float64                          `json:"remaining_hours"`
	Utilization    float64                          `json:"utilization"`
	Overdue        int                              `json:"overdue"`
}

// RequestSummary aggregates the requests visible to the caller.
type RequestSummary struct {
	Total          int                              `json:"total"`
	ByStatus       map[workflow.RequestStatus]int   `json:"by_status"`
	ByPriority     map[workflow.RequestPriority]int `json:"by_priority"`
	NeedsAttention int                              `json:"needs_attention"`
	Archived       int                              `json:"archived"`
	AllocatedHours float64                          `json:"allocated_hours"`
}

type Summary struct {
	Projects   ProjectSummary `json:"projects"`
	Requests   RequestSummary `json:"requests"`
	ComputedAt time.Time      `json:"computed_at"`
}

// AggregatorConfig configuration for the aggregator
type AggregatorConfig struct {
	CacheTTL time.Duration `json:"cache_ttl"`
}

// DefaultAggregatorConfig returns default configuration
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{CacheTTL: time.Minute}
}

// Aggregator handles dashboard data aggregation
type Aggregator struct {
	projects ProjectSource
	requests RequestSource
	cache    *AggregateCache
	logger   *zap.Logger
	now      func() time.Time
}

// NewAggregator creates a new aggregator
func NewAggregator(projects ProjectSource, requests RequestSource, logger *zap.Logger, config AggregatorConfig) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		projects: projects,
		requests: requests,
		cache:    NewAggregateCache(config.CacheTTL),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Summary returns the caller's dashboard. Request figures follow the
// caller's list scope, so entries are cached per actor.
func (a *Aggregator) Summary(ctx context.Context, actor workflow.Actor) (*Summary, error) {
	key := fmt.Sprintf("%s%s:%s", keyPrefix, actor.Role, actor.ID)
	value, err := a.cache.GetOrSet(key, func() (any, error) {
		ps, err := a.projects.ListProjects(ctx, "", "", 0, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to list projects: %w", err)
		}
		rs, err := a.requests.ListRequests(ctx, actor, requests.ListQuery{})
		if err != nil {
			return nil, fmt.Errorf("failed to list requests: %w", err)
		}
		a.logger.Debug("dashboard computed",
			zap.String("actor_id", actor.ID),
			zap.Int("projects", len(ps)),
			zap.Int("requests", len(rs)))
		return Compute(ps, rs, a.now()), nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*Summary), nil
}

// Invalidate drops every cached summary.
func (a *Aggregator) Invalidate() {
	a.cache.DeleteByPrefix(keyPrefix)
}

func (a *Aggregator) CacheStats() CacheStats {
	return a.cache.Stats()
}

func (a *Aggregator) Stop() {
	a.cache.Stop()
}

// Compute builds a summary from already-loaded rows.
func Compute(ps []*projects.Project, rs []requests.RequestView, now time.Time) *Summary {
	s := &Summary{
		Projects: ProjectSummary{
			ByCategory: map[workflow.ProjectCategory]int{},
			ByStatus:   map[workflow.ProjectStatus]int{},
		},
		Requests: RequestSummary{
			ByStatus:   map[workflow.RequestStatus]int{},
			ByPriority: map[workflow.RequestPriority]int{},
		},
		ComputedAt: now,
	}

	for _, p := range ps {
		s.Projects.Total++
		s.Projects.ByStatus[p.Status]++
		s.Projects.ByCategory[workflow.CategorizeProject(p.Status)]++
		s.Projects.TotalHours += p.TotalHours
		s.Projects.UsedHours += p.UsedHours
		if p.Status == workflow.ProjectActive && p.Deadline != nil && p.Deadline.Before(now) {
			s.Projects.Overdue++
		}
	}
	s.Projects.TotalHours = projects.Round(s.Projects.TotalHours)
	s.Projects.UsedHours = projects.Round(s.Projects.UsedHours)
	s.Projects.RemainingHours = projects.Round(s.Projects.TotalHours - s.Projects.UsedHours)
	if s.Projects.TotalHours > 0 {
		s.Projects.Utilization = projects.Round(s.Projects.UsedHours / s.Projects.TotalHours)
	}

	for _, v := range rs {
		s.Requests.Total++
		s.Requests.ByStatus[v.Status]++
		s.Requests.ByPriority[v.Priority]++
		if v.NeedsAttention {
			s.Requests.NeedsAttention++
		}
		if v.Archived {
			s.Requests.Archived++
		}
		s.Requests.AllocatedHours += v.Allocated()
	}
	s.Requests.AllocatedHours = projects.Round(s.Requests.AllocatedHours)
	return s
}
