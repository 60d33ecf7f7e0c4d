package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"simflow/portal-backend/internal/projects"
	"simflow/portal-backend/internal/workflow"
)

type projectRepo struct {
	st *state
}

func (r *projectRepo) Create(_ context.Context, p *projects.Project) error {
	if _, ok := r.st.projects[p.ID]; ok {
		return fmt.Errorf("project %s already exists", p.ID)
	}
	for _, existing := range r.st.projects {
		if existing.Code == p.Code {
			return fmt.Errorf("project code %s already exists", p.Code)
		}
	}
	if p.Version == 0 {
		p.Version = 1
	}
	r.st.projects[p.ID] = p.Clone()
	return nil
}

func (r *projectRepo) Get(_ context.Context, id string) (*projects.Project, error) {
	p, ok := r.st.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, workflow.ErrNotFound)
	}
	return p.Clone(), nil
}

// GetForUpdate needs no lock: the unit of work already holds the store.
func (r *projectRepo) GetForUpdate(ctx context.Context, id string) (*projects.Project, error) {
	return r.Get(ctx, id)
}

func (r *projectRepo) Update(_ context.Context, p *projects.Project, expected int) error {
	stored, ok := r.st.projects[p.ID]
	if !ok {
		return fmt.Errorf("project %s: %w", p.ID, workflow.ErrNotFound)
	}
	if stored.Version != expected {
		return &workflow.ConflictError{Entity: workflow.EntityProject, ID: p.ID, Expected: expected, Actual: stored.Version}
	}
	p.Version = expected + 1
	r.st.projects[p.ID] = p.Clone()
	return nil
}

func (r *projectRepo) List(_ context.Context, filter projects.ListFilter) ([]*projects.Project, error) {
	out := make([]*projects.Project, 0, len(r.st.projects))
	for _, p := range r.st.projects {
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, p.Status) {
			continue
		}
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Code > out[j].Code
	})
	return window(out, filter.Limit, filter.Offset), nil
}

func (r *projectRepo) ListOverdue(_ context.Context, now time.Time) ([]*projects.Project, error) {
	var out []*projects.Project
	for _, p := range r.st.projects {
		if p.Status == workflow.ProjectActive && p.Deadline != nil && p.Deadline.Before(now) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(*out[j].Deadline) })
	return out, nil
}

func (r *projectRepo) NextCodeSequence(_ context.Context, year int) (int, error) {
	next := projects.FirstCodeSequence
	if last, ok := r.st.codeSeq[year]; ok {
		next = last + 1
	}
	r.st.codeSeq[year] = next
	return next, nil
}

func (r *projectRepo) AppendTransaction(_ context.Context, tx *projects.HourTransaction) error {
	if _, ok := r.st.projects[tx.ProjectID]; !ok {
		return fmt.Errorf("project %s: %w", tx.ProjectID, workflow.ErrNotFound)
	}
	c := *tx
	r.st.transactions = append(r.st.transactions, &c)
	return nil
}

func (r *projectRepo) ListTransactions(_ context.Context, projectID string) ([]*projects.HourTransaction, error) {
	var out []*projects.HourTransaction
	for _, tx := range r.st.transactions {
		if tx.ProjectID == projectID {
			c := *tx
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *projectRepo) AppendHistory(_ context.Context, h *projects.StatusHistory) error {
	c := *h
	r.st.history = append(r.st.history, &c)
	return nil
}

func (r *projectRepo) ListHistory(_ context.Context, projectID string) ([]*projects.StatusHistory, error) {
	var out []*projects.StatusHistory
	for _, h := range r.st.history {
		if h.ProjectID == projectID {
			c := *h
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *projectRepo) CreateMilestone(_ context.Context, m *projects.Milestone) error {
	if _, ok := r.st.projects[m.ProjectID]; !ok {
		return fmt.Errorf("project %s: %w", m.ProjectID, workflow.ErrNotFound)
	}
	c := *m
	r.st.milestones[m.ID] = &c
	return nil
}

func (r *projectRepo) GetMilestone(_ context.Context, id string) (*projects.Milestone, error) {
	m, ok := r.st.milestones[id]
	if !ok {
		return nil, fmt.Errorf("milestone %s: %w", id, workflow.ErrNotFound)
	}
	c := *m
	return &c, nil
}

func (r *projectRepo) UpdateMilestone(_ context.Context, m *projects.Milestone) error {
	if _, ok := r.st.milestones[m.ID]; !ok {
		return fmt.Errorf("milestone %s: %w", m.ID, workflow.ErrNotFound)
	}
	c := *m
	r.st.milestones[m.ID] = &c
	return nil
}

func (r *projectRepo) ListMilestones(_ context.Context, projectID string) ([]*projects.Milestone, error) {
	var out []*projects.Milestone
	for _, m := range r.st.milestones {
		if m.ProjectID == projectID {
			c := *m
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func containsStatus[S comparable](list []S, s S) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func window[T any](list []T, limit, offset int) []T {
	if offset >= len(list) {
		return []T{}
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}
