package memory

import (
	"context"
	"fmt"
	"sort"

	"simflow/portal-backend/internal/requests"
	"simflow/portal-backend/internal/workflow"
)

type requestRepo struct {
	st *state
}

func (r *requestRepo) Create(_ context.Context, req *requests.Request) error {
	if _, ok := r.st.requests[req.ID]; ok {
		return fmt.Errorf("request %s already exists", req.ID)
	}
	if req.Version == 0 {
		req.Version = 1
	}
	r.st.requests[req.ID] = req.Clone()
	return nil
}

func (r *requestRepo) Get(_ context.Context, id string) (*requests.Request, error) {
	req, ok := r.st.requests[id]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", id, workflow.ErrNotFound)
	}
	return req.Clone(), nil
}

func (r *requestRepo) GetForUpdate(ctx context.Context, id string) (*requests.Request, error) {
	return r.Get(ctx, id)
}

func (r *requestRepo) Update(_ context.Context, req *requests.Request, expected int) error {
	stored, ok := r.st.requests[req.ID]
	if !ok {
		return fmt.Errorf("request %s: %w", req.ID, workflow.ErrNotFound)
	}
	if stored.Version != expected {
		return &workflow.ConflictError{Entity: workflow.EntityRequest, ID: req.ID, Expected: expected, Actual: stored.Version}
	}
	req.Version = expected + 1
	r.st.requests[req.ID] = req.Clone()
	return nil
}

func (r *requestRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.st.requests[id]; !ok {
		return fmt.Errorf("request %s: %w", id, workflow.ErrNotFound)
	}
	delete(r.st.requests, id)
	r.st.comments = dropByRequest(r.st.comments, id, func(c *requests.Comment) string { return c.RequestID })
	r.st.timeEntries = dropByRequest(r.st.timeEntries, id, func(e *requests.TimeEntry) string { return e.RequestID })
	for k, tc := range r.st.titleChanges {
		if tc.RequestID == id {
			delete(r.st.titleChanges, k)
		}
	}
	for k, d := range r.st.discussions {
		if d.RequestID == id {
			delete(r.st.discussions, k)
		}
	}
	return nil
}

func (r *requestRepo) List(_ context.Context, filter requests.ListFilter) ([]*requests.Request, error) {
	out := make([]*requests.Request, 0, len(r.st.requests))
	for _, req := range r.st.requests {
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, req.Status) {
			continue
		}
		if filter.ProjectID != "" && deref(req.ProjectID) != filter.ProjectID {
			continue
		}
		if filter.AssignedTo != "" && deref(req.AssignedTo) != filter.AssignedTo {
			continue
		}
		if filter.CreatedBy != "" && deref(req.CreatedBy) != filter.CreatedBy {
			continue
		}
		out = append(out, req.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *requestRepo) AddComment(_ context.Context, c *requests.Comment) error {
	cp := *c
	r.st.comments = append(r.st.comments, &cp)
	return nil
}

func (r *requestRepo) ListComments(_ context.Context, requestID string) ([]*requests.Comment, error) {
	return collect(r.st.comments, requestID, func(c *requests.Comment) string { return c.RequestID }), nil
}

func (r *requestRepo) AddTimeEntry(_ context.Context, e *requests.TimeEntry) error {
	cp := *e
	r.st.timeEntries = append(r.st.timeEntries, &cp)
	return nil
}

func (r *requestRepo) ListTimeEntries(_ context.Context, requestID string) ([]*requests.TimeEntry, error) {
	return collect(r.st.timeEntries, requestID, func(e *requests.TimeEntry) string { return e.RequestID }), nil
}

func (r *requestRepo) CreateTitleChange(_ context.Context, t *requests.TitleChangeRequest) error {
	r.st.titleChanges[t.ID] = t.Clone()
	return nil
}

func (r *requestRepo) GetTitleChange(_ context.Context, id string) (*requests.TitleChangeRequest, error) {
	t, ok := r.st.titleChanges[id]
	if !ok {
		return nil, fmt.Errorf("title change %s: %w", id, workflow.ErrNotFound)
	}
	return t.Clone(), nil
}

func (r *requestRepo) UpdateTitleChange(_ context.Context, t *requests.TitleChangeRequest) error {
	if _, ok := r.st.titleChanges[t.ID]; !ok {
		return fmt.Errorf("title change %s: %w", t.ID, workflow.ErrNotFound)
	}
	r.st.titleChanges[t.ID] = t.Clone()
	return nil
}

func (r *requestRepo) ListTitleChanges(_ context.Context, requestID string) ([]*requests.TitleChangeRequest, error) {
	var out []*requests.TitleChangeRequest
	for _, t := range r.st.titleChanges {
		if t.RequestID == requestID {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *requestRepo) CreateDiscussion(_ context.Context, d *requests.DiscussionRequest) error {
	r.st.discussions[d.ID] = d.Clone()
	return nil
}

func (r *requestRepo) PendingDiscussion(_ context.Context, requestID string) (*requests.DiscussionRequest, error) {
	var latest *requests.DiscussionRequest
	for _, d := range r.st.discussions {
		if d.RequestID != requestID || d.Status != requests.DiscussionPending {
			continue
		}
		if latest == nil || d.CreatedAt.After(latest.CreatedAt) {
			latest = d
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("pending discussion for %s: %w", requestID, workflow.ErrNotFound)
	}
	return latest.Clone(), nil
}

func (r *requestRepo) UpdateDiscussion(_ context.Context, d *requests.DiscussionRequest) error {
	if _, ok := r.st.discussions[d.ID]; !ok {
		return fmt.Errorf("discussion %s: %w", d.ID, workflow.ErrNotFound)
	}
	r.st.discussions[d.ID] = d.Clone()
	return nil
}

func (r *requestRepo) ListDiscussions(_ context.Context, requestID string) ([]*requests.DiscussionRequest, error) {
	var out []*requests.DiscussionRequest
	for _, d := range r.st.discussions {
		if d.RequestID == requestID {
			out = append(out, d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func collect[T any](rows []*T, requestID string, key func(*T) string) []*T {
	var out []*T
	for _, row := range rows {
		if key(row) == requestID {
			c := *row
			out = append(out, &c)
		}
	}
	return out
}

func dropByRequest[T any](rows []*T, requestID string, key func(*T) string) []*T {
	kept := rows[:0:0]
	for _, row := range rows {
		if key(row) != requestID {
			kept = append(kept, row)
		}
	}
	return kept
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
