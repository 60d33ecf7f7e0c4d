package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"simflow/portal-backend/internal/requests"
	"simflow/portal-backend/internal/workflow"
)

type requestRepo struct {
	db *gorm.DB
}

func (r *requestRepo) Create(ctx context.Context, req *requests.Request) error {
	if req.Version == 0 {
		req.Version = 1
	}
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return nil
}

func (r *requestRepo) Get(ctx context.Context, id string) (*requests.Request, error) {
	var req requests.Request
	if err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "request", id)
	}
	return &req, nil
}

func (r *requestRepo) GetForUpdate(ctx context.Context, id string) (*requests.Request, error) {
	var req requests.Request
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&req, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "request", id)
	}
	return &req, nil
}

func (r *requestRepo) Update(ctx context.Context, req *requests.Request, expected int) error {
	db := r.db.WithContext(ctx)
	result := db.Model(&requests.Request{}).
		Where("id = ? AND version = ?", req.ID, expected).
		Updates(map[string]any{
			"title":            req.Title,
			"description":      req.Description,
			"vendor":           req.Vendor,
			"priority":         req.Priority,
			"created_by":       req.CreatedBy,
			"created_by_name":  req.CreatedByName,
			"status":           req.Status,
			"assigned_to":      req.AssignedTo,
			"assigned_to_name": req.AssignedToName,
			"assigned_by":      req.AssignedBy,
			"estimated_hours":  req.EstimatedHours,
			"allocated_hours":  req.AllocatedHours,
			"project_id":       req.ProjectID,
			"project_name":     req.ProjectName,
			"project_code":     req.ProjectCode,
			"updated_at":       req.UpdatedAt,
			"version":          expected + 1,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update request: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return versionConflict(db, &requests.Request{}, workflow.EntityRequest, req.ID, expected)
	}
	req.Version = expected + 1
	return nil
}

// Delete removes the request with its comments, time entries, title changes
// and discussions.
func (r *requestRepo) Delete(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	for _, child := range []any{
		&requests.Comment{},
		&requests.TimeEntry{},
		&requests.TitleChangeRequest{},
		&requests.DiscussionRequest{},
	} {
		if err := db.Where("request_id = ?", id).Delete(child).Error; err != nil {
			return fmt.Errorf("failed to delete request children: %w", err)
		}
	}
	result := db.Delete(&requests.Request{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete request: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("request %s: %w", id, workflow.ErrNotFound)
	}
	return nil
}

func (r *requestRepo) List(ctx context.Context, filter requests.ListFilter) ([]*requests.Request, error) {
	query := r.db.WithContext(ctx).Model(&requests.Request{})
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.ProjectID != "" {
		query = query.Where("project_id = ?", filter.ProjectID)
	}
	if filter.AssignedTo != "" {
		query = query.Where("assigned_to = ?", filter.AssignedTo)
	}
	if filter.CreatedBy != "" {
		query = query.Where("created_by = ?", filter.CreatedBy)
	}

	var out []*requests.Request
	if err := query.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return out, nil
}

func (r *requestRepo) AddComment(ctx context.Context, c *requests.Comment) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("failed to add comment: %w", err)
	}
	return nil
}

func (r *requestRepo) ListComments(ctx context.Context, requestID string) ([]*requests.Comment, error) {
	var out []*requests.Comment
	if err := r.byRequest(ctx, requestID).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return out, nil
}

func (r *requestRepo) AddTimeEntry(ctx context.Context, e *requests.TimeEntry) error {
	if err := r.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("failed to add time entry: %w", err)
	}
	return nil
}

func (r *requestRepo) ListTimeEntries(ctx context.Context, requestID string) ([]*requests.TimeEntry, error) {
	var out []*requests.TimeEntry
	if err := r.byRequest(ctx, requestID).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list time entries: %w", err)
	}
	return out, nil
}

func (r *requestRepo) CreateTitleChange(ctx context.Context, t *requests.TitleChangeRequest) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("failed to create title change: %w", err)
	}
	return nil
}

func (r *requestRepo) GetTitleChange(ctx context.Context, id string) (*requests.TitleChangeRequest, error) {
	var t requests.TitleChangeRequest
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "title change", id)
	}
	return &t, nil
}

func (r *requestRepo) UpdateTitleChange(ctx context.Context, t *requests.TitleChangeRequest) error {
	result := r.db.WithContext(ctx).Model(&requests.TitleChangeRequest{}).
		Where("id = ?", t.ID).
		Updates(map[string]any{
			"status":      t.Status,
			"reviewed_by": t.ReviewedBy,
			"reviewed_at": t.ReviewedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update title change: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("title change %s: %w", t.ID, workflow.ErrNotFound)
	}
	return nil
}

func (r *requestRepo) ListTitleChanges(ctx context.Context, requestID string) ([]*requests.TitleChangeRequest, error) {
	var out []*requests.TitleChangeRequest
	if err := r.byRequest(ctx, requestID).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list title changes: %w", err)
	}
	return out, nil
}

func (r *requestRepo) CreateDiscussion(ctx context.Context, d *requests.DiscussionRequest) error {
	if err := r.db.WithContext(ctx).Create(d).Error; err != nil {
		return fmt.Errorf("failed to create discussion: %w", err)
	}
	return nil
}

func (r *requestRepo) PendingDiscussion(ctx context.Context, requestID string) (*requests.DiscussionRequest, error) {
	var d requests.DiscussionRequest
	err := r.db.WithContext(ctx).
		Where("request_id = ? AND status = ?", requestID, requests.DiscussionPending).
		Order("created_at DESC").
		First(&d).Error
	if err != nil {
		return nil, notFound(err, "pending discussion for", requestID)
	}
	return &d, nil
}

func (r *requestRepo) UpdateDiscussion(ctx context.Context, d *requests.DiscussionRequest) error {
	result := r.db.WithContext(ctx).Model(&requests.DiscussionRequest{}).
		Where("id = ?", d.ID).
		Updates(map[string]any{
			"status":           d.Status,
			"resolved_by":      d.ResolvedBy,
			"resolved_hours":   d.ResolvedHours,
			"manager_response": d.ManagerResponse,
			"resolved_at":      d.ResolvedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update discussion: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("discussion %s: %w", d.ID, workflow.ErrNotFound)
	}
	return nil
}

func (r *requestRepo) ListDiscussions(ctx context.Context, requestID string) ([]*requests.DiscussionRequest, error) {
	var out []*requests.DiscussionRequest
	if err := r.byRequest(ctx, requestID).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list discussions: %w", err)
	}
	return out, nil
}

func (r *requestRepo) byRequest(ctx context.Context, requestID string) *gorm.DB {
	return r.db.WithContext(ctx).Where("request_id = ?", requestID).Order("created_at ASC")
}
