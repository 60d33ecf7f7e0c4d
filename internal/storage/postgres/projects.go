package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"simflow/portal-backend/internal/projects"
	"simflow/portal-backend/internal/workflow"
)

type projectRepo struct {
	db *gorm.DB
}

func (r *projectRepo) Create(ctx context.Context, p *projects.Project) error {
	if p.Version == 0 {
		p.Version = 1
	}
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func (r *projectRepo) Get(ctx context.Context, id string) (*projects.Project, error) {
	var p projects.Project
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "project", id)
	}
	return &p, nil
}

func (r *projectRepo) GetForUpdate(ctx context.Context, id string) (*projects.Project, error) {
	var p projects.Project
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&p, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "project", id)
	}
	return &p, nil
}

func (r *projectRepo) Update(ctx context.Context, p *projects.Project, expected int) error {
	db := r.db.WithContext(ctx)
	result := db.Model(&projects.Project{}).
		Where("id = ? AND version = ?", p.ID, expected).
		Updates(map[string]any{
			"name":        p.Name,
			"description": p.Description,
			"total_hours": p.TotalHours,
			"used_hours":  p.UsedHours,
			"status":      p.Status,
			"priority":    p.Priority,
			"category":    p.Category,
			"deadline":    p.Deadline,
			"updated_at":  p.UpdatedAt,
			"version":     expected + 1,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update project: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return versionConflict(db, &projects.Project{}, workflow.EntityProject, p.ID, expected)
	}
	p.Version = expected + 1
	return nil
}

func (r *projectRepo) List(ctx context.Context, filter projects.ListFilter) ([]*projects.Project, error) {
	query := r.db.WithContext(ctx).Model(&projects.Project{})
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	query = query.Order("created_at DESC").Order("code DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var out []*projects.Project
	if err := query.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return out, nil
}

func (r *projectRepo) ListOverdue(ctx context.Context, now time.Time) ([]*projects.Project, error) {
	var out []*projects.Project
	err := r.db.WithContext(ctx).
		Where("status = ? AND deadline IS NOT NULL AND deadline < ?", workflow.ProjectActive, now).
		Order("deadline ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue projects: %w", err)
	}
	return out, nil
}

// NextCodeSequence bumps the per-year counter atomically, so concurrent
// creators never share a code.
func (r *projectRepo) NextCodeSequence(ctx context.Context, year int) (int, error) {
	var next int
	err := r.db.WithContext(ctx).Raw(
		`INSERT INTO project_code_sequences (year, last) VALUES (?, ?)
		 ON CONFLICT (year) DO UPDATE SET last = project_code_sequences.last + 1
		 RETURNING last`,
		year, projects.FirstCodeSequence,
	).Scan(&next).Error
	if err != nil {
		return 0, fmt.Errorf("failed to allocate project code: %w", err)
	}
	return next, nil
}

func (r *projectRepo) AppendTransaction(ctx context.Context, tx *projects.HourTransaction) error {
	if err := r.db.WithContext(ctx).Create(tx).Error; err != nil {
		return fmt.Errorf("failed to append hour transaction: %w", err)
	}
	return nil
}

func (r *projectRepo) ListTransactions(ctx context.Context, projectID string) ([]*projects.HourTransaction, error) {
	var out []*projects.HourTransaction
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list hour transactions: %w", err)
	}
	return out, nil
}

func (r *projectRepo) AppendHistory(ctx context.Context, h *projects.StatusHistory) error {
	if err := r.db.WithContext(ctx).Create(h).Error; err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}
	return nil
}

func (r *projectRepo) ListHistory(ctx context.Context, projectID string) ([]*projects.StatusHistory, error) {
	var out []*projects.StatusHistory
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("changed_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list status history: %w", err)
	}
	return out, nil
}

func (r *projectRepo) CreateMilestone(ctx context.Context, m *projects.Milestone) error {
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to create milestone: %w", err)
	}
	return nil
}

func (r *projectRepo) GetMilestone(ctx context.Context, id string) (*projects.Milestone, error) {
	var m projects.Milestone
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "milestone", id)
	}
	return &m, nil
}

func (r *projectRepo) UpdateMilestone(ctx context.Context, m *projects.Milestone) error {
	result := r.db.WithContext(ctx).Model(&projects.Milestone{}).
		Where("id = ?", m.ID).
		Updates(map[string]any{
			"name":         m.Name,
			"due_date":     m.DueDate,
			"completed_at": m.CompletedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update milestone: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("milestone %s: %w", m.ID, workflow.ErrNotFound)
	}
	return nil
}

func (r *projectRepo) ListMilestones(ctx context.Context, projectID string) ([]*projects.Milestone, error) {
	var out []*projects.Milestone
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list milestones: %w", err)
	}
	return out, nil
}
