package projects

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"simflow/portal-backend/internal/events"
	"simflow/portal-backend/internal/workflow"
)

// FirstCodeSequence is the first project number handed out each year.
const FirstCodeSequence = 100001

// SystemActor performs scheduled transitions.
var SystemActor = workflow.Actor{ID: "system", Name: "System", Role: workflow.RoleAdmin}

// FormatCode renders a project code such as 100001-2025.
func FormatCode(seq, year int) string {
	return fmt.Sprintf("%06d-%d", seq, year)
}

type Service struct {
	uow     UnitOfWork
	emitter *events.Emitter
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(uow UnitOfWork, emitter *events.Emitter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		uow:     uow,
		emitter: emitter,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the service clock. Used by tests and the scheduler.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) CreateProject(ctx context.Context, actor workflow.Actor, req CreateProjectRequest) (*Project, error) {
	if err := workflow.Authorize(actor, workflow.ActionCreateProject, workflow.Subject{}); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, workflow.Invalid("name", "name is required")
	}
	if req.TotalHours < 0 {
		return nil, workflow.Invalid("total_hours", "must not be negative")
	}
	priority := workflow.ProjectPriorityMedium
	if req.Priority != "" {
		p, err := workflow.ParseProjectPriority(req.Priority)
		if err != nil {
			return nil, err
		}
		priority = p
	}

	now := s.now()
	status := workflow.ProjectPending
	if actor.Role.Privileged() {
		status = workflow.ProjectActive
	}
	project := &Project{
		ID:            uuid.NewString(),
		Name:          name,
		Description:   req.Description,
		TotalHours:    Round(req.TotalHours),
		Status:        status,
		Priority:      priority,
		Category:      req.Category,
		Deadline:      req.Deadline,
		CreatedBy:     actor.ID,
		CreatedByName: actor.Name,
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       1,
	}

	var batch events.Batch
	err := s.uow.Do(ctx, func(ctx context.Context, repo Repository) error {
		seq, err := repo.NextCodeSequence(ctx, now.Year())
		if err != nil {
			return fmt.Errorf("failed to allocate project code: %w", err)
		}
		project.Code = FormatCode(seq, now.Year())
		if err := repo.Create(ctx, project); err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}
		return repo.AppendHistory(ctx, &StatusHistory{
			ID:            uuid.NewString(),
			ProjectID:     project.ID,
			ToStatus:      status,
			ChangedBy:     actor.ID,
			ChangedByName: actor.Name,
			Reason:        "Project created",
			ChangedAt:     now,
		})
	})
	if err != nil {
		return nil, err
	}

	batch.Audit(events.AuditEntry{
		ActorID:    actor.ID,
		Action:     string(workflow.ActionCreateProject),
		EntityType: workflow.EntityProject,
		EntityID:   project.ID,
		Details: map[string]any{
			"code":        project.Code,
			"status":      project.Status,
			"total_hours": project.TotalHours,
		},
		Timestamp: now,
	})
	s.emitter.Emit(ctx, &batch)

	s.logger.Info("project created",
		zap.String("project_id", project.ID),
		zap.String("code", project.Code),
		zap.String("status", string(project.Status)))
	return project, nil
}

func (s *Service) GetProject(ctx context.Context, id string) (*Project, error) {
	var project *Project
	err := s.uow.View(ctx, func(ctx context.Context, repo Repository) error {
		p, err := repo.Get(ctx, id)
		project = p
		return err
	})
	return project, err
}

// ListProjects filters by status and, when given, by list category.
func (s *Service) ListProjects(ctx context.Context, status, category string, limit, offset int) ([]*Project, error) {
	filter := ListFilter{Limit: limit, Offset: offset}
	if status != "" {
		st, err := workflow.ParseProjectStatus(status)
		if err != nil {
			return nil, err
		}
		filter.Statuses = []workflow.ProjectStatus{st}
	}
	if category != "" {
		cat, err := workflow.ParseProjectCategory(category)
		if err != nil {
			return nil, err
		}
		inCategory := workflow.ProjectStatusesIn(cat)
		if len(filter.Statuses) == 0 {
			filter.Statuses = inCategory
		} else if workflow.CategorizeProject(filter.Statuses[0]) != cat {
			return []*Project{}, nil
		}
	}

	var out []*Project
	err := s.uow.View(ctx, func(ctx context.Context, repo Repository) error {
		list, err := repo.List(ctx, filter)
		out = list
		return err
	})
	return out, err
}

// TransitionInput carries a project status change.
type TransitionInput struct {
	Target          workflow.ProjectStatus
	Reason          string
	ExpectedVersion int
}

// TransitionStatus moves a project along its table. Checks run in order:
// existence, capability, table, reason, version. Nothing persists on failure.
func (s *Service) TransitionStatus(ctx context.Context, actor workflow.Actor, id string, in TransitionInput) (*Project, error) {
	var (
		project *Project
		batch   events.Batch
	)
	err := s.uow.Do(ctx, func(ctx context.Context, repo Repository) error {
		p, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := workflow.Authorize(actor, workflow.ActionChangeProjectStatus, workflow.Subject{}); err != nil {
			return err
		}
		if err := workflow.ValidateProjectTransition(p.Status, in.Target); err != nil {
			return err
		}
		if err := workflow.CheckReason(in.Target, in.Reason); err != nil {
			return err
		}
		if err := checkVersion(p, in.ExpectedVersion); err != nil {
			return err
		}

		from := p.Status
		now := s.now()
		p.Status = in.Target
		p.UpdatedAt = now
		if err := repo.Update(ctx, p, in.ExpectedVersion); err != nil {
			return err
		}
		if err := repo.AppendHistory(ctx, &StatusHistory{
			ID:            uuid.NewString(),
			ProjectID:     p.ID,
			FromStatus:    from,
			ToStatus:      in.Target,
			ChangedBy:     actor.ID,
			ChangedByName: actor.Name,
			Reason:        strings.TrimSpace(in.Reason),
			Metadata:      historyMetadata(p),
			ChangedAt:     now,
		}); err != nil {
			return fmt.Errorf("failed to record status history: %w", err)
		}

		batch.Notify(events.Notification{
			RecipientUserID: p.CreatedBy,
			Type:            events.TypeProjectStatusChanged,
			Title:           fmt.Sprintf("Project %s is now %s", p.Code, in.Target),
			Message:         statusMessage(from, in.Target, in.Reason),
			Link:            "/projects/" + p.ID,
			EntityType:      workflow.EntityProject,
			EntityID:        p.ID,
			TriggeredBy:     actor.ID,
		})
		batch.Audit(events.AuditEntry{
			ActorID:    actor.ID,
			Action:     string(workflow.ActionChangeProjectStatus),
			EntityType: workflow.EntityProject,
			EntityID:   p.ID,
			Details: map[string]any{
				"from":   from,
				"to":     in.Target,
				"reason": strings.TrimSpace(in.Reason),
			},
			Timestamp: now,
		})
		project = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emitter.Emit(ctx, &batch)
	return project, nil
}

// ExtendInput carries a budget extension.
type ExtendInput struct {
	Hours           float64
	Note            string
	ExpectedVersion int
}

func (s *Service) ExtendHours(ctx context.Context, actor workflow.Actor, id string, in ExtendInput) (*Project, error) {
	var (
		project *Project
		batch   events.Batch
	)
	err := s.uow.Do(ctx, func(ctx context.Context, repo Repository) error {
		p, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := workflow.Authorize(actor, workflow.ActionExtendProjectHours, workflow.Subject{}); err != nil {
			return err
		}
		switch p.Status {
		case workflow.ProjectCompleted, workflow.ProjectCancelled, workflow.ProjectArchived:
			return workflow.Invalid("status", "cannot extend hours of a %s project", p.Status)
		}
		if Round(in.Hours) <= 0 {
			return workflow.Invalid("hours", "extension must be positive, got %v", in.Hours)
		}
		if err := checkVersion(p, in.ExpectedVersion); err != nil {
			return err
		}

		now := s.now()
		tx, err := Extend(p, LedgerEntry{Hours: in.Hours, ActorID: actor.ID, Note: in.Note, At: now})
		if err != nil {
			return err
		}
		p.UpdatedAt = now
		if err := repo.Update(ctx, p, in.ExpectedVersion); err != nil {
			return err
		}
		if err := repo.AppendTransaction(ctx, tx); err != nil {
			return fmt.Errorf("failed to append ledger entry: %w", err)
		}

		batch.Notify(events.Notification{
			RecipientUserID: p.CreatedBy,
			Type:            events.TypeProjectHoursExtended,
			Title:           fmt.Sprintf("Project %s budget extended", p.Code),
			Message:         fmt.Sprintf("Total hours raised from %.2f to %.2f", tx.TotalBefore, tx.TotalAfter),
			Link:            "/projects/" + p.ID,
			EntityType:      workflow.EntityProject,
			EntityID:        p.ID,
			TriggeredBy:     actor.ID,
		})
		batch.Audit(events.AuditEntry{
			ActorID:    actor.ID,
			Action:     string(workflow.ActionExtendProjectHours),
			EntityType: workflow.EntityProject,
			EntityID:   p.ID,
			Details: map[string]any{
				"hours":        tx.Hours,
				"total_before": tx.TotalBefore,
				"total_after":  tx.TotalAfter,
			},
			Timestamp: now,
		})
		project = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emitter.Emit(ctx, &batch)
	return project, nil
}

func (s *Service) GetLedger(ctx context.Context, projectID string) ([]*HourTransaction, error) {
	var out []*HourTransaction
	err := s.uow.View(ctx, func(ctx context.Context, repo Repository) error {
		if _, err := repo.Get(ctx, projectID); err != nil {
			return err
		}
		txs, err := repo.ListTransactions(ctx, projectID)
		out = txs
		return err
	})
	return out, err
}

func (s *Service) GetHistory(ctx context.Context, projectID string) ([]*StatusHistory, error) {
	var out []*StatusHistory
	err := s.uow.View(ctx, func(ctx context.Context, repo Repository) error {
		if _, err := repo.Get(ctx, projectID); err != nil {
			return err
		}
		h, err := repo.ListHistory(ctx, projectID)
		out = h
		return err
	})
	return out, err
}

func (s *Service) AddMilestone(ctx context.Context, actor workflow.Actor, projectID string, req CreateMilestoneRequest) (*Milestone, error) {
	name := strings.TrimSpace(req.Name)
	var milestone *Milestone
	err := s.uow.Do(ctx, func(ctx context.Context, repo Repository) error {
		if _, err := repo.Get(ctx, projectID); err != nil {
			return err
		}
		if err := workflow.Authorize(actor, workflow.ActionManageMilestones, workflow.Subject{}); err != nil {
			return err
		}
		if name == "" {
			return workflow.Invalid("name", "name is required")
		}
		milestone = &Milestone{
			ID:        uuid.NewString(),
			ProjectID: projectID,
			Name:      name,
			DueDate:   req.DueDate,
			CreatedAt: s.now(),
		}
		return repo.CreateMilestone(ctx, milestone)
	})
	if err != nil {
		return nil, err
	}
	return milestone, nil
}

func (s *Service) CompleteMilestone(ctx context.Context, actor workflow.Actor, projectID, milestoneID string) (*Milestone, error) {
	var milestone *Milestone
	err := s.uow.Do(ctx, func(ctx context.Context, repo Repository) error {
		m, err := repo.GetMilestone(ctx, milestoneID)
		if err != nil {
			return err
		}
		if m.ProjectID != projectID {
			return fmt.Errorf("milestone %s: %w", milestoneID, workflow.ErrNotFound)
		}
		if err := workflow.Authorize(actor, workflow.ActionManageMilestones, workflow.Subject{}); err != nil {
			return err
		}
		if m.CompletedAt != nil {
			return workflow.Invalid("milestone", "already completed")
		}
		now := s.now()
		m.CompletedAt = &now
		milestone = m
		return repo.UpdateMilestone(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return milestone, nil
}

func (s *Service) ListMilestones(ctx context.Context, projectID string) ([]*Milestone, error) {
	var out []*Milestone
	err := s.uow.View(ctx, func(ctx context.Context, repo Repository) error {
		if _, err := repo.Get(ctx, projectID); err != nil {
			return err
		}
		m, err := repo.ListMilestones(ctx, projectID)
		out = m
		return err
	})
	return out, err
}

// ReconcileUsedHours recomputes usedHours from the ledger for every project
// and repairs drifted rows. It returns the number of repaired projects.
func (s *Service) ReconcileUsedHours(ctx context.Context) (int, error) {
	var ids []string
	err := s.uow.View(ctx, func(ctx context.Context, repo Repository) error {
		list, err := repo.List(ctx, ListFilter{})
		for _, p := range list {
			ids = append(ids, p.ID)
		}
		return err
	})
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, id := range ids {
		err := s.uow.Do(ctx, func(ctx context.Context, repo Repository) error {
			p, err := repo.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			txs, err := repo.ListTransactions(ctx, id)
			if err != nil {
				return err
			}
			used := UsedHoursFromLedger(txs)
			if used == Round(p.UsedHours) {
				return nil
			}
			s.logger.Warn("used hours drifted from ledger",
				zap.String("project_id", id),
				zap.Float64("stored", p.UsedHours),
				zap.Float64("ledger", used))
			expected := p.Version
			p.UsedHours = used
			p.UpdatedAt = s.now()
			repaired++
			return repo.Update(ctx, p, expected)
		})
		if err != nil {
			return repaired, fmt.Errorf("failed to reconcile project %s: %w", id, err)
		}
	}
	return repaired, nil
}

// ExpireOverdue moves ACTIVE projects whose deadline has passed to EXPIRED.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	now := s.now()
	var overdue []*Project
	err := s.uow.View(ctx, func(ctx context.Context, repo Repository) error {
		list, err := repo.ListOverdue(ctx, now)
		overdue = list
		return err
	})
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, p := range overdue {
		_, err := s.TransitionStatus(ctx, SystemActor, p.ID, TransitionInput{
			Target:          workflow.ProjectExpired,
			Reason:          "Deadline passed",
			ExpectedVersion: p.Version,
		})
		if err != nil {
			s.logger.Error("failed to expire project", zap.String("project_id", p.ID), zap.Error(err))
			continue
		}
		expired++
	}
	return expired, nil
}

func checkVersion(p *Project, expected int) error {
	if expected <= 0 {
		return workflow.Invalid("version", "expected version is required")
	}
	if p.Version != expected {
		return &workflow.ConflictError{Entity: workflow.EntityProject, ID: p.ID, Expected: expected, Actual: p.Version}
	}
	return nil
}

func historyMetadata(p *Project) datatypes.JSON {
	b, err := json.Marshal(map[string]any{
		"used_hours":  p.UsedHours,
		"total_hours": p.TotalHours,
	})
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

func statusMessage(from, to workflow.ProjectStatus, reason string) string {
	msg := fmt.Sprintf("Status changed from %s to %s", from, to)
	if r := strings.TrimSpace(reason); r != "" {
		msg += ": " + r
	}
	return msg
}
