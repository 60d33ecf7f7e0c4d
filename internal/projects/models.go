package projects

import (
	"time"

	"gorm.io/datatypes"

	"simflow/portal-backend/internal/workflow"
)

// Project is an hour budget that simulation requests draw from.
type Project struct {
	ID            string                   `gorm:"type:uuid;primaryKey" json:"id"`
	Code          string                   `gorm:"uniqueIndex;not null" json:"code"`
	Name          string                   `gorm:"not null" json:"name"`
	Description   string                   `json:"description"`
	TotalHours    float64                  `gorm:"not null" json:"total_hours"`
	UsedHours     float64                  `gorm:"not null;default:0" json:"used_hours"`
	Status        workflow.ProjectStatus   `gorm:"type:varchar(32);not null;index" json:"status"`
	Priority      workflow.ProjectPriority `gorm:"type:varchar(16);not null" json:"priority"`
	Category      string                   `json:"category"`
	Deadline      *time.Time               `json:"deadline,omitempty"`
	CreatedBy     string                   `gorm:"not null;index" json:"created_by"`
	CreatedByName string                   `json:"created_by_name"`
	CreatedAt     time.Time                `json:"created_at"`
	UpdatedAt     time.Time                `json:"updated_at"`
	Version       int                      `gorm:"not null;default:1" json:"version"`
}

func (Project) TableName() string {
	return "projects"
}

// RemainingHours is the budget still available for allocations.
func (p *Project) RemainingHours() float64 {
	return Round(p.TotalHours - p.UsedHours)
}

// Clone returns a detached copy.
func (p *Project) Clone() *Project {
	c := *p
	if p.Deadline != nil {
		d := *p.Deadline
		c.Deadline = &d
	}
	return &c
}

// TransactionType labels a ledger entry.
type TransactionType string

const (
	TxAllocation   TransactionType = "allocation"
	TxDeallocation TransactionType = "deallocation"
	TxAdjustment   TransactionType = "adjustment"
	TxCompletion   TransactionType = "completion"
	TxRollover     TransactionType = "rollover"
	TxExtension    TransactionType = "extension"
)

// CountsTowardsUsage reports whether the entry's hours feed usedHours.
func (t TransactionType) CountsTowardsUsage() bool {
	switch t {
	case TxAllocation, TxDeallocation, TxAdjustment:
		return true
	}
	return false
}

// HourTransaction is one append-only ledger row. Hours is the signed delta;
// balances track usedHours, or totalHours for extensions.
type HourTransaction struct {
	ID            string          `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID     string          `gorm:"type:uuid;not null;index" json:"project_id"`
	RequestID     *string         `gorm:"type:uuid;index" json:"request_id,omitempty"`
	Type          TransactionType `gorm:"type:varchar(16);not null" json:"type"`
	Hours         float64         `gorm:"not null" json:"hours"`
	BalanceBefore float64         `json:"balance_before"`
	BalanceAfter  float64         `json:"balance_after"`
	TotalBefore   float64         `json:"total_before"`
	TotalAfter    float64         `json:"total_after"`
	ActorID       string          `gorm:"not null" json:"actor_id"`
	Note          string          `json:"note"`
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`
}

func (HourTransaction) TableName() string {
	return "project_hour_transactions"
}

// StatusHistory records one project status change.
type StatusHistory struct {
	ID            string                 `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID     string                 `gorm:"type:uuid;not null;index" json:"project_id"`
	FromStatus    workflow.ProjectStatus `gorm:"type:varchar(32)" json:"from_status"`
	ToStatus      workflow.ProjectStatus `gorm:"type:varchar(32);not null" json:"to_status"`
	ChangedBy     string                 `gorm:"not null" json:"changed_by"`
	ChangedByName string                 `json:"changed_by_name"`
	Reason        string                 `json:"reason"`
	Metadata      datatypes.JSON         `gorm:"type:jsonb" json:"metadata,omitempty"`
	ChangedAt     time.Time              `json:"changed_at"`
}

func (StatusHistory) TableName() string {
	return "project_status_history"
}

// Milestone is a dated checkpoint on a project.
type Milestone struct {
	ID          string     `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID   string     `gorm:"type:uuid;not null;index" json:"project_id"`
	Name        string     `gorm:"not null" json:"name"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (Milestone) TableName() string {
	return "project_milestones"
}

// Requests

type CreateProjectRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	TotalHours  float64    `json:"total_hours"`
	Priority    string     `json:"priority"`
	Category    string     `json:"category"`
	Deadline    *time.Time `json:"deadline"`
}

type TransitionRequest struct {
	Status  string `json:"status"`
	Reason  string `json:"reason"`
	Version int    `json:"version"`
}

type ExtendHoursRequest struct {
	Hours   float64 `json:"hours"`
	Note    string  `json:"note"`
	Version int     `json:"version"`
}

type CreateMilestoneRequest struct {
	Name    string     `json:"name"`
	DueDate *time.Time `json:"due_date"`
}

// ListFilter narrows project listings. An empty Statuses matches everything.
type ListFilter struct {
	Statuses []workflow.ProjectStatus
	Limit    int
	Offset   int
}

// ProjectView decorates a project with derived fields for list rendering.
type ProjectView struct {
	*Project
	RemainingHours float64                  `json:"remaining_hours"`
	ListCategory   workflow.ProjectCategory `json:"list_category"`
	NextStatuses   []workflow.ProjectStatus `json:"next_statuses"`
}

func NewProjectView(p *Project) ProjectView {
	return ProjectView{
		Project:        p,
		RemainingHours: p.RemainingHours(),
		ListCategory:   workflow.CategorizeProject(p.Status),
		NextStatuses:   workflow.NextProjectStatuses(p.Status),
	}
}
