package requests

import (
	"time"

	"simflow/portal-backend/internal/workflow"
)

// Request is a simulation request moving through the engineering workflow.
type Request struct {
	ID             string                   `gorm:"type:uuid;primaryKey" json:"id"`
	Title          string                   `gorm:"not null" json:"title"`
	Description    string                   `json:"description"`
	Vendor         string                   `json:"vendor"`
	Priority       workflow.RequestPriority `gorm:"type:varchar(16);not null" json:"priority"`
	CreatedBy      *string                  `gorm:"index" json:"created_by"`
	CreatedByName  string                   `json:"created_by_name"`
	CreatedAt      time.Time                `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
	Status         workflow.RequestStatus   `gorm:"type:varchar(32);not null;index" json:"status"`
	AssignedTo     *string                  `gorm:"index" json:"assigned_to"`
	AssignedToName string                   `json:"assigned_to_name"`
	AssignedBy     *string                  `json:"assigned_by"`
	EstimatedHours *float64                 `json:"estimated_hours"`
	AllocatedHours *float64                 `json:"allocated_hours"`
	ProjectID      *string                  `gorm:"type:uuid;index" json:"project_id"`
	ProjectName    string                   `json:"project_name"`
	ProjectCode    string                   `json:"project_code"`
	Version        int                      `gorm:"not null;default:1" json:"version"`
}

func (Request) TableName() string {
	return "simulation_requests"
}

// Subject is the slice of the request the capability gate reads.
func (r *Request) Subject() workflow.Subject {
	return workflow.Subject{CreatedBy: r.CreatedBy, AssignedTo: r.AssignedTo, Status: r.Status}
}

// Allocated returns the hours currently drawn from the project budget.
func (r *Request) Allocated() float64 {
	if r.AllocatedHours == nil {
		return 0
	}
	return *r.AllocatedHours
}

func (r *Request) Clone() *Request {
	c := *r
	c.CreatedBy = clonePtr(r.CreatedBy)
	c.AssignedTo = clonePtr(r.AssignedTo)
	c.AssignedBy = clonePtr(r.AssignedBy)
	c.EstimatedHours = clonePtr(r.EstimatedHours)
	c.AllocatedHours = clonePtr(r.AllocatedHours)
	c.ProjectID = clonePtr(r.ProjectID)
	return &c
}

type Comment struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID  string    `gorm:"type:uuid;not null;index" json:"request_id"`
	AuthorID   string    `gorm:"not null" json:"author_id"`
	AuthorName string    `json:"author_name"`
	Body       string    `gorm:"not null" json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Comment) TableName() string {
	return "request_comments"
}

type TimeEntry struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID  string    `gorm:"type:uuid;not null;index" json:"request_id"`
	EngineerID string    `gorm:"not null;index" json:"engineer_id"`
	Hours      float64   `gorm:"not null" json:"hours"`
	Note       string    `json:"note"`
	WorkDate   time.Time `json:"work_date"`
	CreatedAt  time.Time `json:"created_at"`
}

func (TimeEntry) TableName() string {
	return "request_time_entries"
}

type TitleChangeStatus string

const (
	TitleChangePending  TitleChangeStatus = "Pending"
	TitleChangeApproved TitleChangeStatus = "Approved"
	TitleChangeDenied   TitleChangeStatus = "Denied"
)

// TitleChangeRequest is an engineer's proposal to rename a request.
type TitleChangeRequest struct {
	ID            string            `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID     string            `gorm:"type:uuid;not null;index" json:"request_id"`
	ProposedBy    string            `gorm:"not null" json:"proposed_by"`
	CurrentTitle  string            `json:"current_title"`
	ProposedTitle string            `gorm:"not null" json:"proposed_title"`
	Reason        string            `json:"reason"`
	Status        TitleChangeStatus `gorm:"type:varchar(16);not null" json:"status"`
	ReviewedBy    *string           `json:"reviewed_by"`
	ReviewedAt    *time.Time        `json:"reviewed_at"`
	CreatedAt     time.Time         `json:"created_at"`
}

func (TitleChangeRequest) TableName() string {
	return "title_change_requests"
}

func (t *TitleChangeRequest) Clone() *TitleChangeRequest {
	c := *t
	c.ReviewedBy = clonePtr(t.ReviewedBy)
	c.ReviewedAt = clonePtr(t.ReviewedAt)
	return &c
}

type DiscussionStatus string

const (
	DiscussionPending    DiscussionStatus = "Pending"
	DiscussionApproved   DiscussionStatus = "Approved"
	DiscussionOverridden DiscussionStatus = "Overridden"
	DiscussionDenied     DiscussionStatus = "Denied"
)

// DiscussionRequest is a negotiation over a request's hours.
type DiscussionRequest struct {
	ID              string           `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID       string           `gorm:"type:uuid;not null;index" json:"request_id"`
	EngineerID      string           `gorm:"not null" json:"engineer_id"`
	Reason          string           `gorm:"not null" json:"reason"`
	SuggestedHours  *float64         `json:"suggested_hours"`
	Status          DiscussionStatus `gorm:"type:varchar(16);not null" json:"status"`
	ResolvedBy      *string          `json:"resolved_by"`
	ResolvedHours   *float64         `json:"resolved_hours"`
	ManagerResponse string           `json:"manager_response"`
	CreatedAt       time.Time        `json:"created_at"`
	ResolvedAt      *time.Time       `json:"resolved_at"`
}

func (DiscussionRequest) TableName() string {
	return "discussion_requests"
}

func (d *DiscussionRequest) Clone() *DiscussionRequest {
	c := *d
	c.SuggestedHours = clonePtr(d.SuggestedHours)
	c.ResolvedBy = clonePtr(d.ResolvedBy)
	c.ResolvedHours = clonePtr(d.ResolvedHours)
	c.ResolvedAt = clonePtr(d.ResolvedAt)
	return &c
}

// Resolution is a manager's answer to a discussion request.
type Resolution string

const (
	ResolutionApprove  Resolution = "approve"
	ResolutionOverride Resolution = "override"
	ResolutionDeny     Resolution = "deny"
)

func ParseResolution(s string) (Resolution, error) {
	switch Resolution(s) {
	case ResolutionApprove, ResolutionOverride, ResolutionDeny:
		return Resolution(s), nil
	}
	return "", workflow.Invalid("resolution", "%v: resolution %q", workflow.ErrUnknownValue, s)
}

// Extra carries the action-specific payload of a transition.
type Extra struct {
	EngineerID      string   `json:"engineer_id,omitempty"`
	EngineerName    string   `json:"engineer_name,omitempty"`
	Hours           *float64 `json:"hours,omitempty"`
	ProjectID       string   `json:"project_id,omitempty"`
	Reason          string   `json:"reason,omitempty"`
	SuggestedHours  *float64 `json:"suggested_hours,omitempty"`
	Resolution      string   `json:"resolution,omitempty"`
	AllocatedHours  *float64 `json:"allocated_hours,omitempty"`
	ManagerResponse string   `json:"manager_response,omitempty"`
}

// Requests

type CreateRequestRequest struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Vendor         string   `json:"vendor"`
	Priority       string   `json:"priority"`
	EstimatedHours *float64 `json:"estimated_hours"`
	ProjectID      *string  `json:"project_id"`
}

type ActionRequest struct {
	Version int   `json:"version"`
	Extra   Extra `json:"extra"`
}

type UpdateTextRequest struct {
	Value   string `json:"value"`
	Version int    `json:"version"`
}

type ProposeTitleRequest struct {
	ProposedTitle string `json:"proposed_title"`
	Reason        string `json:"reason"`
}

type ReviewTitleRequest struct {
	Approve bool `json:"approve"`
}

type CommentRequest struct {
	Body string `json:"body"`
}

type TimeEntryRequest struct {
	Hours    float64    `json:"hours"`
	Note     string     `json:"note"`
	WorkDate *time.Time `json:"work_date"`
}

type ReassignRequesterRequest struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Version  int    `json:"version"`
}

// ListFilter narrows request listings. Nil and empty fields match everything.
type ListFilter struct {
	Statuses   []workflow.RequestStatus
	ProjectID  string
	AssignedTo string
	CreatedBy  string
}

// RequestView decorates a request with derived fields for list rendering.
type RequestView struct {
	*Request
	NeedsAttention bool `json:"needs_attention"`
	Archived       bool `json:"archived"`
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
