package projects

import (
	"context"
	"time"
)

// Repository is the project store as seen from inside one unit of work.
type Repository interface {
	Create(ctx context.Context, p *Project) error
	Get(ctx context.Context, id string) (*Project, error)
	// GetForUpdate locks the row until the unit of work ends.
	GetForUpdate(ctx context.Context, id string) (*Project, error)
	// Update writes p if the stored version still equals expected and bumps
	// p.Version. A mismatch is a *workflow.ConflictError.
	Update(ctx context.Context, p *Project, expected int) error
	List(ctx context.Context, filter ListFilter) ([]*Project, error)
	ListOverdue(ctx context.Context, now time.Time) ([]*Project, error)
	NextCodeSequence(ctx context.Context, year int) (int, error)

	AppendTransaction(ctx context.Context, tx *HourTransaction) error
	ListTransactions(ctx context.Context, projectID string) ([]*HourTransaction, error)

	AppendHistory(ctx context.Context, h *StatusHistory) error
	ListHistory(ctx context.Context, projectID string) ([]*StatusHistory, error)

	CreateMilestone(ctx context.Context, m *Milestone) error
	GetMilestone(ctx context.Context, id string) (*Milestone, error)
	UpdateMilestone(ctx context.Context, m *Milestone) error
	ListMilestones(ctx context.Context, projectID string) ([]*Milestone, error)
}

// UnitOfWork runs fn atomically: either every write inside fn persists or
// none does. View runs fn against committed state and must not write.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
	View(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}
