package requests

import (
	"context"

	"simflow/portal-backend/internal/projects"
)

// Repository is the request store as seen from inside one unit of work.
type Repository interface {
	Create(ctx context.Context, r *Request) error
	Get(ctx context.Context, id string) (*Request, error)
	// GetForUpdate locks the row until the unit of work ends.
	GetForUpdate(ctx context.Context, id string) (*Request, error)
	// Update writes r if the stored version still equals expected and bumps
	// r.Version. A mismatch is a *workflow.ConflictError.
	Update(ctx context.Context, r *Request, expected int) error
	// Delete removes the request and its child rows.
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]*Request, error)

	AddComment(ctx context.Context, c *Comment) error
	ListComments(ctx context.Context, requestID string) ([]*Comment, error)

	AddTimeEntry(ctx context.Context, e *TimeEntry) error
	ListTimeEntries(ctx context.Context, requestID string) ([]*TimeEntry, error)

	CreateTitleChange(ctx context.Context, t *TitleChangeRequest) error
	GetTitleChange(ctx context.Context, id string) (*TitleChangeRequest, error)
	UpdateTitleChange(ctx context.Context, t *TitleChangeRequest) error
	ListTitleChanges(ctx context.Context, requestID string) ([]*TitleChangeRequest, error)

	CreateDiscussion(ctx context.Context, d *DiscussionRequest) error
	// PendingDiscussion returns workflow.ErrNotFound when none is open.
	PendingDiscussion(ctx context.Context, requestID string) (*DiscussionRequest, error)
	UpdateDiscussion(ctx context.Context, d *DiscussionRequest) error
	ListDiscussions(ctx context.Context, requestID string) ([]*DiscussionRequest, error)
}

// Repositories is what one unit of work sees: requests draw hours from
// projects, so both stores share the transaction.
type Repositories struct {
	Requests Repository
	Projects projects.Repository
}

// UnitOfWork runs fn atomically. View runs fn against committed state and
// must not write.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
	View(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// Searcher is the optional full-text index over requests.
type Searcher interface {
	Index(ctx context.Context, r *Request) error
	Remove(ctx context.Context, id string) error
	Search(ctx context.Context, query string, limit int) ([]string, error)
}
