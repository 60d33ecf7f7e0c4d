package requests

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"simflow/portal-backend/internal/events"
	"simflow/portal-backend/internal/projects"
	"simflow/portal-backend/internal/workflow"
)

type Service struct {
	uow          UnitOfWork
	emitter      *events.Emitter
	searcher     Searcher
	logger       *zap.Logger
	now          func() time.Time
	archiveAfter time.Duration
}

type Option func(*Service)

// WithSearcher indexes requests after every write and serves Search from
// the index.
func WithSearcher(s Searcher) Option {
	return func(svc *Service) { svc.searcher = s }
}

func WithArchiveAfter(d time.Duration) Option {
	return func(svc *Service) { svc.archiveAfter = d }
}

func WithClock(now func() time.Time) Option {
	return func(svc *Service) { svc.now = now }
}

func NewService(uow UnitOfWork, emitter *events.Emitter, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		uow:          uow,
		emitter:      emitter,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
		archiveAfter: workflow.DefaultArchiveAfter,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateRequest(ctx context.Context, actor workflow.Actor, req CreateRequestRequest) (*Request, error) {
	if err := workflow.Authorize(actor, workflow.ActionSubmitRequest, workflow.Subject{}); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, workflow.Invalid("title", "title is required")
	}
	priority := workflow.PriorityMedium
	if req.Priority != "" {
		p, err := workflow.ParseRequestPriority(req.Priority)
		if err != nil {
			return nil, err
		}
		priority = p
	}
	var estimated *float64
	if req.EstimatedHours != nil {
		h := projects.Round(*req.EstimatedHours)
		if h <= 0 {
			return nil, workflow.Invalid("estimated_hours", "must be positive")
		}
		estimated = &h
	}

	now := s.now()
	createdBy := actor.ID
	r := &Request{
		ID:             uuid.NewString(),
		Title:          title,
		Description:    strings.TrimSpace(req.Description),
		Vendor:         req.Vendor,
		Priority:       priority,
		CreatedBy:      &createdBy,
		CreatedByName:  actor.Name,
		CreatedAt:      now,
		UpdatedAt:      now,
		Status:         workflow.RequestSubmitted,
		EstimatedHours: estimated,
		Version:        1,
	}

	var batch events.Batch
	err := s.uow.Do(ctx, func(ctx context.Context, repos Repositories) error {
		if req.ProjectID != nil && *req.ProjectID != "" {
			project, err := repos.Projects.Get(ctx, *req.ProjectID)
			if errors.Is(err, workflow.ErrNotFound) {
				return workflow.Invalid("project_id", "project %s does not exist", *req.ProjectID)
			}
			if err != nil {
				return err
			}
			r.ProjectID = &project.ID
			r.ProjectName = project.Name
			r.ProjectCode = project.Code
		}
		if err := repos.Requests.Create(ctx, r); err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	batch.Audit(events.AuditEntry{
		ActorID:    actor.ID,
		Action:     string(workflow.ActionSubmitRequest),
		EntityType: workflow.EntityRequest,
		EntityID:   r.ID,
		Details:    map[string]any{"title": r.Title, "priority": r.Priority},
		Timestamp:  now,
	})
	s.emitter.Emit(ctx, &batch)
	s.index(ctx, r)

	s.logger.Info("request submitted", zap.String("request_id", r.ID), zap.String("created_by", actor.ID))
	return r, nil
}

func (s *Service) GetRequest(ctx context.Context, id string) (*Request, error) {
	var out *Request
	err := s.uow.View(ctx, func(ctx context.Context, repos Repositories) error {
		r, err := repos.Requests.Get(ctx, id)
		out = r
		return err
	})
	return out, err
}

// ListQuery is a request listing as the HTTP layer receives it.
type ListQuery struct {
	Statuses       []string
	ProjectID      string
	AssignedTo     string
	CreatedBy      string
	NeedsAttention *bool
	Archived       *bool
	Limit          int
	Offset         int
}

// ListRequests returns the actor's view: End-Users see what they created,
// Engineers what is assigned to them, Managers and Admins everything.
// Results are ordered by workflow stage, newest first within a stage.
func (s *Service) ListRequests(ctx context.Context, actor workflow.Actor, q ListQuery) ([]RequestView, error) {
	filter := ListFilter{ProjectID: q.ProjectID, AssignedTo: q.AssignedTo, CreatedBy: q.CreatedBy}
	for _, raw := range q.Statuses {
		st, err := workflow.ParseRequestStatus(raw)
		if err != nil {
			return nil, err
		}
		filter.Statuses = append(filter.Statuses, st)
	}
	scope(actor, &filter)

	var list []*Request
	err := s.uow.View(ctx, func(ctx context.Context, repos Repositories) error {
		l, err := repos.Requests.List(ctx, filter)
		list = l
		return err
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	views := make([]RequestView, 0, len(list))
	for _, r := range list {
		v := s.view(r, now)
		if q.NeedsAttention != nil && v.NeedsAttention != *q.NeedsAttention {
			continue
		}
		if q.Archived != nil && v.Archived != *q.Archived {
			continue
		}
		views = append(views, v)
	}
	sortViews(views)
	return paginate(views, q.Limit, q.Offset), nil
}

func (s *Service) UpdateTitle(ctx context.Context, actor workflow.Actor, id string, req UpdateTextRequest) (*Request, error) {
	return s.editText(ctx, actor, id, workflow.ActionEditTitle, "title", req)
}

func (s *Service) UpdateDescription(ctx context.Context, actor workflow.Actor, id string, req UpdateTextRequest) (*Request, error) {
	return s.editText(ctx, actor, id, workflow.ActionEditDescription, "description", req)
}

func (s *Service) editText(ctx context.Context, actor workflow.Actor, id string, action workflow.Action, field string, req UpdateTextRequest) (*Request, error) {
	var (
		result *Request
		batch  events.Batch
	)
	err := s.uow.Do(ctx, func(ctx context.Context, repos Repositories) error {
		r, err := repos.Requests.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := workflow.Authorize(actor, action, r.Subject()); err != nil {
			return err
		}
		value := strings.TrimSpace(req.Value)
		before := r.Description
		if field == "title" {
			if value == "" {
				return workflow.Invalid("title", "title is required")
			}
			before = r.Title
			r.Title = value
		} else {
			r.Description = value
		}
		expected := r.Version
		if req.Version > 0 {
			if err := checkVersion(r, req.Version); err != nil {
				return err
			}
		}
		r.UpdatedAt = s.now()
		if err := repos.Requests.Update(ctx, r, expected); err != nil {
			return err
		}
		batch.Audit(events.AuditEntry{
			ActorID:    actor.ID,
			Action:     string(action),
			EntityType: workflow.EntityRequest,
			EntityID:   r.ID,
			Details:    map[string]any{"field": field, "before": before, "after": value},
			Timestamp:  r.UpdatedAt,
		})
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emitter.Emit(ctx, &batch)
	s.index(ctx, result)
	return result, nil
}

// ProposeTitleChange records an engineer's rename for the requester or a
// manager to review.
func (s *Service) ProposeTitleChange(ctx context.Context, actor workflow.Actor, id string, req ProposeTitleRequest) (*TitleChangeRequest, error) {
	var (
		result *TitleChangeRequest
		batch  events.Batch
	)
	err := s.uow.Do(ctx, func(ctx context.Context, repos Repositories) error {
		r, err := repos.Requests.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := workflow.Authorize(actor, workflow.ActionProposeTitleChange, r.Subject()); err != nil {
			return err
		}
		proposed := strings.TrimSpace(req.ProposedTitle)
		if proposed == "" {
			return workflow.Invalid("proposed_title", "proposed title is required")
		}
		if proposed == r.Title {
			return workflow.Invalid("proposed_title", "proposed title equals the current one")
		}
		tc := &TitleChangeRequest{
			ID:            uuid.NewString(),
			RequestID:     r.ID,
			ProposedBy:    actor.ID,
			CurrentTitle:  r.Title,
			ProposedTitle: proposed,
			Reason:        strings.TrimSpace(req.Reason),
			Status:        TitleChangePending,
			CreatedAt:     s.now(),
		}
		if err := repos.Requests.CreateTitleChange(ctx, tc); err != nil {
			return fmt.Errorf("failed to create title change: %w", err)
		}
		batch.NotifyAll(events.Notification{
			Type:        events.TypeTitleChangeProposed,
			Title:       "Title change proposed",
			Message:     fmt.Sprintf("%s proposed renaming %q to %q", actorName(actor), r.Title, proposed),
			Link:        requestLink(r.ID),
			EntityType:  workflow.EntityRequest,
			EntityID:    r.ID,
			TriggeredBy: actor.ID,
		}, r.CreatedBy, r.AssignedBy)
		batch.Audit(events.AuditEntry{
			ActorID:    actor.ID,
			Action:     string(workflow.ActionProposeTitleChange),
			EntityType: workflow.EntityRequest,
			EntityID:   r.ID,
			Details:    map[string]any{"title_change_id": tc.ID, "proposed_title": proposed},
			Timestamp:  tc.CreatedAt,
		})
		result = tc
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emitter.Emit(ctx, &batch)
	return result, nil
}

// ReviewTitleChange approves or denies a pending proposal. Approval renames
// the request in the same unit of work.
func (s *Service) ReviewTitleChange(ctx context.Context, actor workflow.Actor, changeID string, req ReviewTitleRequest) (*TitleChangeRequest, error) {
	var (
		result  *TitleChangeRequest
		renamed *Request
		batch   events.Batch
	)
	err := s.uow.Do(ctx, func(ctx context.Context, repos Repositories) error {
		tc, err := repos.Requests.GetTitleChange(ctx, changeID)
		if err != nil {
			return err
		}
		r, err := repos.Requests.GetForUpdate(ctx, tc.RequestID)
		if err != nil {
			return err
		}
		if err := workflow.Authorize(actor, workflow.ActionReviewTitleChange, r.Subject()); err != nil {
			return err
		}
		if tc.Status != TitleChangePending {
			return workflow.Invalid("status", "title change was already %s", strings.ToLower(string(tc.Status)))
		}

		now := s.now()
		reviewer := actor.ID
		tc.ReviewedBy = &reviewer
		tc.ReviewedAt = &now
		tc.Status = TitleChangeDenied
		if req.Approve {
			tc.Status = TitleChangeApproved
			r.Title = tc.ProposedTitle
			r.UpdatedAt = now
			if err := repos.Requests.Update(ctx, r, r.Version); err != nil {
				return err
			}
			renamed = r
		}
		if err := repos.Requests.UpdateTitleChange(ctx, tc); err != nil {
			return fmt.Errorf("failed to review title change: %w", err)
		}

		batch.Notify(events.Notification{
			RecipientUserID: tc.ProposedBy,
			Type:            events.TypeTitleChangeReviewed,
			Title:           "Title change " + strings.ToLower(string(tc.Status)),
			Message:         fmt.Sprintf("Your proposal to rename %q to %q was %s", tc.CurrentTitle, tc.ProposedTitle, strings.ToLower(string(tc.Status))),
			Link:            requestLink(r.ID),
			EntityType:      workflow.EntityRequest,
			EntityID:        r.ID,
			TriggeredBy:     actor.ID,
		})
		batch.Audit(events.AuditEntry{
			ActorID:    actor.ID,
			Action:     string(workflow.ActionReviewTitleChange),
			EntityType: workflow.EntityRequest,
			EntityID:   r.ID,
			Details:    map[string]any{"title_change_id": tc.ID, "status": tc.Status},
			Timestamp:  now,
		})
		result = tc
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emitter.Emit(ctx, &batch)
	if renamed != nil {
		s.index(ctx, renamed)
	}
	return result, nil
}

func (s *Service) ListTitleChanges(ctx context.Context, requestID string) ([]*TitleChangeRequest, error) {
	var out []*TitleChangeRequest
	err := s.uow.View(ctx, func(ctx context.Context, repos Repositories) error {
		if _, err := repos.Requests.Get(ctx, requestID); err != nil {
			return err
		}
		l, err := repos.Requests.ListTitleChanges(ctx, requestID)
		out = l
		return err
	})
	return out, err
}

func (s *Service) ListDiscussions(ctx context.Context, requestID string) ([]*DiscussionRequest, error) {
	var out []*DiscussionRequest
	err := s.uow.View(ctx, func(ctx context.Context, repos Repositories) error {
		if _, err := repos.Requests.Get(ctx, requestID); err != nil {
			return err
		}
		l, err := repos.Requests.ListDiscussions(ctx, requestID)
		out = l
		return err
	})
	return out, err
}

func (s *Service) AddComment(ctx context.Context, actor workflow.Actor, id string, req CommentRequest) (*Comment, error) {
	var (
		result *Comment
		batch  events.Batch
	)
	err := s.uow.Do(ctx, func(ctx context.Context, repos Repositories) error {
		r, err := repos.Requests.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := workflow.Authorize(actor, workflow.ActionComment, r.Subject()); err != nil {
			return err
		}
		body := strings.TrimSpace(req.Body)
		if body == "" {
			return workflow.Invalid("body", "comment is empty")
		}
		c := &Comment{
			ID:         uuid.NewString(),
			RequestID:  r.ID,
			AuthorID:   actor.ID,
			AuthorName: actor.Name,
			Body:       body,
			CreatedAt:  s.now(),
		}
		if err := repos.Requests.AddComment(ctx, c); err != nil {
			return fmt.Errorf("failed to add comment: %w", err)
		}
		batch.NotifyAll(events.Notification{
			Type:        events.TypeCommentAdded,
			Title:       "New comment",
			Message:     fmt.Sprintf("%s commented on %q", actorName(actor), r.Title),
			Link:        requestLink(r.ID),
			EntityType:  workflow.EntityRequest,
			EntityID:    r.ID,
			TriggeredBy: actor.ID,
		}, r.CreatedBy, r.AssignedTo)
		result = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emitter.Emit(ctx, &batch)
	return result, nil
}

func (s *Service) ListComments(ctx context.Context, requestID string) ([]*Comment, error) {
	var out []*Comment
	err := s.uow.View(ctx, func(ctx context.Context, repos Repositories) error {
		if _, err := repos.Requests.Get(ctx, requestID); err != nil {
			return err
		}
		l, err := repos.Requests.ListComments(ctx, requestID)
		out = l
		return err
	})
	return out, err
}

// LogTime records hours worked by the assigned engineer.
func (s *Service) LogTime(ctx context.Context, actor workflow.Actor, id string, req TimeEntryRequest) (*TimeEntry, error) {
	var result *TimeEntry
	err := s.uow.Do(ctx, func(ctx context.Context, repos Repositories) error {
		r, err := repos.Requests.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := workflow.Authorize(actor, workflow.ActionLogTime, r.Subject()); err != nil {
			return err
		}
		hours := projects.Round(req.Hours)
		if hours <= 0 {
			return workflow.Invalid("hours", "must be positive")
		}
		if !r.Status.InEngineeringStage() {
			return workflow.Invalid("status", "time cannot be logged while the request is %s", r.Status)
		}
		now := s.now()
		workDate := now
		if req.WorkDate != nil {
			workDate = *req.WorkDate
		}
		e := &TimeEntry{
			ID:         uuid.NewString(),
			RequestID:  r.ID,
			EngineerID: actor.ID,
			Hours:      hours,
			Note:       strings.TrimSpace(req.Note),
			WorkDate:   workDate,
			CreatedAt:  now,
		}
		if err := repos.Requests.AddTimeEntry(ctx, e); err != nil {
			return fmt.Errorf("failed to log time: %w", err)
		}
		result = e
		return nil
	})
	return result, err
}

func (s *Service) ListTimeEntries(ctx context.Context, requestID string) ([]*TimeEntry, error) {
	var out []*TimeEntry
	err := s.uow.View(ctx, func(ctx context.Context, repos Repositories) error {
		if _, err := repos.Requests.Get(ctx, requestID); err != nil {
			return err
		}
		l, err := repos.Requests.ListTimeEntries(ctx, requestID)
		out = l
		return err
	})
	return out, err
}

// ReassignRequester hands a request to another requester, for example when
// the original creator left.
func (s *Service) ReassignRequester(ctx context.Context, actor workflow.Actor, id string, req ReassignRequesterRequest) (*Request, error) {
	var (
		result *Request
		batch  events.Batch
	)
	err := s.uow.Do(ctx, func(ctx context.Context, repos Repositories) error {
		r, err := repos.Requests.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := workflow.Authorize(actor, workflow.ActionReassignRequester, r.Subject()); err != nil {
			return err
		}
		userID := strings.TrimSpace(req.UserID)
		if userID == "" {
			return workflow.Invalid("user_id", "new requester is required")
		}
		expected := r.Version
		if req.Version > 0 {
			if err := checkVersion(r, req.Version); err != nil {
				return err
			}
		}
		previous := deref(r.CreatedBy)
		r.CreatedBy = &userID
		r.CreatedByName = req.UserName
		r.UpdatedAt = s.now()
		if err := repos.Requests.Update(ctx, r, expected); err != nil {
			return err
		}
		batch.Notify(events.Notification{
			RecipientUserID: userID,
			Type:            events.TypeRequestStatusChanged,
			Title:           "You are now the requester",
			Message:         fmt.Sprintf("%q was reassigned to you", r.Title),
			Link:            requestLink(r.ID),
			EntityType:      workflow.EntityRequest,
			EntityID:        r.ID,
			TriggeredBy:     actor.ID,
		})
		batch.Audit(events.AuditEntry{
			ActorID:    actor.ID,
			Action:     string(workflow.ActionReassignRequester),
			EntityType: workflow.EntityRequest,
			EntityID:   r.ID,
			Details:    map[string]any{"from": previous, "to": userID},
			Timestamp:  r.UpdatedAt,
		})
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emitter.Emit(ctx, &batch)
	s.index(ctx, result)
	return result, nil
}

// DeleteRequest removes a request and returns its allocation to the project.
func (s *Service) DeleteRequest(ctx context.Context, actor workflow.Actor, id string) error {
	var batch events.Batch
	err := s.uow.Do(ctx, func(ctx context.Context, repos Repositories) error {
		r, err := repos.Requests.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := workflow.Authorize(actor, workflow.ActionDeleteRequest, r.Subject()); err != nil {
			return err
		}
		now := s.now()
		released, err := releaseAllocation(ctx, repos, r, actor, "Request deleted", now)
		if err != nil {
			return err
		}
		if err := repos.Requests.Delete(ctx, r.ID); err != nil {
			return fmt.Errorf("failed to delete request: %w", err)
		}
		batch.Audit(events.AuditEntry{
			ActorID:    actor.ID,
			Action:     string(workflow.ActionDeleteRequest),
			EntityType: workflow.EntityRequest,
			EntityID:   r.ID,
			Details:    map[string]any{"title": r.Title, "status": r.Status, "released_hours": released},
			Timestamp:  now,
		})
		return nil
	})
	if err != nil {
		return err
	}
	s.emitter.Emit(ctx, &batch)
	if s.searcher != nil {
		if err := s.searcher.Remove(ctx, id); err != nil {
			s.logger.Warn("failed to remove request from index", zap.String("request_id", id), zap.Error(err))
		}
	}
	return nil
}

// AllowedActions is what a client needs to decide which controls to show.
type AllowedActions struct {
	RequestID   string                 `json:"request_id"`
	Status      workflow.RequestStatus `json:"status"`
	Version     int                    `json:"version"`
	Actions     []workflow.Action      `json:"actions"`
	TitleEdit   workflow.TitleEditMode `json:"title_edit"`
	EditDesc    bool                   `json:"can_edit_description"`
	ReviewTitle bool                   `json:"can_review_title_change"`
	LogTime     bool                   `json:"can_log_time"`
	Delete      bool                   `json:"can_delete"`
}

func (s *Service) AllowedActions(ctx context.Context, actor workflow.Actor, id string) (*AllowedActions, error) {
	r, err := s.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	subject := r.Subject()
	actions := workflow.AllowedRequestActions(actor, subject)
	if actions == nil {
		actions = []workflow.Action{}
	}
	return &AllowedActions{
		RequestID:   r.ID,
		Status:      r.Status,
		Version:     r.Version,
		Actions:     actions,
		TitleEdit:   workflow.TitleEditModeFor(actor, subject),
		EditDesc:    workflow.CanPerform(actor, workflow.ActionEditDescription, subject),
		ReviewTitle: workflow.CanPerform(actor, workflow.ActionReviewTitleChange, subject),
		LogTime:     workflow.CanPerform(actor, workflow.ActionLogTime, subject) && r.Status.InEngineeringStage(),
		Delete:      workflow.CanPerform(actor, workflow.ActionDeleteRequest, subject),
	}, nil
}

// Search matches the query against title, description, vendor and project
// code. The index is used when configured; a failing index falls back to a
// scan of the actor's visible requests.
func (s *Service) Search(ctx context.Context, actor workflow.Actor, query string, limit int) ([]RequestView, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, workflow.Invalid("q", "search query is empty")
	}
	if limit <= 0 {
		limit = 20
	}

	if s.searcher != nil {
		views, err := s.searchIndex(ctx, actor, query, limit)
		if err == nil {
			return views, nil
		}
		s.logger.Warn("search index unavailable, scanning", zap.Error(err))
	}

	visible, err := s.ListRequests(ctx, actor, ListQuery{})
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(query)
	out := make([]RequestView, 0, limit)
	for _, v := range visible {
		if matchesQuery(v.Request, needle) {
			out = append(out, v)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *Service) searchIndex(ctx context.Context, actor workflow.Actor, query string, limit int) ([]RequestView, error) {
	ids, err := s.searcher.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	var filter ListFilter
	scope(actor, &filter)
	now := s.now()
	out := make([]RequestView, 0, len(ids))
	err = s.uow.View(ctx, func(ctx context.Context, repos Repositories) error {
		for _, id := range ids {
			r, err := repos.Requests.Get(ctx, id)
			if errors.Is(err, workflow.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if !visibleTo(r, filter) {
				continue
			}
			out = append(out, s.view(r, now))
		}
		return nil
	})
	return out, err
}

func (s *Service) index(ctx context.Context, r *Request) {
	if s.searcher == nil || r == nil {
		return
	}
	if err := s.searcher.Index(ctx, r); err != nil {
		s.logger.Warn("failed to index request", zap.String("request_id", r.ID), zap.Error(err))
	}
}

func (s *Service) view(r *Request, now time.Time) RequestView {
	return RequestView{
		Request:        r,
		NeedsAttention: workflow.NeedsAttention(r.Priority, r.Status),
		Archived:       workflow.IsArchivedListing(r.CreatedAt, now, s.archiveAfter),
	}
}

func scope(actor workflow.Actor, filter *ListFilter) {
	switch actor.Role {
	case workflow.RoleEndUser:
		filter.CreatedBy = actor.ID
	case workflow.RoleEngineer:
		filter.AssignedTo = actor.ID
	}
}

func visibleTo(r *Request, filter ListFilter) bool {
	if filter.CreatedBy != "" && deref(r.CreatedBy) != filter.CreatedBy {
		return false
	}
	if filter.AssignedTo != "" && deref(r.AssignedTo) != filter.AssignedTo {
		return false
	}
	return true
}

func matchesQuery(r *Request, needle string) bool {
	for _, field := range []string{r.Title, r.Description, r.Vendor, r.ProjectCode, r.ProjectName} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func sortViews(views []RequestView) {
	sort.SliceStable(views, func(i, j int) bool {
		ri, rj := workflow.RequestSortRank(views[i].Status), workflow.RequestSortRank(views[j].Status)
		if ri != rj {
			return ri < rj
		}
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})
}

func paginate(views []RequestView, limit, offset int) []RequestView {
	if offset >= len(views) {
		return []RequestView{}
	}
	views = views[offset:]
	if limit > 0 && limit < len(views) {
		views = views[:limit]
	}
	return views
}
