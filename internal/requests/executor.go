package requests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"simflow/portal-backend/internal/events"
	"simflow/portal-backend/internal/projects"
	"simflow/portal-backend/internal/workflow"
)

// ActionInput is everything a lifecycle action needs besides the actor.
type ActionInput struct {
	ExpectedVersion int
	Extra           Extra
}

// Execute applies one lifecycle action as a single unit of work. Checks run
// in order: existence, capability, table, payload, version, budget. Nothing
// persists and nothing is emitted when any of them fails.
func (s *Service) Execute(ctx context.Context, actor workflow.Actor, id string, action workflow.Action, in ActionInput) (*Request, error) {
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
		target, err := workflow.RequestTarget(r.Status, action)
		if err != nil {
			return err
		}

		t := &transition{
			ctx:      ctx,
			repos:    repos,
			actor:    actor,
			action:   action,
			req:      r,
			from:     r.Status,
			to:       target,
			extra:    in.Extra,
			expected: in.ExpectedVersion,
			now:      s.now(),
			batch:    &batch,
			details:  map[string]any{},
		}
		if err := t.run(); err != nil {
			return err
		}
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

// TransitionTo addresses a lifecycle move by its target status. The action
// is resolved from the current status; Execute re-checks it under lock.
// When no edge leaves the current status for the target, an actor who could
// not perform any action leading there is refused before the table is.
func (s *Service) TransitionTo(ctx context.Context, actor workflow.Actor, id string, target workflow.RequestStatus, in ActionInput) (*Request, error) {
	r, err := s.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	action, err := workflow.RequestActionFor(r.Status, target)
	if err != nil {
		return nil, gateUnreachable(actor, r.Subject(), target, err)
	}
	return s.Execute(ctx, actor, id, action, in)
}

// gateUnreachable picks the error for a target with no edge from the current
// status. The actor is judged against every edge into the target as if the
// request sat at that edge's source.
func gateUnreachable(actor workflow.Actor, subject workflow.Subject, target workflow.RequestStatus, invalid error) error {
	var refused workflow.Action
	for _, e := range workflow.RequestEdges() {
		if e.To != target {
			continue
		}
		at := subject
		at.Status = e.From
		if workflow.CanPerform(actor, e.Action, at) {
			return invalid
		}
		if refused == "" {
			refused = e.Action
		}
	}
	if refused == "" {
		return invalid
	}
	return &workflow.ForbiddenError{Role: actor.Role, Action: refused}
}

type transition struct {
	ctx      context.Context
	repos    Repositories
	actor    workflow.Actor
	action   workflow.Action
	req      *Request
	from     workflow.RequestStatus
	to       workflow.RequestStatus
	extra    Extra
	expected int
	now      time.Time
	batch    *events.Batch
	details  map[string]any
}

func (t *transition) run() error {
	switch t.action {
	case workflow.ActionAssign:
		return t.assign()
	case workflow.ActionRequestDiscussion:
		return t.requestDiscussion()
	case workflow.ActionResolveDiscussion:
		return t.resolveDiscussion()
	case workflow.ActionDeny:
		return t.deny()
	default:
		return t.simple()
	}
}

// simple covers the actions whose only effect is the status change.
func (t *transition) simple() error {
	if err := t.checkVersion(); err != nil {
		return err
	}
	if reason := strings.TrimSpace(t.extra.Reason); reason != "" {
		t.details["reason"] = reason
	}

	r := t.req
	switch t.action {
	case workflow.ActionStartReview, workflow.ActionResumeReview:
		t.notify(events.TypeRequestStatusChanged, "Request under review", r.CreatedBy)
	case workflow.ActionAcceptWork:
		t.notify(events.TypeRequestStatusChanged, "Work started", r.CreatedBy, r.AssignedBy)
	case workflow.ActionCompleteWork:
		t.notify(events.TypeRequestStatusChanged, "Work completed, awaiting your acceptance", r.CreatedBy, r.AssignedBy)
	case workflow.ActionAcceptDelivery:
		t.notify(events.TypeRequestStatusChanged, "Delivery accepted", r.AssignedTo, r.AssignedBy)
	case workflow.ActionRequestRevision:
		t.notify(events.TypeRequestStatusChanged, "Revision requested", r.AssignedBy, r.AssignedTo)
	case workflow.ActionApproveRevision:
		t.notify(events.TypeRequestStatusChanged, "Revision approved", r.AssignedTo, r.CreatedBy)
	case workflow.ActionDenyRevision:
		t.notify(events.TypeRequestStatusChanged, "Revision denied", r.CreatedBy, r.AssignedTo)
	}
	return t.save()
}

func (t *transition) deny() error {
	if err := t.checkVersion(); err != nil {
		return err
	}
	if err := t.releaseAllocation("Request denied"); err != nil {
		return err
	}
	t.req.AssignedTo, t.req.AssignedToName = nil, ""
	if reason := strings.TrimSpace(t.extra.Reason); reason != "" {
		t.details["reason"] = reason
	}
	t.notify(events.TypeRequestStatusChanged, "Request denied", t.req.CreatedBy)
	return t.save()
}

func (t *transition) assign() error {
	r, x := t.req, t.extra

	engineerID := strings.TrimSpace(x.EngineerID)
	if engineerID == "" {
		return workflow.Invalid("engineer_id", "an engineer is required")
	}
	hours := r.EstimatedHours
	if x.Hours != nil {
		hours = x.Hours
	}
	if hours == nil || projects.Round(*hours) <= 0 {
		return workflow.Invalid("hours", "assignment needs positive hours")
	}
	projectID := strings.TrimSpace(x.ProjectID)
	if projectID == "" && r.ProjectID != nil {
		projectID = *r.ProjectID
	}
	if projectID == "" {
		return workflow.Invalid("project_id", "a project is required to allocate hours")
	}
	project, err := t.repos.Projects.Get(t.ctx, projectID)
	if errors.Is(err, workflow.ErrNotFound) {
		return workflow.Invalid("project_id", "project %s does not exist", projectID)
	}
	if err != nil {
		return err
	}
	if !project.Status.AcceptsAllocations() {
		return workflow.Invalid("project_id", "project %s is %s and accepts no allocations", project.Code, project.Status)
	}
	if err := t.checkVersion(); err != nil {
		return err
	}
	if err := t.releaseAllocation("Reassigned"); err != nil {
		return err
	}

	project, err = t.repos.Projects.GetForUpdate(t.ctx, projectID)
	if err != nil {
		return err
	}
	allocated := projects.Round(*hours)
	name := strings.TrimSpace(x.EngineerName)
	if name == "" {
		name = engineerID
	}
	tx, err := projects.Allocate(project, projects.LedgerEntry{
		RequestID: &r.ID,
		Hours:     allocated,
		ActorID:   t.actor.ID,
		Note:      fmt.Sprintf("Assigned to %s", name),
		At:        t.now,
	})
	if err != nil {
		return err
	}
	if err := t.writeLedger(project, tx); err != nil {
		return err
	}

	r.AssignedTo = &engineerID
	r.AssignedToName = name
	r.AssignedBy = &t.actor.ID
	r.AllocatedHours = &allocated
	if r.EstimatedHours == nil {
		r.EstimatedHours = &allocated
	}
	r.ProjectID = &project.ID
	r.ProjectName = project.Name
	r.ProjectCode = project.Code

	t.details["engineer_id"] = engineerID
	t.details["hours"] = allocated
	t.details["project_id"] = project.ID
	t.details["balance_after"] = tx.BalanceAfter

	t.batch.Notify(events.Notification{
		RecipientUserID: engineerID,
		Type:            events.TypeRequestAssigned,
		Title:           "New assignment",
		Message:         fmt.Sprintf("%q was assigned to you with %.2f hours", r.Title, allocated),
		Link:            requestLink(r.ID),
		EntityType:      workflow.EntityRequest,
		EntityID:        r.ID,
		TriggeredBy:     t.actor.ID,
	})
	t.notify(events.TypeRequestStatusChanged, fmt.Sprintf("Assigned to %s", name), r.CreatedBy)
	return t.save()
}

func (t *transition) requestDiscussion() error {
	r, x := t.req, t.extra

	reason := strings.TrimSpace(x.Reason)
	if reason == "" {
		return workflow.Invalid("reason", "a discussion needs a reason")
	}
	var suggested *float64
	if x.SuggestedHours != nil {
		h := projects.Round(*x.SuggestedHours)
		if h <= 0 {
			return workflow.Invalid("suggested_hours", "must be positive")
		}
		suggested = &h
	}
	if err := t.checkVersion(); err != nil {
		return err
	}

	d := &DiscussionRequest{
		ID:             uuid.NewString(),
		RequestID:      r.ID,
		EngineerID:     t.actor.ID,
		Reason:         reason,
		SuggestedHours: suggested,
		Status:         DiscussionPending,
		CreatedAt:      t.now,
	}
	if err := t.repos.Requests.CreateDiscussion(t.ctx, d); err != nil {
		return fmt.Errorf("failed to create discussion: %w", err)
	}

	t.details["discussion_id"] = d.ID
	t.details["reason"] = reason
	if suggested != nil {
		t.details["suggested_hours"] = *suggested
	}
	t.batch.Notify(events.Notification{
		RecipientUserID: deref(r.AssignedBy),
		Type:            events.TypeDiscussionRequested,
		Title:           "Discussion requested",
		Message:         fmt.Sprintf("%s asked to discuss %q: %s", actorName(t.actor), r.Title, reason),
		Link:            requestLink(r.ID),
		EntityType:      workflow.EntityRequest,
		EntityID:        r.ID,
		TriggeredBy:     t.actor.ID,
	})
	return t.save()
}

func (t *transition) resolveDiscussion() error {
	r, x := t.req, t.extra

	resolution, err := ParseResolution(x.Resolution)
	if err != nil {
		return err
	}
	d, err := t.repos.Requests.PendingDiscussion(t.ctx, r.ID)
	if errors.Is(err, workflow.ErrNotFound) {
		return workflow.Invalid("discussion", "request has no pending discussion")
	}
	if err != nil {
		return err
	}

	current := projects.Round(r.Allocated())
	next := current
	switch resolution {
	case ResolutionApprove:
		d.Status = DiscussionApproved
		if d.SuggestedHours != nil {
			next = projects.Round(*d.SuggestedHours)
		}
	case ResolutionOverride:
		if x.AllocatedHours == nil || projects.Round(*x.AllocatedHours) <= 0 {
			return workflow.Invalid("allocated_hours", "override needs positive hours")
		}
		d.Status = DiscussionOverridden
		next = projects.Round(*x.AllocatedHours)
	case ResolutionDeny:
		d.Status = DiscussionDenied
	}
	if err := t.checkVersion(); err != nil {
		return err
	}

	delta := projects.Round(next - current)
	if delta != 0 {
		if r.ProjectID == nil {
			return workflow.Invalid("project_id", "request has no project to adjust")
		}
		project, err := t.repos.Projects.GetForUpdate(t.ctx, *r.ProjectID)
		if err != nil {
			return err
		}
		tx, err := projects.Adjust(project, projects.LedgerEntry{
			RequestID: &r.ID,
			Hours:     delta,
			ActorID:   t.actor.ID,
			Note:      fmt.Sprintf("Discussion %s: %.2fh -> %.2fh", strings.ToLower(string(d.Status)), current, next),
			At:        t.now,
		})
		if err != nil {
			return err
		}
		if err := t.writeLedger(project, tx); err != nil {
			return err
		}
		r.AllocatedHours = &next
		r.EstimatedHours = &next
	}

	resolvedBy := t.actor.ID
	resolvedAt := t.now
	d.ResolvedBy = &resolvedBy
	d.ResolvedHours = &next
	d.ManagerResponse = strings.TrimSpace(x.ManagerResponse)
	d.ResolvedAt = &resolvedAt
	if err := t.repos.Requests.UpdateDiscussion(t.ctx, d); err != nil {
		return fmt.Errorf("failed to resolve discussion: %w", err)
	}

	t.details["discussion_id"] = d.ID
	t.details["resolution"] = resolution
	t.details["hours_before"] = current
	t.details["hours_after"] = next
	t.details["delta"] = delta

	msg := fmt.Sprintf("Discussion on %q %s; allocation is %.2f hours", r.Title, strings.ToLower(string(d.Status)), next)
	if d.ManagerResponse != "" {
		msg += ": " + d.ManagerResponse
	}
	t.batch.Notify(events.Notification{
		RecipientUserID: d.EngineerID,
		Type:            events.TypeDiscussionResolved,
		Title:           "Discussion resolved",
		Message:         msg,
		Link:            requestLink(r.ID),
		EntityType:      workflow.EntityRequest,
		EntityID:        r.ID,
		TriggeredBy:     t.actor.ID,
	})
	return t.save()
}

// releaseAllocation returns the request's hours to its project.
func (t *transition) releaseAllocation(note string) error {
	released, err := releaseAllocation(t.ctx, t.repos, t.req, t.actor, note, t.now)
	if err != nil {
		return err
	}
	if released > 0 {
		t.details["released_hours"] = released
	}
	return nil
}

func (t *transition) writeLedger(project *projects.Project, tx *projects.HourTransaction) error {
	project.UpdatedAt = t.now
	if err := t.repos.Projects.Update(t.ctx, project, project.Version); err != nil {
		return err
	}
	if err := t.repos.Projects.AppendTransaction(t.ctx, tx); err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

func (t *transition) checkVersion() error {
	return checkVersion(t.req, t.expected)
}

func (t *transition) notify(typ, title string, recipients ...*string) {
	t.batch.NotifyAll(events.Notification{
		Type:        typ,
		Title:       title,
		Message:     fmt.Sprintf("%q moved from %s to %s", t.req.Title, t.from, t.to),
		Link:        requestLink(t.req.ID),
		EntityType:  workflow.EntityRequest,
		EntityID:    t.req.ID,
		TriggeredBy: t.actor.ID,
	}, recipients...)
}

// save persists the status change and queues the audit entry.
func (t *transition) save() error {
	r := t.req
	r.Status = t.to
	r.UpdatedAt = t.now
	if err := t.repos.Requests.Update(t.ctx, r, t.expected); err != nil {
		return err
	}

	t.details["from"] = t.from
	t.details["to"] = t.to
	t.batch.Audit(events.AuditEntry{
		ActorID:    t.actor.ID,
		Action:     string(t.action),
		EntityType: workflow.EntityRequest,
		EntityID:   r.ID,
		Details:    t.details,
		Timestamp:  t.now,
	})
	return nil
}

func releaseAllocation(ctx context.Context, repos Repositories, r *Request, actor workflow.Actor, note string, now time.Time) (float64, error) {
	hours := projects.Round(r.Allocated())
	if hours <= 0 || r.ProjectID == nil {
		return 0, nil
	}
	project, err := repos.Projects.GetForUpdate(ctx, *r.ProjectID)
	if errors.Is(err, workflow.ErrNotFound) {
		r.AllocatedHours = nil
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	tx, err := projects.Deallocate(project, projects.LedgerEntry{
		RequestID: &r.ID,
		Hours:     hours,
		ActorID:   actor.ID,
		Note:      note,
		At:        now,
	})
	if err != nil {
		return 0, err
	}
	project.UpdatedAt = now
	if err := repos.Projects.Update(ctx, project, project.Version); err != nil {
		return 0, err
	}
	if err := repos.Projects.AppendTransaction(ctx, tx); err != nil {
		return 0, fmt.Errorf("failed to append ledger entry: %w", err)
	}
	r.AllocatedHours = nil
	return -tx.Hours, nil
}

func checkVersion(r *Request, expected int) error {
	if expected <= 0 {
		return workflow.Invalid("version", "expected version is required")
	}
	if r.Version != expected {
		return &workflow.ConflictError{Entity: workflow.EntityRequest, ID: r.ID, Expected: expected, Actual: r.Version}
	}
	return nil
}

func requestLink(id string) string {
	return "/requests/" + id
}

func actorName(a workflow.Actor) string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
