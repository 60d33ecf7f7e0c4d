package events

import (
	"context"
	"time"

	"go.uber.org/zap"

	"simflow/portal-backend/internal/workflow"
)

// Notification types emitted by the request and project services.
const (
	TypeRequestStatusChanged = "request_status_changed"
	TypeRequestAssigned      = "request_assigned"
	TypeDiscussionRequested  = "discussion_requested"
	TypeDiscussionResolved   = "discussion_resolved"
	TypeTitleChangeProposed  = "title_change_proposed"
	TypeTitleChangeReviewed  = "title_change_reviewed"
	TypeCommentAdded         = "comment_added"
	TypeProjectStatusChanged = "project_status_changed"
	TypeProjectHoursExtended = "project_hours_extended"
)

// Notification is the payload handed to the notification collaborator.
type Notification struct {
	RecipientUserID string              `json:"recipient_user_id"`
	Type            string              `json:"type"`
	Title           string              `json:"title"`
	Message         string              `json:"message"`
	Link            string              `json:"link"`
	EntityType      workflow.EntityType `json:"entity_type"`
	EntityID        string              `json:"entity_id"`
	TriggeredBy     string              `json:"triggered_by"`
}

// AuditEntry is the payload handed to the audit collaborator.
type AuditEntry struct {
	ActorID    string              `json:"actor_id"`
	Action     string              `json:"action"`
	EntityType workflow.EntityType `json:"entity_type"`
	EntityID   string              `json:"entity_id"`
	Details    map[string]any      `json:"details"`
	Timestamp  time.Time           `json:"timestamp"`
}

// Notifier delivers notifications. Delivery guarantees are its own.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Auditor stores audit entries.
type Auditor interface {
	Record(ctx context.Context, e AuditEntry) error
}

// Batch collects the events of one unit of work. It is only emitted once
// the unit of work has committed.
type Batch struct {
	notifications []Notification
	audit         []AuditEntry
	seen          map[[3]string]bool
}

// Notify queues n. Notifications without a recipient, addressed to the
// actor who triggered them, or duplicating a queued one are dropped.
func (b *Batch) Notify(n Notification) {
	if n.RecipientUserID == "" || n.RecipientUserID == n.TriggeredBy {
		return
	}
	key := [3]string{n.RecipientUserID, n.Type, n.EntityID}
	if b.seen == nil {
		b.seen = make(map[[3]string]bool)
	}
	if b.seen[key] {
		return
	}
	b.seen[key] = true
	b.notifications = append(b.notifications, n)
}

// NotifyAll queues one copy of n per recipient.
func (b *Batch) NotifyAll(n Notification, recipients ...*string) {
	for _, r := range recipients {
		if r == nil {
			continue
		}
		n.RecipientUserID = *r
		b.Notify(n)
	}
}

func (b *Batch) Audit(e AuditEntry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	b.audit = append(b.audit, e)
}

func (b *Batch) Notifications() []Notification {
	return b.notifications
}

func (b *Batch) AuditEntries() []AuditEntry {
	return b.audit
}

// Emitter fans a committed batch out to the collaborators.
type Emitter struct {
	logger    *zap.Logger
	notifiers []Notifier
	auditors  []Auditor
}

type Option func(*Emitter)

func WithNotifier(n Notifier) Option {
	return func(e *Emitter) {
		if n != nil {
			e.notifiers = append(e.notifiers, n)
		}
	}
}

func WithAuditor(a Auditor) Option {
	return func(e *Emitter) {
		if a != nil {
			e.auditors = append(e.auditors, a)
		}
	}
}

func NewEmitter(logger *zap.Logger, opts ...Option) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Emitter{logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Emit delivers the batch. Collaborator failures are logged and never
// surface to the caller: the transition has already committed.
func (e *Emitter) Emit(ctx context.Context, b *Batch) {
	if e == nil || b == nil {
		return
	}
	for _, n := range b.notifications {
		for _, notifier := range e.notifiers {
			if err := notifier.Notify(ctx, n); err != nil {
				e.logger.Warn("notification delivery failed",
					zap.String("recipient", n.RecipientUserID),
					zap.String("type", n.Type),
					zap.String("entity_id", n.EntityID),
					zap.Error(err))
			}
		}
	}
	for _, a := range b.audit {
		for _, auditor := range e.auditors {
			if err := auditor.Record(ctx, a); err != nil {
				e.logger.Warn("audit write failed",
					zap.String("action", a.Action),
					zap.String("entity_id", a.EntityID),
					zap.Error(err))
			}
		}
	}
}
