// Package eventstest records emitted notifications and audit entries for
// assertions in service tests.
package eventstest

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"simflow/portal-backend/internal/events"
)

type Recorder struct {
	mu            sync.Mutex
	notifications []events.Notification
	audit         []events.AuditEntry
}

// NewEmitter returns an emitter wired to a fresh recorder.
func NewEmitter() (*events.Emitter, *Recorder) {
	r := &Recorder{}
	return events.NewEmitter(zap.NewNop(), events.WithNotifier(r), events.WithAuditor(r)), r
}

func (r *Recorder) Notify(_ context.Context, n events.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
	return nil
}

func (r *Recorder) Record(_ context.Context, e events.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audit = append(r.audit, e)
	return nil
}

func (r *Recorder) Notifications() []events.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Notification(nil), r.notifications...)
}

func (r *Recorder) AuditEntries() []events.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.AuditEntry(nil), r.audit...)
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = nil
	r.audit = nil
}
