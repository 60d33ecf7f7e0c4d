// Package scheduler runs the periodic workflow maintenance jobs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ErrUnknownJob is returned by RunNow for unregistered names.
var ErrUnknownJob = errors.New("unknown job")

// Job is a named unit of periodic work. Run reports how many entities it
// changed.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) (int, error)
}

// JobStatus reports the last outcome of a job.
type JobStatus struct {
	Name      string     `json:"name"`
	Spec      string     `json:"spec"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastCount int        `json:"last_count"`
	LastError string     `json:"last_error,omitempty"`
	Runs      int        `json:"runs"`
}

type entry struct {
	job Job
	id  cron.EntryID
	run sync.Mutex

	mu     sync.Mutex
	status JobStatus
}

// Manager manages scheduled job execution
type Manager struct {
	cron    *cron.Cron
	entries map[string]*entry
	logger  *zap.Logger
	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	now     func() time.Time
}

// NewManager creates a new schedule manager. Specs use the standard five
// field cron syntax.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLogger{logger.Sugar()}),
		),
		entries: make(map[string]*entry),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Register adds a job. An empty spec registers the job for RunNow only.
func (m *Manager) Register(job Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[job.Name]; exists {
		return fmt.Errorf("job %q already registered", job.Name)
	}
	e := &entry{job: job, status: JobStatus{Name: job.Name, Spec: job.Spec}}
	if job.Spec != "" {
		id, err := m.cron.AddFunc(job.Spec, func() { m.execute(m.ctx, e) })
		if err != nil {
			return fmt.Errorf("invalid schedule for job %q: %w", job.Name, err)
		}
		e.id = id
	}
	m.entries[job.Name] = e
	return nil
}

// Start starts the schedule manager
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return fmt.Errorf("schedule manager already running")
	}
	m.running = true
	m.logger.Info("Starting schedule manager", zap.Int("jobs", len(m.entries)))
	m.cron.Start()
	return nil
}

// Stop cancels in-flight jobs and waits for them to return.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	m.logger.Info("Stopping schedule manager")
	m.cancel()
	<-m.cron.Stop().Done()
}

// RunNow executes a job immediately. A run already in progress is waited for.
func (m *Manager) RunNow(ctx context.Context, name string) (JobStatus, error) {
	m.mu.RLock()
	e, ok := m.entries[name]
	m.mu.RUnlock()
	if !ok {
		return JobStatus{}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	m.execute(ctx, e)
	return m.status(e), nil
}

// Statuses lists all jobs by name.
func (m *Manager) Statuses() []JobStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]JobStatus, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, m.status(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *Manager) status(e *entry) JobStatus {
	e.mu.Lock()
	st := e.status
	e.mu.Unlock()
	if e.id != 0 {
		if next := m.cron.Entry(e.id).Next; !next.IsZero() {
			st.NextRun = &next
		}
	}
	return st
}

// execute runs one job at a time per entry; overlapping ticks queue up.
func (m *Manager) execute(ctx context.Context, e *entry) {
	e.run.Lock()
	defer e.run.Unlock()

	start := m.now()
	count, err := e.job.Run(ctx)

	e.mu.Lock()
	e.status.LastRun = &start
	e.status.LastCount = count
	e.status.Runs++
	e.status.LastError = ""
	if err != nil {
		e.status.LastError = err.Error()
	}
	e.mu.Unlock()

	if err != nil {
		m.logger.Error("Scheduled job failed",
			zap.String("job", e.job.Name),
			zap.Int("changed", count),
			zap.Error(err))
		return
	}
	m.logger.Info("Scheduled job completed",
		zap.String("job", e.job.Name),
		zap.Int("changed", count),
		zap.Duration("took", m.now().Sub(start)))
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
