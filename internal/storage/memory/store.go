// Package memory is an in-process store used by tests and by the
// single-binary development mode. A unit of work runs against a private copy
// of the state which replaces the live state only when fn succeeds.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"simflow/portal-backend/internal/projects"
	"simflow/portal-backend/internal/requests"
)

type state struct {
	projects     map[string]*projects.Project
	transactions []*projects.HourTransaction
	history      []*projects.StatusHistory
	milestones   map[string]*projects.Milestone
	codeSeq      map[int]int

	requests     map[string]*requests.Request
	comments     []*requests.Comment
	timeEntries  []*requests.TimeEntry
	titleChanges map[string]*requests.TitleChangeRequest
	discussions  map[string]*requests.DiscussionRequest
}

func newState() *state {
	return &state{
		projects:     map[string]*projects.Project{},
		milestones:   map[string]*projects.Milestone{},
		codeSeq:      map[int]int{},
		requests:     map[string]*requests.Request{},
		titleChanges: map[string]*requests.TitleChangeRequest{},
		discussions:  map[string]*requests.DiscussionRequest{},
	}
}

// clone copies every mutable row. Append-only rows are never mutated after
// insert, so their slices only need a fresh backing array.
func (s *state) clone() *state {
	c := &state{
		projects:     make(map[string]*projects.Project, len(s.projects)),
		transactions: slices.Clone(s.transactions),
		history:      slices.Clone(s.history),
		milestones:   make(map[string]*projects.Milestone, len(s.milestones)),
		codeSeq:      maps.Clone(s.codeSeq),
		requests:     make(map[string]*requests.Request, len(s.requests)),
		comments:     slices.Clone(s.comments),
		timeEntries:  slices.Clone(s.timeEntries),
		titleChanges: make(map[string]*requests.TitleChangeRequest, len(s.titleChanges)),
		discussions:  make(map[string]*requests.DiscussionRequest, len(s.discussions)),
	}
	for k, v := range s.projects {
		c.projects[k] = v.Clone()
	}
	for k, v := range s.milestones {
		m := *v
		c.milestones[k] = &m
	}
	for k, v := range s.requests {
		c.requests[k] = v.Clone()
	}
	for k, v := range s.titleChanges {
		c.titleChanges[k] = v.Clone()
	}
	for k, v := range s.discussions {
		c.discussions[k] = v.Clone()
	}
	return c
}

// Store holds projects and requests together so one unit of work can span
// both.
type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store {
	return &Store{st: newState()}
}

// Projects returns the project unit of work.
func (s *Store) Projects() projects.UnitOfWork {
	return projectUnitOfWork{store: s}
}

// Requests returns the request unit of work.
func (s *Store) Requests() requests.UnitOfWork {
	return requestUnitOfWork{store: s}
}

func (s *Store) do(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.st.clone()
	if err := fn(working); err != nil {
		return err
	}
	s.st = working
	return nil
}

func (s *Store) view(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

type projectUnitOfWork struct {
	store *Store
}

func (u projectUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, repo projects.Repository) error) error {
	return u.store.do(ctx, func(st *state) error {
		return fn(ctx, &projectRepo{st: st})
	})
}

func (u projectUnitOfWork) View(ctx context.Context, fn func(ctx context.Context, repo projects.Repository) error) error {
	return u.store.view(ctx, func(st *state) error {
		return fn(ctx, &projectRepo{st: st})
	})
}

type requestUnitOfWork struct {
	store *Store
}

func (u requestUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, repos requests.Repositories) error) error {
	return u.store.do(ctx, func(st *state) error {
		return fn(ctx, repositories(st))
	})
}

func (u requestUnitOfWork) View(ctx context.Context, fn func(ctx context.Context, repos requests.Repositories) error) error {
	return u.store.view(ctx, func(st *state) error {
		return fn(ctx, repositories(st))
	})
}

func repositories(st *state) requests.Repositories {
	return requests.Repositories{
		Requests: &requestRepo{st: st},
		Projects: &projectRepo{st: st},
	}
}
