// Package transitions is the single entry point that moves either a project
// or a request to a target status.
package transitions

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"simflow/portal-backend/internal/projects"
	"simflow/portal-backend/internal/requests"
	"simflow/portal-backend/internal/workflow"
)

// Input addresses one transition by entity and target status.
type Input struct {
	EntityType      workflow.EntityType
	EntityID        string
	TargetStatus    string
	Actor           workflow.Actor
	Reason          string
	Extra           requests.Extra
	ExpectedVersion int
}

// Result is the entity after the transition. Exactly one of Project and
// Request is set.
type Result struct {
	EntityType workflow.EntityType `json:"entity_type"`
	EntityID   string              `json:"entity_id"`
	From       string              `json:"from"`
	To         string              `json:"to"`
	Version    int                 `json:"version"`
	Project    *projects.Project   `json:"project,omitempty"`
	Request    *requests.Request   `json:"request,omitempty"`
}

// ProjectService is the slice of projects.Service the executor drives.
type ProjectService interface {
	GetProject(ctx context.Context, id string) (*projects.Project, error)
	TransitionStatus(ctx context.Context, actor workflow.Actor, id string, in projects.TransitionInput) (*projects.Project, error)
}

// RequestService is the slice of requests.Service the executor drives.
type RequestService interface {
	GetRequest(ctx context.Context, id string) (*requests.Request, error)
	TransitionTo(ctx context.Context, actor workflow.Actor, id string, target workflow.RequestStatus, in requests.ActionInput) (*requests.Request, error)
}

type Executor struct {
	projects ProjectService
	requests RequestService
	logger   *zap.Logger
}

func NewExecutor(projects ProjectService, requests RequestService, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{projects: projects, requests: requests, logger: logger}
}

// Execute validates the input and hands it to the owning service, which runs
// it as one unit of work.
func (e *Executor) Execute(ctx context.Context, in Input) (*Result, error) {
	if strings.TrimSpace(in.EntityID) == "" {
		return nil, workflow.Invalid("entity_id", "entity id is required")
	}
	switch in.EntityType {
	case workflow.EntityProject:
		return e.executeProject(ctx, in)
	case workflow.EntityRequest:
		return e.executeRequest(ctx, in)
	}
	_, err := workflow.ParseEntityType(string(in.EntityType))
	return nil, err
}

func (e *Executor) executeProject(ctx context.Context, in Input) (*Result, error) {
	target, err := workflow.ParseProjectStatus(in.TargetStatus)
	if err != nil {
		return nil, err
	}
	before, err := e.projects.GetProject(ctx, in.EntityID)
	if err != nil {
		return nil, err
	}
	p, err := e.projects.TransitionStatus(ctx, in.Actor, in.EntityID, projects.TransitionInput{
		Target:          target,
		Reason:          in.Reason,
		ExpectedVersion: in.ExpectedVersion,
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("project transitioned",
		zap.String("project_id", p.ID),
		zap.String("from", string(before.Status)),
		zap.String("to", string(p.Status)),
		zap.String("actor_id", in.Actor.ID))
	return &Result{
		EntityType: workflow.EntityProject,
		EntityID:   p.ID,
		From:       string(before.Status),
		To:         string(p.Status),
		Version:    p.Version,
		Project:    p,
	}, nil
}

func (e *Executor) executeRequest(ctx context.Context, in Input) (*Result, error) {
	target, err := workflow.ParseRequestStatus(in.TargetStatus)
	if err != nil {
		return nil, err
	}
	before, err := e.requests.GetRequest(ctx, in.EntityID)
	if err != nil {
		return nil, err
	}
	extra := in.Extra
	if strings.TrimSpace(extra.Reason) == "" {
		extra.Reason = in.Reason
	}
	r, err := e.requests.TransitionTo(ctx, in.Actor, in.EntityID, target, requests.ActionInput{
		ExpectedVersion: in.ExpectedVersion,
		Extra:           extra,
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("request transitioned",
		zap.String("request_id", r.ID),
		zap.String("from", string(before.Status)),
		zap.String("to", string(r.Status)),
		zap.String("actor_id", in.Actor.ID))
	return &Result{
		EntityType: workflow.EntityRequest,
		EntityID:   r.ID,
		From:       string(before.Status),
		To:         string(r.Status),
		Version:    r.Version,
		Request:    r,
	}, nil
}
