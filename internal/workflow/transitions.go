package workflow

import (
	"simflow/portal-backend/pkg/workflows"
)

var projectMachine = workflows.NewStateMachine(map[ProjectStatus][]ProjectStatus{
	ProjectPending:   {ProjectActive, ProjectCancelled, ProjectArchived},
	ProjectActive:    {ProjectOnHold, ProjectSuspended, ProjectCompleted, ProjectCancelled, ProjectExpired, ProjectArchived},
	ProjectOnHold:    {ProjectActive, ProjectSuspended, ProjectCancelled, ProjectArchived},
	ProjectSuspended: {ProjectActive, ProjectOnHold, ProjectCancelled, ProjectArchived},
	ProjectCompleted: {ProjectArchived},
	ProjectCancelled: {ProjectArchived},
	ProjectExpired:   {ProjectActive, ProjectArchived},
	ProjectArchived:  {},
})

// CanTransitionProject reports whether from -> to is a project table edge.
func CanTransitionProject(from, to ProjectStatus) bool {
	return projectMachine.CanTransition(from, to)
}

// NextProjectStatuses lists the statuses reachable in one move.
func NextProjectStatuses(from ProjectStatus) []ProjectStatus {
	return projectMachine.GetAllowedTransitions(from)
}

// ValidateProjectTransition returns an *InvalidTransitionError for moves
// outside the table.
func ValidateProjectTransition(from, to ProjectStatus) error {
	if projectMachine.Validate(from, to) != nil {
		return &InvalidTransitionError{Entity: EntityProject, From: string(from), To: string(to)}
	}
	return nil
}

// RequestEdge is one action-labelled move in the request lifecycle.
type RequestEdge struct {
	From   RequestStatus
	Action Action
	To     RequestStatus
}

var requestEdges = []RequestEdge{
	{From: RequestSubmitted, Action: ActionStartReview, To: RequestManagerReview},
	{From: RequestSubmitted, Action: ActionDeny, To: RequestDenied},
	{From: RequestManagerReview, Action: ActionDeny, To: RequestDenied},
	{From: RequestManagerReview, Action: ActionAssign, To: RequestEngineeringReview},
	{From: RequestEngineeringReview, Action: ActionAcceptWork, To: RequestInProgress},
	{From: RequestEngineeringReview, Action: ActionRequestDiscussion, To: RequestDiscussion},
	{From: RequestDiscussion, Action: ActionResolveDiscussion, To: RequestEngineeringReview},
	{From: RequestInProgress, Action: ActionCompleteWork, To: RequestCompleted},
	{From: RequestCompleted, Action: ActionAcceptDelivery, To: RequestAccepted},
	{From: RequestCompleted, Action: ActionRequestRevision, To: RequestRevisionApproval},
	{From: RequestRevisionApproval, Action: ActionApproveRevision, To: RequestInProgress},
	{From: RequestRevisionApproval, Action: ActionDenyRevision, To: RequestCompleted},
	{From: RequestRevisionRequested, Action: ActionResumeReview, To: RequestManagerReview},
}

var requestMachine = func() *workflows.StateMachine[RequestStatus] {
	table := make(map[RequestStatus][]RequestStatus)
	for _, st := range requestStatuses {
		table[st] = nil
	}
	for _, e := range requestEdges {
		table[e.From] = append(table[e.From], e.To)
	}
	return workflows.NewStateMachine(table)
}()

// RequestEdges returns the request transition table.
func RequestEdges() []RequestEdge {
	return append([]RequestEdge(nil), requestEdges...)
}

// CanTransitionRequest reports whether from -> to is a request table edge.
func CanTransitionRequest(from, to RequestStatus) bool {
	return requestMachine.CanTransition(from, to)
}

// IsTerminalRequest reports whether nothing leaves the status.
func IsTerminalRequest(s RequestStatus) bool {
	return requestMachine.IsTerminal(s)
}

// RequestTarget resolves the status an action leads to from the current one.
func RequestTarget(from RequestStatus, action Action) (RequestStatus, error) {
	for _, e := range requestEdges {
		if e.From == from && e.Action == action {
			return e.To, nil
		}
	}
	return "", &InvalidTransitionError{Entity: EntityRequest, From: string(from), To: string(requestActionTarget(action))}
}

// RequestActionFor resolves the action that moves a request from -> to.
func RequestActionFor(from, to RequestStatus) (Action, error) {
	for _, e := range requestEdges {
		if e.From == from && e.To == to {
			return e.Action, nil
		}
	}
	return "", &InvalidTransitionError{Entity: EntityRequest, From: string(from), To: string(to)}
}

// requestActionTarget returns the status the action leads to from any
// source, for diagnostics when the action is invoked from the wrong status.
func requestActionTarget(action Action) RequestStatus {
	for _, e := range requestEdges {
		if e.Action == action {
			return e.To
		}
	}
	return ""
}
