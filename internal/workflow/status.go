package workflow

import (
	"errors"
	"fmt"
)

// ErrUnknownValue is wrapped by every parse failure of a closed enumeration.
var ErrUnknownValue = errors.New("unknown value")

// RequestStatus is the workflow status of a simulation request.
type RequestStatus string

const (
	RequestSubmitted         RequestStatus = "SUBMITTED"
	RequestManagerReview     RequestStatus = "MANAGER_REVIEW"
	RequestEngineeringReview RequestStatus = "ENGINEERING_REVIEW"
	RequestDiscussion        RequestStatus = "DISCUSSION"
	RequestInProgress        RequestStatus = "IN_PROGRESS"
	RequestCompleted         RequestStatus = "COMPLETED"
	RequestRevisionRequested RequestStatus = "REVISION_REQUESTED"
	RequestRevisionApproval  RequestStatus = "REVISION_APPROVAL"
	RequestAccepted          RequestStatus = "ACCEPTED"
	RequestDenied            RequestStatus = "DENIED"
)

// Legacy labels still referenced by list filters and sort order. They are
// never accepted as a stored status.
const (
	RequestFeasibilityReview  RequestStatus = "FEASIBILITY_REVIEW"
	RequestResourceAllocation RequestStatus = "RESOURCE_ALLOCATION"
)

var requestStatuses = []RequestStatus{
	RequestSubmitted,
	RequestManagerReview,
	RequestEngineeringReview,
	RequestDiscussion,
	RequestInProgress,
	RequestCompleted,
	RequestRevisionRequested,
	RequestRevisionApproval,
	RequestAccepted,
	RequestDenied,
}

// RequestStatuses returns the storable request statuses in workflow order.
func RequestStatuses() []RequestStatus {
	return append([]RequestStatus(nil), requestStatuses...)
}

// ParseRequestStatus rejects anything outside the storable vocabulary.
func ParseRequestStatus(s string) (RequestStatus, error) {
	for _, st := range requestStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", &ValidationError{Field: "status", Err: fmt.Errorf("%w: request status %q", ErrUnknownValue, s)}
}

// Valid reports whether s is a storable request status.
func (s RequestStatus) Valid() bool {
	_, err := ParseRequestStatus(string(s))
	return err == nil
}

// InEngineeringStage reports whether a request in this status must carry an assignee.
func (s RequestStatus) InEngineeringStage() bool {
	switch s {
	case RequestEngineeringReview, RequestDiscussion, RequestInProgress,
		RequestCompleted, RequestRevisionApproval, RequestAccepted:
		return true
	}
	return false
}

// ProjectStatus is the lifecycle status of a project hour budget.
type ProjectStatus string

const (
	ProjectPending   ProjectStatus = "PENDING"
	ProjectApproved  ProjectStatus = "APPROVED"
	ProjectActive    ProjectStatus = "ACTIVE"
	ProjectOnHold    ProjectStatus = "ON_HOLD"
	ProjectSuspended ProjectStatus = "SUSPENDED"
	ProjectCompleted ProjectStatus = "COMPLETED"
	ProjectCancelled ProjectStatus = "CANCELLED"
	ProjectExpired   ProjectStatus = "EXPIRED"
	ProjectArchived  ProjectStatus = "ARCHIVED"
)

var projectStatuses = []ProjectStatus{
	ProjectPending,
	ProjectApproved,
	ProjectActive,
	ProjectOnHold,
	ProjectSuspended,
	ProjectCompleted,
	ProjectCancelled,
	ProjectExpired,
	ProjectArchived,
}

// ProjectStatuses returns every project status.
func ProjectStatuses() []ProjectStatus {
	return append([]ProjectStatus(nil), projectStatuses...)
}

func ParseProjectStatus(s string) (ProjectStatus, error) {
	for _, st := range projectStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", &ValidationError{Field: "status", Err: fmt.Errorf("%w: project status %q", ErrUnknownValue, s)}
}

// AcceptsAllocations reports whether engineers may be assigned against the budget.
func (s ProjectStatus) AcceptsAllocations() bool {
	return s == ProjectActive || s == ProjectApproved
}

// RequestPriority is the urgency of a simulation request.
type RequestPriority string

const (
	PriorityLow    RequestPriority = "Low"
	PriorityMedium RequestPriority = "Medium"
	PriorityHigh   RequestPriority = "High"
)

func ParseRequestPriority(s string) (RequestPriority, error) {
	switch RequestPriority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return RequestPriority(s), nil
	}
	return "", &ValidationError{Field: "priority", Err: fmt.Errorf("%w: request priority %q", ErrUnknownValue, s)}
}

// ProjectPriority is the urgency of a project.
type ProjectPriority string

const (
	ProjectPriorityLow      ProjectPriority = "Low"
	ProjectPriorityMedium   ProjectPriority = "Medium"
	ProjectPriorityHigh     ProjectPriority = "High"
	ProjectPriorityCritical ProjectPriority = "Critical"
)

func ParseProjectPriority(s string) (ProjectPriority, error) {
	switch ProjectPriority(s) {
	case ProjectPriorityLow, ProjectPriorityMedium, ProjectPriorityHigh, ProjectPriorityCritical:
		return ProjectPriority(s), nil
	}
	return "", &ValidationError{Field: "priority", Err: fmt.Errorf("%w: project priority %q", ErrUnknownValue, s)}
}

// Role is the actor's role in the portal.
type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleManager  Role = "Manager"
	RoleEngineer Role = "Engineer"
	RoleEndUser  Role = "End-User"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleManager, RoleEngineer, RoleEndUser:
		return Role(s), nil
	}
	return "", &ValidationError{Field: "role", Err: fmt.Errorf("%w: role %q", ErrUnknownValue, s)}
}

// Privileged reports whether the role may approve projects on creation.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleManager
}

// EntityType names the aggregate a transition applies to.
type EntityType string

const (
	EntityRequest EntityType = "Request"
	EntityProject EntityType = "Project"
)

func ParseEntityType(s string) (EntityType, error) {
	switch EntityType(s) {
	case EntityRequest, EntityProject:
		return EntityType(s), nil
	}
	return "", &ValidationError{Field: "entity_type", Err: fmt.Errorf("%w: entity type %q", ErrUnknownValue, s)}
}
