package workflow

// Action is anything the capability gate can authorise.
type Action string

const (
	ActionStartReview       Action = "start_review"
	ActionDeny              Action = "deny"
	ActionAssign            Action = "assign"
	ActionAcceptWork        Action = "accept_work"
	ActionRequestDiscussion Action = "request_discussion"
	ActionResolveDiscussion Action = "resolve_discussion"
	ActionCompleteWork      Action = "complete_work"
	ActionAcceptDelivery    Action = "accept_delivery"
	ActionRequestRevision   Action = "request_revision"
	ActionApproveRevision   Action = "approve_revision"
	ActionDenyRevision      Action = "deny_revision"
	ActionResumeReview      Action = "resume_review"

	ActionSubmitRequest      Action = "submit_request"
	ActionEditTitle          Action = "edit_title"
	ActionProposeTitleChange Action = "propose_title_change"
	ActionReviewTitleChange  Action = "review_title_change"
	ActionEditDescription    Action = "edit_description"
	ActionComment            Action = "comment"
	ActionLogTime            Action = "log_time"
	ActionDeleteRequest      Action = "delete_request"
	ActionReassignRequester  Action = "reassign_requester"

	ActionCreateProject       Action = "create_project"
	ActionChangeProjectStatus Action = "change_project_status"
	ActionExtendProjectHours  Action = "extend_project_hours"
	ActionManageMilestones    Action = "manage_milestones"
)

// ParseRequestAction accepts only actions that move a request along its table.
func ParseRequestAction(s string) (Action, error) {
	for _, e := range requestEdges {
		if string(e.Action) == s {
			return e.Action, nil
		}
	}
	return "", Invalid("action", "%v: request action %q", ErrUnknownValue, s)
}

// Actor is the authenticated caller.
type Actor struct {
	ID   string
	Name string
	Role Role
}

// Subject is the slice of an entity the gate looks at.
type Subject struct {
	CreatedBy  *string
	AssignedTo *string
	Status     RequestStatus
}

// Relation restricts a rule to the actor's relationship with the subject.
type Relation int

const (
	RelationAny Relation = iota
	RelationOwner
	RelationAssignee
)

type rule struct {
	relation Relation
	statuses []RequestStatus
}

func anyone() rule {
	return rule{relation: RelationAny}
}

func owner(st ...RequestStatus) rule {
	return rule{relation: RelationOwner, statuses: st}
}

func assignee(st ...RequestStatus) rule {
	return rule{relation: RelationAssignee, statuses: st}
}

var commonRules = map[Action]rule{
	ActionSubmitRequest: anyone(),
	ActionComment:       anyone(),
	ActionCreateProject: anyone(),
}

// capabilities is the single source of truth for who may do what. Admin is
// handled before the lookup and never appears here.
var capabilities = map[Role]map[Action]rule{
	RoleManager: {
		ActionStartReview:         anyone(),
		ActionDeny:                anyone(),
		ActionAssign:              anyone(),
		ActionApproveRevision:     anyone(),
		ActionDenyRevision:        anyone(),
		ActionResolveDiscussion:   anyone(),
		ActionResumeReview:        anyone(),
		ActionReviewTitleChange:   anyone(),
		ActionEditTitle:           anyone(),
		ActionEditDescription:     anyone(),
		ActionChangeProjectStatus: anyone(),
		ActionExtendProjectHours:  anyone(),
		ActionManageMilestones:    anyone(),
	},
	RoleEngineer: {
		ActionAcceptWork:         assignee(),
		ActionCompleteWork:       assignee(),
		ActionLogTime:            assignee(),
		ActionRequestDiscussion:  assignee(RequestEngineeringReview),
		ActionProposeTitleChange: anyone(),
	},
	RoleEndUser: {
		ActionAcceptDelivery:    owner(RequestCompleted),
		ActionRequestRevision:   owner(RequestCompleted),
		ActionEditTitle:         owner(),
		ActionEditDescription:   owner(),
		ActionReviewTitleChange: owner(),
	},
}

// CanPerform is the role-capability gate. It is pure: the answer depends
// only on its arguments.
func CanPerform(actor Actor, action Action, subject Subject) bool {
	if actor.Role == RoleAdmin {
		return true
	}
	r, ok := capabilities[actor.Role][action]
	if !ok {
		r, ok = commonRules[action]
		if !ok {
			return false
		}
	}
	switch r.relation {
	case RelationOwner:
		if !matches(subject.CreatedBy, actor.ID) {
			return false
		}
	case RelationAssignee:
		if !matches(subject.AssignedTo, actor.ID) {
			return false
		}
	}
	if len(r.statuses) == 0 {
		return true
	}
	for _, st := range r.statuses {
		if st == subject.Status {
			return true
		}
	}
	return false
}

// Authorize is CanPerform returning a *ForbiddenError.
func Authorize(actor Actor, action Action, subject Subject) error {
	if !CanPerform(actor, action, subject) {
		return &ForbiddenError{Role: actor.Role, Action: action}
	}
	return nil
}

// AllowedRequestActions lists the lifecycle actions the actor may take on
// the subject right now: the gate passes and an edge leaves its status.
func AllowedRequestActions(actor Actor, subject Subject) []Action {
	var actions []Action
	for _, e := range requestEdges {
		if e.From != subject.Status {
			continue
		}
		if CanPerform(actor, e.Action, subject) {
			actions = append(actions, e.Action)
		}
	}
	return actions
}

// TitleEditMode tells a client how the actor may change a request title.
type TitleEditMode string

const (
	TitleEditDirect  TitleEditMode = "direct"
	TitleEditPropose TitleEditMode = "propose"
	TitleEditNone    TitleEditMode = "none"
)

func TitleEditModeFor(actor Actor, subject Subject) TitleEditMode {
	if CanPerform(actor, ActionEditTitle, subject) {
		return TitleEditDirect
	}
	if CanPerform(actor, ActionProposeTitleChange, subject) {
		return TitleEditPropose
	}
	return TitleEditNone
}

func matches(id *string, actorID string) bool {
	return id != nil && actorID != "" && *id == actorID
}
