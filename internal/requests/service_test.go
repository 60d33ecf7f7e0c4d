package requests_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"simflow/portal-backend/internal/events"
	"simflow/portal-backend/internal/events/eventstest"
	"simflow/portal-backend/internal/projects"
	"simflow/portal-backend/internal/requests"
	"simflow/portal-backend/internal/storage/memory"
	"simflow/portal-backend/internal/workflow"
)

var (
	admin     = workflow.Actor{ID: "a-1", Name: "Ada", Role: workflow.RoleAdmin}
	manager   = workflow.Actor{ID: "m-1", Name: "Max", Role: workflow.RoleManager}
	engineer  = workflow.Actor{ID: "e-1", Name: "Eve", Role: workflow.RoleEngineer}
	bystander = workflow.Actor{ID: "e-2", Name: "Ben", Role: workflow.RoleEngineer}
	requester = workflow.Actor{ID: "u-1", Name: "Uma", Role: workflow.RoleEndUser}
	stranger  = workflow.Actor{ID: "u-2", Name: "Sam", Role: workflow.RoleEndUser}
)

type fixture struct {
	store    *memory.Store
	projects *projects.Service
	service  *requests.Service
	recorder *eventstest.Recorder
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	emitter, recorder := eventstest.NewEmitter()
	f := &fixture{
		store:    store,
		recorder: recorder,
		now:      time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.projects = projects.NewService(store.Projects(), emitter, zap.NewNop()).WithClock(clock)
	f.service = requests.NewService(store.Requests(), emitter, zap.NewNop(), requests.WithClock(clock))
	return f
}

func (f *fixture) project(t *testing.T, hours float64) *projects.Project {
	t.Helper()
	p, err := f.projects.CreateProject(context.Background(), manager, projects.CreateProjectRequest{
		Name:       "Wing flutter",
		TotalHours: hours,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) submit(t *testing.T, projectID string, estimated float64) *requests.Request {
	t.Helper()
	r, err := f.service.CreateRequest(context.Background(), requester, requests.CreateRequestRequest{
		Title:          "Flutter margin at Mach 0.8",
		Priority:       string(workflow.PriorityHigh),
		EstimatedHours: &estimated,
		ProjectID:      &projectID,
	})
	require.NoError(t, err)
	return r
}

func (f *fixture) act(t *testing.T, actor workflow.Actor, r *requests.Request, action workflow.Action, extra requests.Extra) *requests.Request {
	t.Helper()
	got, err := f.service.Execute(context.Background(), actor, r.ID, action, requests.ActionInput{
		ExpectedVersion: r.Version,
		Extra:           extra,
	})
	require.NoError(t, err, "%s from %s", action, r.Status)
	return got
}

// assigned drives a fresh request to ENGINEERING_REVIEW with hours allocated.
func (f *fixture) assigned(t *testing.T, p *projects.Project, hours float64) *requests.Request {
	t.Helper()
	r := f.submit(t, p.ID, hours)
	r = f.act(t, manager, r, workflow.ActionStartReview, requests.Extra{})
	return f.act(t, manager, r, workflow.ActionAssign, requests.Extra{EngineerID: engineer.ID, EngineerName: engineer.Name})
}

func (f *fixture) usedHours(t *testing.T, projectID string) float64 {
	t.Helper()
	p, err := f.projects.GetProject(context.Background(), projectID)
	require.NoError(t, err)
	return p.UsedHours
}

func (f *fixture) ledger(t *testing.T, projectID string) []*projects.HourTransaction {
	t.Helper()
	txs, err := f.projects.GetLedger(context.Background(), projectID)
	require.NoError(t, err)
	return txs
}

func hours(h float64) *float64 { return &h }

func TestCreateRequest(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, 100)

	r := f.submit(t, p.ID, 12)
	assert.Equal(t, workflow.RequestSubmitted, r.Status)
	assert.Equal(t, 1, r.Version)
	assert.Equal(t, p.Code, r.ProjectCode)
	assert.Equal(t, requester.ID, *r.CreatedBy)

	_, err := f.service.CreateRequest(context.Background(), requester, requests.CreateRequestRequest{
		Title:     "orphan",
		ProjectID: strPtr("missing"),
	})
	var v *workflow.ValidationError
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "project_id", v.Field)
}

func TestAssignInsufficientBudgetMutatesNothing(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, 100)
	r := f.submit(t, p.ID, 120)
	r = f.act(t, manager, r, workflow.ActionStartReview, requests.Extra{})
	f.recorder.Reset()

	_, err := f.service.Execute(context.Background(), manager, r.ID, workflow.ActionAssign, requests.ActionInput{
		ExpectedVersion: r.Version,
		Extra:           requests.Extra{EngineerID: engineer.ID},
	})

	var budget *workflow.InsufficientBudgetError
	require.ErrorAs(t, err, &budget)
	assert.Equal(t, 100.0, budget.Available)
	assert.Equal(t, 120.0, budget.Requested)

	assert.Equal(t, 0.0, f.usedHours(t, p.ID))
	assert.Empty(t, f.ledger(t, p.ID))
	after, err := f.service.GetRequest(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.RequestManagerReview, after.Status)
	assert.Nil(t, after.AssignedTo)
	assert.Equal(t, r.Version, after.Version)
	assert.Empty(t, f.recorder.Notifications())
	assert.Empty(t, f.recorder.AuditEntries())
}

func TestAssignAllocatesExactlyOnce(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, 100)
	f.assigned(t, f.project(t, 50), 5) // unrelated project

	before := f.usedHours(t, p.ID)
	r := f.assigned(t, p, 30)

	assert.Equal(t, workflow.RequestEngineeringReview, r.Status)
	assert.Equal(t, engineer.ID, *r.AssignedTo)
	assert.Equal(t, manager.ID, *r.AssignedBy)
	assert.Equal(t, 30.0, r.Allocated())
	assert.Equal(t, before+30, f.usedHours(t, p.ID))

	txs := f.ledger(t, p.ID)
	require.Len(t, txs, 1)
	assert.Equal(t, projects.TxAllocation, txs[0].Type)
	assert.Equal(t, txs[0].BalanceBefore+30, txs[0].BalanceAfter)
	assert.Equal(t, r.ID, *txs[0].RequestID)

	var assignedNote *events.Notification
	for _, n := range f.recorder.Notifications() {
		if n.Type == events.TypeRequestAssigned && n.EntityID == r.ID {
			assignedNote = &n
		}
	}
	require.NotNil(t, assignedNote)
	assert.Equal(t, engineer.ID, assignedNote.RecipientUserID)
}

func TestAssignPayloadOverridesEstimate(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, 100)
	r := f.submit(t, p.ID, 10)
	r = f.act(t, manager, r, workflow.ActionStartReview, requests.Extra{})
	r = f.act(t, manager, r, workflow.ActionAssign, requests.Extra{EngineerID: engineer.ID, Hours: hours(14.5)})

	assert.Equal(t, 14.5, r.Allocated())
	assert.Equal(t, 14.5, f.usedHours(t, p.ID))
}

func TestAssignRejectsProjectNotAcceptingAllocations(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, 100)
	_, err := f.projects.TransitionStatus(context.Background(), manager, p.ID, projects.TransitionInput{
		Target: workflow.ProjectOnHold, Reason: "Client budget freeze", ExpectedVersion: p.Version,
	})
	require.NoError(t, err)

	r := f.submit(t, p.ID, 10)
	r = f.act(t, manager, r, workflow.ActionStartReview, requests.Extra{})
	_, err = f.service.Execute(context.Background(), manager, r.ID, workflow.ActionAssign, requests.ActionInput{
		ExpectedVersion: r.Version,
		Extra:           requests.Extra{EngineerID: engineer.ID},
	})
	var v *workflow.ValidationError
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "project_id", v.Field)
	assert.Equal(t, 0.0, f.usedHours(t, p.ID))
}

func TestCompleteWorkByOtherEngineerIsForbidden(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, 100)
	r := f.assigned(t, p, 10)

	// Forbidden regardless of status: before and after accept_work.
	for i := 0; i < 2; i++ {
		_, err := f.service.Execute(context.Background(), bystander, r.ID, workflow.ActionCompleteWork, requests.ActionInput{
			ExpectedVersion: r.Version,
		})
		var forbidden *workflow.ForbiddenError
		require.ErrorAs(t, err, &forbidden)
		assert.Equal(t, workflow.ActionCompleteWork, forbidden.Action)
		if i == 0 {
			r = f.act(t, engineer, r, workflow.ActionAcceptWork, requests.Extra{})
		}
	}

	got, err := f.service.GetRequest(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.RequestInProgress, got.Status)
}

func TestHappyPathRoundTrip(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, 100)

	r := f.assigned(t, p, 30)
	r = f.act(t, engineer, r, workflow.ActionAcceptWork, requests.Extra{})
	assert.Equal(t, workflow.RequestInProgress, r.Status)
	r = f.act(t, engineer, r, workflow.ActionCompleteWork, requests.Extra{})
	assert.Equal(t, workflow.RequestCompleted, r.Status)
	r = f.act(t, requester, r, workflow.ActionAcceptDelivery, requests.Extra{})
	assert.Equal(t, workflow.RequestAccepted, r.Status)

	assert.True(t, workflow.IsTerminalRequest(r.Status))
	assert.Equal(t, 30.0, f.usedHours(t, p.ID))
	txs := f.ledger(t, p.ID)
	assert.Len(t, txs, 1)
	assert.Equal(t, 30.0, projects.UsedHoursFromLedger(txs))
	assert.Equal(t, 6, r.Version)
}

func TestRevisionCycle(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, 100)
	r := f.assigned(t, p, 8)
	r = f.act(t, engineer, r, workflow.ActionAcceptWork, requests.Extra{})
	r = f.act(t, engineer, r, workflow.ActionCompleteWork, requests.Extra{})

	_, err := f.service.Execute(context.Background(), stranger, r.ID, workflow.ActionRequestRevision, requests.ActionInput{ExpectedVersion: r.Version})
	var forbidden *workflow.ForbiddenError
	require.ErrorAs(t, err, &forbidden)

	r = f.act(t, requester, r, workflow.ActionRequestRevision, requests.Extra{Reason: "Mesh too coarse"})
	assert.Equal(t, workflow.RequestRevisionApproval, r.Status)
	r = f.act(t, manager, r, workflow.ActionDenyRevision, requests.Extra{})
	assert.Equal(t, workflow.RequestCompleted, r.Status)
	r = f.act(t, requester, r, workflow.ActionRequestRevision, requests.Extra{})
	r = f.act(t, manager, r, workflow.ActionApproveRevision, requests.Extra{})
	assert.Equal(t, workflow.RequestInProgress, r.Status)
	assert.Equal(t, 8.0, f.usedHours(t, p.ID))
}

func TestDiscussionOverrideAdjustsByDelta(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, 100)
	r := f.assigned(t, p, 8)

	r = f.act(t, engineer, r, workflow.ActionRequestDiscussion, requests.Extra{
		Reason:         "Geometry is simpler than expected",
		SuggestedHours: hours(6),
	})
	assert.Equal(t, workflow.RequestDiscussion, r.Status)

	r = f.act(t, manager, r, workflow.ActionResolveDiscussion, requests.Extra{
		Resolution:      string(requests.ResolutionOverride),
		AllocatedHours:  hours(5),
		ManagerResponse: "Five is enough",
	})
	assert.Equal(t, workflow.RequestEngineeringReview, r.Status)
	assert.Equal(t, 5.0, r.Allocated())
	assert.Equal(t, 5.0, f.usedHours(t, p.ID))

	txs := f.ledger(t, p.ID)
	require.Len(t, txs, 2)
	adj := txs[1]
	assert.Equal(t, projects.TxAdjustment, adj.Type)
	assert.Equal(t, -3.0, adj.Hours)
	assert.Equal(t, 8.0, adj.BalanceBefore)
	assert.Equal(t, 5.0, adj.BalanceAfter)

	discussions, err := f.service.ListDiscussions(context.Background(), r.ID)
	require.NoError(t, err)
	require.Len(t, discussions, 1)
	assert.Equal(t, requests.DiscussionOverridden, discussions[0].Status)
	assert.Equal(t, 5.0, *discussions[0].ResolvedHours)
}

func TestDiscussionApproveAndDeny(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, 100)

	approved := f.assigned(t, p, 8)
	approved = f.act(t, engineer, approved, workflow.ActionRequestDiscussion, requests.Extra{Reason: "more", SuggestedHours: hours(12)})
	approved = f.act(t, manager, approved, workflow.ActionResolveDiscussion, requests.Extra{Resolution: "approve"})
	assert.Equal(t, 12.0, approved.Allocated())

	denied := f.assigned(t, p, 8)
	denied = f.act(t, engineer, denied, workflow.ActionRequestDiscussion, requests.Extra{Reason: "more", SuggestedHours: hours(20)})
	denied = f.act(t, manager, denied, workflow.ActionResolveDiscussion, requests.Extra{Resolution: "deny"})
	assert.Equal(t, 8.0, denied.Allocated())

	assert.Equal(t, 20.0, f.usedHours(t, p.ID))
}

func TestRequestDiscussionValidation(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, 100)
	r := f.assigned(t, p, 8)

	_, err := f.service.Execute(context.Background(), engineer, r.ID, workflow.ActionRequestDiscussion, requests.ActionInput{
		ExpectedVersion: r.Version,
		Extra:           requests.Extra{Reason: "  "},
	})
	var v *workflow.ValidationError
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "reason", v.Field)

	_, err = f.service.Execute(context.Background(), manager, r.ID, workflow.ActionResolveDiscussion, requests.ActionInput{
		ExpectedVersion: r.Version,
		Extra:           requests.Extra{Resolution: "approve"},
	})
	var invalid *workflow.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
}

func TestDenyReleasesAllocation(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, 100)
	r := f.submit(t, p.ID, 10)
	r = f.act(t, manager, r, workflow.ActionStartReview, requests.Extra{})

	r = f.act(t, manager, r, workflow.ActionDeny, requests.Extra{Reason: "Out of scope"})
	assert.Equal(t, workflow.RequestDenied, r.Status)
	assert.True(t, workflow.IsTerminalRequest(r.Status))

	_, err := f.service.Execute(context.Background(), admin, r.ID, workflow.ActionStartReview, requests.ActionInput{ExpectedVersion: r.Version})
	var invalid *workflow.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, string(workflow.RequestDenied), invalid.From)
}

func TestDeleteRequestReturnsHours(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, 100)
	r := f.assigned(t, p, 25)
	require.Equal(t, 25.0, f.usedHours(t, p.ID))

	err := f.service.DeleteRequest(context.Background(), manager, r.ID)
	var forbidden *workflow.ForbiddenError
	require.ErrorAs(t, err, &forbidden)

	require.NoError(t, f.service.DeleteRequest(context.Background(), admin, r.ID))
	assert.Equal(t, 0.0, f.usedHours(t, p.ID))
	txs := f.ledger(t, p.ID)
	require.Len(t, txs, 2)
	assert.Equal(t, projects.TxDeallocation, txs[1].Type)
	assert.Equal(t, -25.0, txs[1].Hours)

	_, err = f.service.GetRequest(context.Background(), r.ID)
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestExecuteVersionConflict(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, 100)
	r := f.submit(t, p.ID, 10)

	_, err := f.service.Execute(context.Background(), manager, r.ID, workflow.ActionStartReview, requests.ActionInput{ExpectedVersion: 4})
	var conflict *workflow.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, 1, conflict.Actual)
}

func TestExecuteFailureOrder(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, 100)
	r := f.submit(t, p.ID, 10)

	_, err := f.service.Execute(context.Background(), engineer, "missing", workflow.ActionAssign, requests.ActionInput{})
	assert.ErrorIs(t, err, workflow.ErrNotFound)

	// Forbidden wins over an edge that does not exist.
	_, err = f.service.Execute(context.Background(), requester, r.ID, workflow.ActionAssign, requests.ActionInput{})
	var forbidden *workflow.ForbiddenError
	require.ErrorAs(t, err, &forbidden)

	// A missing edge wins over a missing payload.
	_, err = f.service.Execute(context.Background(), manager, r.ID, workflow.ActionAssign, requests.ActionInput{})
	var invalid *workflow.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
}

func TestTransitionToResolvesAction(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, 100)
	r := f.submit(t, p.ID, 10)

	got, err := f.service.TransitionTo(context.Background(), manager, r.ID, workflow.RequestManagerReview, requests.ActionInput{ExpectedVersion: 1})
	require.NoError(t, err)
	assert.Equal(t, workflow.RequestManagerReview, got.Status)

	_, err = f.service.TransitionTo(context.Background(), manager, r.ID, workflow.RequestManagerReview, requests.ActionInput{ExpectedVersion: 2})
	var invalid *workflow.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
}

func TestConcurrentAssignsNeverOverdrawProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, 100)

	const n = 10
	pending := make([]*requests.Request, n)
	for i := range pending {
		r := f.submit(t, p.ID, 30)
		pending[i] = f.act(t, manager, r, workflow.ActionStartReview, requests.Extra{})
	}

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i, r := range pending {
		wg.Add(1)
		go func(i int, r *requests.Request) {
			defer wg.Done()
			_, errs[i] = f.service.Execute(ctx, manager, r.ID, workflow.ActionAssign, requests.ActionInput{
				ExpectedVersion: r.Version,
				Extra:           requests.Extra{EngineerID: engineer.ID, EngineerName: engineer.Name},
			})
		}(i, r)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var budget *workflow.InsufficientBudgetError
		assert.ErrorAs(t, err, &budget)
	}
	assert.Equal(t, 3, succeeded)
	assert.Equal(t, 90.0, f.usedHours(t, p.ID))
	txs := f.ledger(t, p.ID)
	assert.Len(t, txs, 3)
	assert.Equal(t, 90.0, projects.UsedHoursFromLedger(txs))
}

func TestConcurrentDeniesApplyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, 100)
	r := f.submit(t, p.ID, 10)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Execute(ctx, manager, r.ID, workflow.ActionDeny, requests.ActionInput{
				ExpectedVersion: r.Version,
				Extra:           requests.Extra{Reason: "Out of scope"},
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var failures []error
	for err := range errs {
		if err != nil {
			failures = append(failures, err)
		}
	}
	require.Len(t, failures, 1)
	var invalid *workflow.InvalidTransitionError
	var conflict *workflow.ConflictError
	assert.True(t, errors.As(failures[0], &invalid) || errors.As(failures[0], &conflict), failures[0].Error())

	got, err := f.service.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.RequestDenied, got.Status)
	assert.Equal(t, r.Version+1, got.Version)
}

func TestTransitionToChecksRoleBeforeTable(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, 100)
	r := f.assigned(t, p, 10)
	ctx := context.Background()
	f.recorder.Reset()

	tests := []struct {
		name      string
		actor     workflow.Actor
		target    workflow.RequestStatus
		forbidden bool
	}{
		{name: "other engineer completing", actor: bystander, target: workflow.RequestCompleted, forbidden: true},
		{name: "non-owner accepting delivery", actor: stranger, target: workflow.RequestAccepted, forbidden: true},
		{name: "engineer denying", actor: engineer, target: workflow.RequestDenied, forbidden: true},
		{name: "assignee completing too early", actor: engineer, target: workflow.RequestCompleted},
		{name: "owner accepting too early", actor: requester, target: workflow.RequestAccepted},
		{name: "admin skipping ahead", actor: admin, target: workflow.RequestAccepted},
		{name: "target with no inbound edge", actor: bystander, target: workflow.RequestSubmitted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.TransitionTo(ctx, tt.actor, r.ID, tt.target, requests.ActionInput{ExpectedVersion: r.Version})
			if tt.forbidden {
				var forbidden *workflow.ForbiddenError
				require.ErrorAs(t, err, &forbidden)
				assert.Equal(t, tt.actor.Role, forbidden.Role)
			} else {
				var invalid *workflow.InvalidTransitionError
				require.ErrorAs(t, err, &invalid)
			}
		})
	}

	got, err := f.service.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.RequestEngineeringReview, got.Status)
	assert.Equal(t, r.Version, got.Version)
	assert.Empty(t, f.recorder.Notifications())
	assert.Empty(t, f.recorder.AuditEntries())
}

func TestAllowedActionsAgreeWithExecute(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, 100)
	r := f.assigned(t, p, 10)

	for _, actor := range []workflow.Actor{admin, manager, engineer, bystander, requester, stranger} {
		allowed, err := f.service.AllowedActions(context.Background(), actor, r.ID)
		require.NoError(t, err)
		for _, edge := range workflow.RequestEdges() {
			if edge.From != r.Status {
				continue
			}
			gate := workflow.CanPerform(actor, edge.Action, r.Subject())
			assert.Equal(t, gate, contains(allowed.Actions, edge.Action), "%s %s", actor.Role, edge.Action)
		}
	}

	engineerView, err := f.service.AllowedActions(context.Background(), engineer, r.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []workflow.Action{workflow.ActionAcceptWork, workflow.ActionRequestDiscussion}, engineerView.Actions)
	assert.True(t, engineerView.LogTime)
	assert.Equal(t, workflow.TitleEditPropose, engineerView.TitleEdit)
}

func TestEndToEndBudgetFreeze(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, 100)
	require.Equal(t, 0.0, p.UsedHours)

	f.assigned(t, p, 30)
	assert.Equal(t, 30.0, f.usedHours(t, p.ID))

	current, err := f.projects.GetProject(ctx, p.ID)
	require.NoError(t, err)
	held, err := f.projects.TransitionStatus(ctx, manager, p.ID, projects.TransitionInput{
		Target:          workflow.ProjectOnHold,
		Reason:          "Client budget freeze",
		ExpectedVersion: current.Version,
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.ProjectOnHold, held.Status)
	assert.Equal(t, 30.0, held.UsedHours)

	history, err := f.projects.GetHistory(ctx, p.ID)
	require.NoError(t, err)
	last := history[len(history)-1]
	assert.Equal(t, workflow.ProjectOnHold, last.ToStatus)
	assert.Equal(t, "Client budget freeze", last.Reason)

	fresh := f.project(t, 100)
	_, err = f.projects.TransitionStatus(ctx, manager, fresh.ID, projects.TransitionInput{
		Target:          workflow.ProjectOnHold,
		Reason:          "",
		ExpectedVersion: fresh.Version,
	})
	var required *workflow.ReasonRequiredError
	require.ErrorAs(t, err, &required)
	freshHistory, err := f.projects.GetHistory(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Len(t, freshHistory, 1)
}

func TestListRequestsScopesByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, 100)
	mine := f.assigned(t, p, 5)
	other, err := f.service.CreateRequest(ctx, stranger, requests.CreateRequestRequest{Title: "Other", Priority: "Low"})
	require.NoError(t, err)

	list, err := f.service.ListRequests(ctx, requester, requests.ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{mine.ID}, viewIDs(list))

	list, err = f.service.ListRequests(ctx, engineer, requests.ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{mine.ID}, viewIDs(list))

	list, err = f.service.ListRequests(ctx, bystander, requests.ListQuery{})
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = f.service.ListRequests(ctx, manager, requests.ListQuery{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{mine.ID, other.ID}, viewIDs(list))

	_, err = f.service.ListRequests(ctx, manager, requests.ListQuery{Statuses: []string{"FEASIBILITY_REVIEW"}})
	var v *workflow.ValidationError
	assert.ErrorAs(t, err, &v)
}

func TestListRequestsDerivedFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, 100)
	old := f.submit(t, p.ID, 5)
	f.now = f.now.Add(45 * 24 * time.Hour)
	recent := f.submit(t, p.ID, 5)

	yes := true
	list, err := f.service.ListRequests(ctx, manager, requests.ListQuery{Archived: &yes})
	require.NoError(t, err)
	assert.Equal(t, []string{old.ID}, viewIDs(list))

	list, err = f.service.ListRequests(ctx, manager, requests.ListQuery{NeedsAttention: &yes})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{old.ID, recent.ID}, viewIDs(list))

	list, err = f.service.ListRequests(ctx, manager, requests.ListQuery{Limit: 1})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, recent.ID, list[0].ID)
}

func TestTitleEditing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, 100)
	r := f.assigned(t, p, 5)

	_, err := f.service.UpdateTitle(ctx, engineer, r.ID, requests.UpdateTextRequest{Value: "Renamed"})
	var forbidden *workflow.ForbiddenError
	require.ErrorAs(t, err, &forbidden)

	tc, err := f.service.ProposeTitleChange(ctx, engineer, r.ID, requests.ProposeTitleRequest{ProposedTitle: "Flutter at Mach 0.85", Reason: "Scope changed"})
	require.NoError(t, err)
	assert.Equal(t, requests.TitleChangePending, tc.Status)

	_, err = f.service.ReviewTitleChange(ctx, stranger, tc.ID, requests.ReviewTitleRequest{Approve: true})
	require.ErrorAs(t, err, &forbidden)

	reviewed, err := f.service.ReviewTitleChange(ctx, requester, tc.ID, requests.ReviewTitleRequest{Approve: true})
	require.NoError(t, err)
	assert.Equal(t, requests.TitleChangeApproved, reviewed.Status)

	got, err := f.service.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Flutter at Mach 0.85", got.Title)

	_, err = f.service.ReviewTitleChange(ctx, requester, tc.ID, requests.ReviewTitleRequest{Approve: false})
	var v *workflow.ValidationError
	assert.ErrorAs(t, err, &v)

	f.recorder.Reset()
	edited, err := f.service.UpdateDescription(ctx, requester, r.ID, requests.UpdateTextRequest{Value: "  New scope\n", Version: got.Version})
	require.NoError(t, err)
	assert.Equal(t, "New scope", edited.Description)
	stored, err := f.service.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "New scope", stored.Description)
	audits := f.recorder.AuditEntries()
	require.Len(t, audits, 1)
	assert.Equal(t, stored.Description, audits[0].Details["after"])

	_, err = f.service.UpdateDescription(ctx, requester, r.ID, requests.UpdateTextRequest{Value: "stale", Version: got.Version})
	var conflict *workflow.ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestCommentsAndTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, 100)
	submitted := f.submit(t, p.ID, 5)
	r := f.assigned(t, p, 5)
	f.recorder.Reset()

	_, err := f.service.AddComment(ctx, engineer, r.ID, requests.CommentRequest{Body: "Mesh ready"})
	require.NoError(t, err)
	comments, err := f.service.ListComments(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, comments, 1)
	notes := f.recorder.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, requester.ID, notes[0].RecipientUserID)

	_, err = f.service.LogTime(ctx, engineer, r.ID, requests.TimeEntryRequest{Hours: 2.5})
	require.NoError(t, err)
	_, err = f.service.LogTime(ctx, bystander, r.ID, requests.TimeEntryRequest{Hours: 1})
	var forbidden *workflow.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
	_, err = f.service.LogTime(ctx, admin, submitted.ID, requests.TimeEntryRequest{Hours: 1})
	var v *workflow.ValidationError
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "status", v.Field)

	entries, err := f.service.ListTimeEntries(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 2.5, entries[0].Hours)
}

func TestSearchFallsBackToScan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, 100)
	r := f.submit(t, p.ID, 5)

	found, err := f.service.Search(ctx, manager, "mach", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{r.ID}, viewIDs(found))

	found, err = f.service.Search(ctx, stranger, "mach", 10)
	require.NoError(t, err)
	assert.Empty(t, found)

	_, err = f.service.Search(ctx, manager, " ", 10)
	var v *workflow.ValidationError
	assert.ErrorAs(t, err, &v)
}

func contains(list []workflow.Action, a workflow.Action) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}

func viewIDs(list []requests.RequestView) []string {
	ids := make([]string, 0, len(list))
	for _, v := range list {
		ids = append(ids, v.ID)
	}
	return ids
}

func strPtr(s string) *string { return &s }
