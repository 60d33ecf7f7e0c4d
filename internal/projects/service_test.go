package projects_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"simflow/portal-backend/internal/events"
	"simflow/portal-backend/internal/events/eventstest"
	"simflow/portal-backend/internal/projects"
	"simflow/portal-backend/internal/storage/memory"
	"simflow/portal-backend/internal/workflow"
)

var (
	admin    = workflow.Actor{ID: "a-1", Name: "Ada", Role: workflow.RoleAdmin}
	manager  = workflow.Actor{ID: "m-1", Name: "Max", Role: workflow.RoleManager}
	engineer = workflow.Actor{ID: "e-1", Name: "Eve", Role: workflow.RoleEngineer}
	endUser  = workflow.Actor{ID: "u-1", Name: "Uma", Role: workflow.RoleEndUser}
)

type fixture struct {
	store    *memory.Store
	service  *projects.Service
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
		now:      time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC),
	}
	f.service = projects.NewService(store.Projects(), emitter, zap.NewNop()).
		WithClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) create(t *testing.T, actor workflow.Actor, hours float64) *projects.Project {
	t.Helper()
	p, err := f.service.CreateProject(context.Background(), actor, projects.CreateProjectRequest{
		Name:       "Crash sim",
		TotalHours: hours,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) get(t *testing.T, id string) *projects.Project {
	t.Helper()
	p, err := f.service.GetProject(context.Background(), id)
	require.NoError(t, err)
	return p
}

func TestCreateProject(t *testing.T) {
	f := newFixture(t)

	first := f.create(t, manager, 100)
	second := f.create(t, endUser, 40)

	assert.Equal(t, "100001-2025", first.Code)
	assert.Equal(t, "100002-2025", second.Code)
	assert.Equal(t, workflow.ProjectActive, first.Status)
	assert.Equal(t, workflow.ProjectPending, second.Status)
	assert.Equal(t, 1, first.Version)

	history, err := f.service.GetHistory(context.Background(), first.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, workflow.ProjectActive, history[0].ToStatus)
	assert.Equal(t, "Project created", history[0].Reason)
}

func TestCreateProjectValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.CreateProject(ctx, manager, projects.CreateProjectRequest{Name: "  "})
	var v *workflow.ValidationError
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "name", v.Field)

	_, err = f.service.CreateProject(ctx, manager, projects.CreateProjectRequest{Name: "x", TotalHours: -1})
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "total_hours", v.Field)

	_, err = f.service.CreateProject(ctx, manager, projects.CreateProjectRequest{Name: "x", Priority: "Urgent"})
	require.ErrorAs(t, err, &v)
}

func TestTransitionStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, manager, 100)
	f.recorder.Reset()

	got, err := f.service.TransitionStatus(ctx, manager, p.ID, projects.TransitionInput{
		Target:          workflow.ProjectOnHold,
		Reason:          "Waiting on vendor data",
		ExpectedVersion: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.ProjectOnHold, got.Status)
	assert.Equal(t, 2, got.Version)

	history, err := f.service.GetHistory(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, workflow.ProjectActive, history[1].FromStatus)
	assert.Equal(t, "Waiting on vendor data", history[1].Reason)

	audit := f.recorder.AuditEntries()
	require.Len(t, audit, 1)
	assert.Equal(t, string(workflow.ActionChangeProjectStatus), audit[0].Action)
	// The creator is the actor, so nobody is notified.
	assert.Empty(t, f.recorder.Notifications())
}

func TestTransitionStatusFailuresLeaveProjectUnchanged(t *testing.T) {
	tests := []struct {
		name   string
		actor  workflow.Actor
		input  projects.TransitionInput
		assert func(t *testing.T, err error)
	}{
		{
			name:  "engineer is forbidden",
			actor: engineer,
			input: projects.TransitionInput{Target: workflow.ProjectCompleted, ExpectedVersion: 1},
			assert: func(t *testing.T, err error) {
				var e *workflow.ForbiddenError
				assert.ErrorAs(t, err, &e)
			},
		},
		{
			name:  "edge outside the table",
			actor: manager,
			input: projects.TransitionInput{Target: workflow.ProjectPending, ExpectedVersion: 1},
			assert: func(t *testing.T, err error) {
				var e *workflow.InvalidTransitionError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, string(workflow.ProjectActive), e.From)
				assert.Equal(t, string(workflow.ProjectPending), e.To)
			},
		},
		{
			name:  "blank reason for suspension",
			actor: manager,
			input: projects.TransitionInput{Target: workflow.ProjectSuspended, Reason: " \t", ExpectedVersion: 1},
			assert: func(t *testing.T, err error) {
				var e *workflow.ReasonRequiredError
				assert.ErrorAs(t, err, &e)
			},
		},
		{
			name:  "stale version",
			actor: manager,
			input: projects.TransitionInput{Target: workflow.ProjectCompleted, ExpectedVersion: 3},
			assert: func(t *testing.T, err error) {
				var e *workflow.ConflictError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, 1, e.Actual)
			},
		},
		{
			name:  "missing version",
			actor: manager,
			input: projects.TransitionInput{Target: workflow.ProjectCompleted},
			assert: func(t *testing.T, err error) {
				var e *workflow.ValidationError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "version", e.Field)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			p := f.create(t, manager, 100)
			f.recorder.Reset()

			_, err := f.service.TransitionStatus(context.Background(), tt.actor, p.ID, tt.input)
			tt.assert(t, err)

			after := f.get(t, p.ID)
			assert.Equal(t, workflow.ProjectActive, after.Status)
			assert.Equal(t, 1, after.Version)
			history, err := f.service.GetHistory(context.Background(), p.ID)
			require.NoError(t, err)
			assert.Len(t, history, 1)
			assert.Empty(t, f.recorder.AuditEntries())
		})
	}
}

func TestTransitionStatusNotFoundComesFirst(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.TransitionStatus(context.Background(), engineer, "missing", projects.TransitionInput{
		Target: workflow.ProjectPending,
	})
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestNotifiesCreatorOnStatusChange(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, endUser, 10)
	f.recorder.Reset()

	_, err := f.service.TransitionStatus(context.Background(), manager, p.ID, projects.TransitionInput{
		Target:          workflow.ProjectActive,
		ExpectedVersion: 1,
	})
	require.NoError(t, err)

	notes := f.recorder.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, endUser.ID, notes[0].RecipientUserID)
	assert.Equal(t, events.TypeProjectStatusChanged, notes[0].Type)
}

func TestExtendHours(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, manager, 100)

	got, err := f.service.ExtendHours(ctx, manager, p.ID, projects.ExtendInput{Hours: 20, Note: "phase 2", ExpectedVersion: 1})
	require.NoError(t, err)
	assert.Equal(t, 120.0, got.TotalHours)
	assert.Equal(t, 2, got.Version)

	ledger, err := f.service.GetLedger(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, projects.TxExtension, ledger[0].Type)
	assert.Equal(t, 120.0, ledger[0].TotalAfter)
}

func TestExtendHoursRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, manager, 100)

	_, err := f.service.ExtendHours(ctx, endUser, p.ID, projects.ExtendInput{Hours: 5, ExpectedVersion: 1})
	var forbidden *workflow.ForbiddenError
	assert.ErrorAs(t, err, &forbidden)

	_, err = f.service.ExtendHours(ctx, manager, p.ID, projects.ExtendInput{Hours: 0, ExpectedVersion: 99})
	var v *workflow.ValidationError
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "hours", v.Field)

	_, err = f.service.TransitionStatus(ctx, manager, p.ID, projects.TransitionInput{
		Target: workflow.ProjectCancelled, Reason: "Client withdrew", ExpectedVersion: 1,
	})
	require.NoError(t, err)
	_, err = f.service.ExtendHours(ctx, manager, p.ID, projects.ExtendInput{Hours: 5, ExpectedVersion: 2})
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "status", v.Field)
	assert.Equal(t, 100.0, f.get(t, p.ID).TotalHours)
}

func TestListProjectsByCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	active := f.create(t, manager, 10)
	pending := f.create(t, endUser, 10)
	done := f.create(t, manager, 10)
	_, err := f.service.TransitionStatus(ctx, manager, done.ID, projects.TransitionInput{
		Target: workflow.ProjectCompleted, ExpectedVersion: 1,
	})
	require.NoError(t, err)

	list, err := f.service.ListProjects(ctx, "", string(workflow.CategoryActive), 0, 0)
	require.NoError(t, err)
	ids := projectIDs(list)
	assert.Contains(t, ids, active.ID)
	assert.NotContains(t, ids, done.ID)

	list, err = f.service.ListProjects(ctx, string(workflow.ProjectPending), "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{pending.ID}, projectIDs(list))

	_, err = f.service.ListProjects(ctx, "RUNNING", "", 0, 0)
	var v *workflow.ValidationError
	assert.ErrorAs(t, err, &v)
}

func TestExpireOverdue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	past := f.now.Add(-time.Hour)
	future := f.now.Add(24 * time.Hour)

	overdue, err := f.service.CreateProject(ctx, manager, projects.CreateProjectRequest{Name: "late", TotalHours: 10, Deadline: &past})
	require.NoError(t, err)
	onTime, err := f.service.CreateProject(ctx, manager, projects.CreateProjectRequest{Name: "fine", TotalHours: 10, Deadline: &future})
	require.NoError(t, err)

	n, err := f.service.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, workflow.ProjectExpired, f.get(t, overdue.ID).Status)
	assert.Equal(t, workflow.ProjectActive, f.get(t, onTime.ID).Status)

	history, err := f.service.GetHistory(ctx, overdue.ID)
	require.NoError(t, err)
	last := history[len(history)-1]
	assert.Equal(t, projects.SystemActor.ID, last.ChangedBy)
	assert.Equal(t, "Deadline passed", last.Reason)
}

func TestReconcileUsedHours(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, manager, 100)

	err := f.store.Projects().Do(ctx, func(ctx context.Context, repo projects.Repository) error {
		current, err := repo.GetForUpdate(ctx, p.ID)
		if err != nil {
			return err
		}
		tx, err := projects.Allocate(current, projects.LedgerEntry{Hours: 12, ActorID: manager.ID})
		if err != nil {
			return err
		}
		if err := repo.AppendTransaction(ctx, tx); err != nil {
			return err
		}
		// Drift: the row claims more than the ledger.
		current.UsedHours = 40
		return repo.Update(ctx, current, current.Version)
	})
	require.NoError(t, err)

	n, err := f.service.ReconcileUsedHours(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 12.0, f.get(t, p.ID).UsedHours)

	n, err = f.service.ReconcileUsedHours(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMilestones(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, manager, 10)

	_, err := f.service.AddMilestone(ctx, endUser, p.ID, projects.CreateMilestoneRequest{Name: "Mesh"})
	var forbidden *workflow.ForbiddenError
	assert.ErrorAs(t, err, &forbidden)

	m, err := f.service.AddMilestone(ctx, manager, p.ID, projects.CreateMilestoneRequest{Name: "Mesh"})
	require.NoError(t, err)

	done, err := f.service.CompleteMilestone(ctx, admin, p.ID, m.ID)
	require.NoError(t, err)
	assert.NotNil(t, done.CompletedAt)

	_, err = f.service.CompleteMilestone(ctx, admin, p.ID, m.ID)
	var v *workflow.ValidationError
	assert.ErrorAs(t, err, &v)

	_, err = f.service.CompleteMilestone(ctx, admin, "other-project", m.ID)
	assert.ErrorIs(t, err, workflow.ErrNotFound)

	list, err := f.service.ListMilestones(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func projectIDs(list []*projects.Project) []string {
	ids := make([]string, 0, len(list))
	for _, p := range list {
		ids = append(ids, p.ID)
	}
	return ids
}

func seedProject(t *testing.T, f *fixture, status workflow.ProjectStatus) *projects.Project {
	t.Helper()
	p := &projects.Project{
		ID:         "p-" + string(status),
		Code:       "seed-" + string(status),
		Name:       "seeded",
		TotalHours: 100,
		UsedHours:  25,
		Status:     status,
		CreatedBy:  manager.ID,
		CreatedAt:  f.now,
		Version:    1,
	}
	err := f.store.Projects().Do(context.Background(), func(ctx context.Context, repo projects.Repository) error {
		return repo.Create(ctx, p)
	})
	require.NoError(t, err)
	return p
}

func TestTransitionsOutsideTableMutateNothing(t *testing.T) {
	for _, from := range workflow.ProjectStatuses() {
		for _, to := range workflow.ProjectStatuses() {
			if workflow.CanTransitionProject(from, to) {
				continue
			}
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				f := newFixture(t)
				p := seedProject(t, f, from)

				_, err := f.service.TransitionStatus(context.Background(), admin, p.ID, projects.TransitionInput{
					Target:          to,
					Reason:          "because",
					ExpectedVersion: 1,
				})
				var invalid *workflow.InvalidTransitionError
				require.ErrorAs(t, err, &invalid)

				after := f.get(t, p.ID)
				assert.Equal(t, from, after.Status)
				assert.Equal(t, 25.0, after.UsedHours)
				assert.Equal(t, 1, after.Version)
				history, err := f.service.GetHistory(context.Background(), p.ID)
				require.NoError(t, err)
				assert.Empty(t, history)
			})
		}
	}
}

func TestReasonGatedTargetsPersistNothingWithoutReason(t *testing.T) {
	for _, target := range []workflow.ProjectStatus{
		workflow.ProjectOnHold, workflow.ProjectSuspended, workflow.ProjectCancelled, workflow.ProjectExpired,
	} {
		for _, reason := range []string{"", "   ", "\n\t"} {
			f := newFixture(t)
			p := seedProject(t, f, workflow.ProjectActive)

			_, err := f.service.TransitionStatus(context.Background(), manager, p.ID, projects.TransitionInput{
				Target:          target,
				Reason:          reason,
				ExpectedVersion: 1,
			})
			var required *workflow.ReasonRequiredError
			require.ErrorAs(t, err, &required, "%s with %q", target, reason)
			assert.Equal(t, target, required.Target)
			assert.Equal(t, workflow.ProjectActive, f.get(t, p.ID).Status)
			assert.Empty(t, f.recorder.AuditEntries())
		}
	}
}
