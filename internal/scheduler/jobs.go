package scheduler

import (
	"context"
)

const (
	JobExpireOverdue  = "expire-overdue-projects"
	JobReconcileHours = "reconcile-used-hours"
)

// ProjectMaintainer is the slice of projects.Service the jobs drive.
type ProjectMaintainer interface {
	ExpireOverdue(ctx context.Context) (int, error)
	ReconcileUsedHours(ctx context.Context) (int, error)
}

// WorkflowJobs builds the maintenance jobs. onChange runs after any job
// that changed at least one project.
func WorkflowJobs(projects ProjectMaintainer, expirySpec, reconcileSpec string, onChange func()) []Job {
	wrap := func(run func(context.Context) (int, error)) func(context.Context) (int, error) {
		return func(ctx context.Context) (int, error) {
			n, err := run(ctx)
			if n > 0 && onChange != nil {
				onChange()
			}
			return n, err
		}
	}
	return []Job{
		{Name: JobExpireOverdue, Spec: expirySpec, Run: wrap(projects.ExpireOverdue)},
		{Name: JobReconcileHours, Spec: reconcileSpec, Run: wrap(projects.ReconcileUsedHours)},
	}
}
