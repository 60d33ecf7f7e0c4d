package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckReason(t *testing.T) {
	for _, target := range []ProjectStatus{ProjectOnHold, ProjectSuspended, ProjectCancelled, ProjectExpired} {
		for _, reason := range []string{"", "   ", "\t\n"} {
			err := CheckReason(target, reason)
			var rre *ReasonRequiredError
			require.True(t, errors.As(err, &rre), "%s with %q", target, reason)
			assert.Equal(t, target, rre.Target)
		}
		assert.NoError(t, CheckReason(target, "Client budget freeze"))
	}

	assert.NoError(t, CheckReason(ProjectActive, ""))
	assert.NoError(t, CheckReason(ProjectArchived, ""))
	assert.NoError(t, CheckReason(ProjectCompleted, ""))
}

func TestNeedsAttention(t *testing.T) {
	assert.True(t, NeedsAttention(PriorityHigh, RequestAccepted))
	assert.True(t, NeedsAttention(PriorityLow, RequestSubmitted))
	assert.True(t, NeedsAttention(PriorityLow, RequestDiscussion))
	assert.True(t, NeedsAttention(PriorityMedium, RequestFeasibilityReview))
	assert.True(t, NeedsAttention(PriorityMedium, RequestResourceAllocation))
	assert.False(t, NeedsAttention(PriorityMedium, RequestInProgress))
	assert.False(t, NeedsAttention(PriorityLow, RequestManagerReview))
}

func TestIsArchivedListing(t *testing.T) {
	now := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

	assert.True(t, IsArchivedListing(now.AddDate(0, 0, -31), now, 0))
	assert.False(t, IsArchivedListing(now.AddDate(0, 0, -29), now, 0))
	assert.True(t, IsArchivedListing(now.AddDate(0, 0, -8), now, 7*24*time.Hour))
}

func TestRequestSortRank(t *testing.T) {
	assert.Less(t, RequestSortRank(RequestSubmitted), RequestSortRank(RequestFeasibilityReview))
	assert.Less(t, RequestSortRank(RequestEngineeringReview), RequestSortRank(RequestCompleted))
	assert.Equal(t, len(requestSortRank), RequestSortRank("UNKNOWN"))
}

func TestCategorizeProject(t *testing.T) {
	want := map[ProjectStatus]ProjectCategory{
		ProjectPending:   CategoryPending,
		ProjectOnHold:    CategoryOnHold,
		ProjectSuspended: CategoryOnHold,
		ProjectExpired:   CategoryOnHold,
		ProjectApproved:  CategoryActive,
		ProjectActive:    CategoryActive,
		ProjectCompleted: CategoryCompleted,
		ProjectCancelled: CategoryCompleted,
		ProjectArchived:  CategoryArchived,
	}
	for st, cat := range want {
		assert.Equal(t, cat, CategorizeProject(st), string(st))
	}
}
