package workflow

import "time"

// DefaultArchiveAfter is how old a request must be before lists show it as archived.
const DefaultArchiveAfter = 30 * 24 * time.Hour

var attentionStatuses = map[RequestStatus]bool{
	RequestSubmitted:          true,
	RequestFeasibilityReview:  true,
	RequestResourceAllocation: true,
	RequestEngineeringReview:  true,
	RequestDiscussion:         true,
}

// NeedsAttention flags requests that should be surfaced first on dashboards.
func NeedsAttention(priority RequestPriority, status RequestStatus) bool {
	return priority == PriorityHigh || attentionStatuses[status]
}

// IsArchivedListing partitions request lists by age. It is a display split,
// not a workflow state.
func IsArchivedListing(createdAt, now time.Time, after time.Duration) bool {
	if after <= 0 {
		after = DefaultArchiveAfter
	}
	return createdAt.Before(now.Add(-after))
}

var requestSortRank = map[RequestStatus]int{
	RequestSubmitted:          0,
	RequestFeasibilityReview:  1,
	RequestManagerReview:      2,
	RequestResourceAllocation: 3,
	RequestEngineeringReview:  4,
	RequestDiscussion:         5,
	RequestInProgress:         6,
	RequestRevisionRequested:  7,
	RequestRevisionApproval:   8,
	RequestCompleted:          9,
	RequestAccepted:           10,
	RequestDenied:             11,
}

// RequestSortRank orders statuses for list rendering; unknown labels sort last.
func RequestSortRank(s RequestStatus) int {
	if r, ok := requestSortRank[s]; ok {
		return r
	}
	return len(requestSortRank)
}

// ProjectCategory groups project statuses for list rendering.
type ProjectCategory string

const (
	CategoryPending   ProjectCategory = "pending"
	CategoryOnHold    ProjectCategory = "on_hold"
	CategoryActive    ProjectCategory = "active"
	CategoryCompleted ProjectCategory = "completed"
	CategoryArchived  ProjectCategory = "archived"
)

func ParseProjectCategory(s string) (ProjectCategory, error) {
	switch ProjectCategory(s) {
	case CategoryPending, CategoryOnHold, CategoryActive, CategoryCompleted, CategoryArchived:
		return ProjectCategory(s), nil
	}
	return "", Invalid("category", "%v: project category %q", ErrUnknownValue, s)
}

func CategorizeProject(s ProjectStatus) ProjectCategory {
	switch s {
	case ProjectPending:
		return CategoryPending
	case ProjectOnHold, ProjectSuspended, ProjectExpired:
		return CategoryOnHold
	case ProjectApproved, ProjectActive:
		return CategoryActive
	case ProjectCompleted, ProjectCancelled:
		return CategoryCompleted
	default:
		return CategoryArchived
	}
}

// ProjectStatusesIn lists the statuses rendered under a category.
func ProjectStatusesIn(c ProjectCategory) []ProjectStatus {
	var out []ProjectStatus
	for _, st := range projectStatuses {
		if CategorizeProject(st) == c {
			out = append(out, st)
		}
	}
	return out
}
