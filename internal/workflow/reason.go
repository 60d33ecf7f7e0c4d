package workflow

import "strings"

var reasonRequired = map[ProjectStatus]bool{
	ProjectOnHold:    true,
	ProjectSuspended: true,
	ProjectCancelled: true,
	ProjectExpired:   true,
}

// RequiresReason reports whether moving a project into target needs a justification.
func RequiresReason(target ProjectStatus) bool {
	return reasonRequired[target]
}

// CheckReason enforces the reason gate. Whitespace-only reasons count as empty.
func CheckReason(target ProjectStatus, reason string) error {
	if RequiresReason(target) && strings.TrimSpace(reason) == "" {
		return &ReasonRequiredError{Target: target}
	}
	return nil
}
