// Package workflow defines the feedback ticket state machine: which single
// action a role may take in each state, and validation of requested moves.
package workflow

import (
	"fmt"
	"strings"

	"github.com/feedback-portal/feedback-service/internal/domain"
)

// Action names a user-facing workflow affordance.
type Action string

const (
	ActionEscalate Action = "escalate"
	ActionAssign   Action = "assign"
	ActionResolve  Action = "resolve"
	ActionClose    Action = "close"
)

// Transition is one row of the role-keyed transition table.
type Transition struct {
	Action           Action                `json:"action"`
	Role             domain.Role           `json:"role"`
	From             domain.WorkflowStatus `json:"from"`
	To               domain.WorkflowStatus `json:"to"`
	RequiresAssignee bool                  `json:"requiresAssignee"`
}

// transitions is a linear chain: one outbound row per non-terminal state.
var transitions = []Transition{
	{Action: ActionEscalate, Role: domain.RoleRO, From: domain.WorkflowPending, To: domain.WorkflowEscalated},
	{Action: ActionAssign, Role: domain.RoleDO, From: domain.WorkflowEscalated, To: domain.WorkflowAssigned, RequiresAssignee: true},
	{Action: ActionResolve, Role: domain.RoleFO, From: domain.WorkflowAssigned, To: domain.WorkflowResolved},
	{Action: ActionClose, Role: domain.RoleDO, From: domain.WorkflowResolved, To: domain.WorkflowClosed},
}

var reviewRoles = map[domain.Role]struct{}{
	domain.RoleSuperuser: {},
	domain.RoleDO:        {},
}

// Transitions returns a copy of the transition table.
func Transitions() []Transition {
	return append([]Transition(nil), transitions...)
}

// Normalize maps an absent or unrecognised status to Pending.
func Normalize(status domain.WorkflowStatus) domain.WorkflowStatus {
	for _, known := range domain.WorkflowStatuses {
		if status == known {
			return status
		}
	}
	return domain.WorkflowPending
}

// IsTerminal reports whether no workflow move leaves the status.
func IsTerminal(status domain.WorkflowStatus) bool {
	return Normalize(status) == domain.WorkflowClosed
}

// AvailableAction returns the single transition the role may take from status.
func AvailableAction(status domain.WorkflowStatus, role domain.Role) (Transition, bool) {
	current := Normalize(status)
	for _, t := range transitions {
		if t.From == current && t.Role == role {
			return t, true
		}
	}
	return Transition{}, false
}

// CanReview reports whether the role may set the review status. The review
// axis is orthogonal to AvailableAction.
func CanReview(status domain.WorkflowStatus, role domain.Role) bool {
	if IsTerminal(status) {
		return false
	}
	_, ok := reviewRoles[role]
	return ok
}

// Affordances is what a client renders for one ticket.
type Affordances struct {
	Workflow *Transition `json:"workflow,omitempty"`
	Review   bool        `json:"review"`
}

// AffordancesFor combines both axes for a (status, role) pair.
func AffordancesFor(status domain.WorkflowStatus, role domain.Role) Affordances {
	var out Affordances
	if t, ok := AvailableAction(status, role); ok {
		out.Workflow = &t
	}
	out.Review = CanReview(status, role)
	return out
}

// Validate checks a requested move against the same table AvailableAction reads.
func Validate(status domain.WorkflowStatus, role domain.Role, target domain.WorkflowStatus, assignee string) (Transition, error) {
	current := Normalize(status)
	t, ok := AvailableAction(current, role)
	if !ok || t.To != target {
		return Transition{}, fmt.Errorf("%w: role %s cannot move %s to %s", ErrInvalidTransition, role, current, target)
	}
	if t.RequiresAssignee && strings.TrimSpace(assignee) == "" {
		return Transition{}, fmt.Errorf("%w: %s needs a field officer", ErrMissingAssignee, t.To)
	}
	return t, nil
}
