package workflow

import "errors"

var (
	// ErrInvalidTransition means the requested target is not the single legal
	// move for the ticket's current state and the actor's role.
	ErrInvalidTransition = errors.New("workflow: transition not permitted")
	// ErrMissingAssignee means an Assigned transition carried no field officer.
	ErrMissingAssignee = errors.New("workflow: assignee required")
	// ErrStaleState means the ticket changed between read and write.
	ErrStaleState = errors.New("workflow: ticket state changed concurrently")
	// ErrStoreUnavailable wraps persistence failures unrelated to validation.
	ErrStoreUnavailable = errors.New("workflow: store unavailable")
	// ErrNotFound means the ticket does not exist.
	ErrNotFound = errors.New("workflow: ticket not found")
)
