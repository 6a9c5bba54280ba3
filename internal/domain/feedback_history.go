package domain

import "time"

// FeedbackChangeType captures which axis a history entry describes.
type FeedbackChangeType string

const (
	ChangeTypeWorkflow FeedbackChangeType = "WORKFLOW_CHANGE"
	ChangeTypeReview   FeedbackChangeType = "REVIEW_CHANGE"
)

// FeedbackHistory is an immutable audit trail entry.
type FeedbackHistory struct {
	ID         string
	FeedbackID string
	ActorID    string
	ActorRole  Role
	ChangeType FeedbackChangeType
	OldValue   map[string]any
	NewValue   map[string]any
	Comment    *string
	CreatedAt  time.Time
}
