package domain

import "time"

// WorkflowStatus enumerates the forward-only review workflow states.
type WorkflowStatus string

const (
	WorkflowPending   WorkflowStatus = "Pending"
	WorkflowEscalated WorkflowStatus = "Escalated"
	WorkflowAssigned  WorkflowStatus = "Assigned"
	WorkflowResolved  WorkflowStatus = "Resolved"
	WorkflowClosed    WorkflowStatus = "Closed"
)

// WorkflowStatuses lists workflow states in chain order.
var WorkflowStatuses = []WorkflowStatus{
	WorkflowPending,
	WorkflowEscalated,
	WorkflowAssigned,
	WorkflowResolved,
	WorkflowClosed,
}

// ReviewStatus is the verification axis, independent of the workflow.
type ReviewStatus string

const (
	ReviewNotVerified ReviewStatus = "Not Verified"
	ReviewVerified    ReviewStatus = "Verified"
	ReviewReviewed    ReviewStatus = "Reviewed"
	ReviewRejected    ReviewStatus = "Rejected"
)

// ReviewStatuses lists the accepted review values.
var ReviewStatuses = []ReviewStatus{
	ReviewNotVerified,
	ReviewVerified,
	ReviewReviewed,
	ReviewRejected,
}

// IsValid reports whether r is one of the known review values.
func (r ReviewStatus) IsValid() bool {
	for _, candidate := range ReviewStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// Feedback is a customer submission tracked through the workflow.
type Feedback struct {
	ID                  string
	BranchCode          string
	PhoneNumber         string
	ExperienceComments  string
	FreeAirRating       *int
	DrinkingWaterRating *int
	WashroomRating      *int
	WorkflowStatus      WorkflowStatus
	AssignedTo          *string
	ReviewStatus        ReviewStatus
	Reviewed            bool
	ReviewedBy          *string
	ReviewedAt          *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
