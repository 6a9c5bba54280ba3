package domain

// Officer is the assignable view of an FO account.
type Officer struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

// FilterOptions lists the values the dashboard filters offer.
type FilterOptions struct {
	ROCodes          []string `json:"roCodes"`
	Statuses         []string `json:"statuses"`
	WorkflowStatuses []string `json:"workflowStatuses"`
}
