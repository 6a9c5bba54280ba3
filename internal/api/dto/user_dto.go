package dto

import (
	"time"

	"github.com/feedback-portal/feedback-service/internal/domain"
)

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID         string      `json:"id"`
	Username   string      `json:"username"`
	Email      string      `json:"email"`
	FullName   string      `json:"fullName"`
	Role       domain.Role `json:"role"`
	BranchCode string      `json:"branchCode"`
	BranchName string      `json:"branchName"`
	City       string      `json:"city"`
	Active     bool        `json:"active"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// NewUserResponse converts an account, dropping the password hash.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		FullName:   u.FullName,
		Role:       u.Role,
		BranchCode: u.BranchCode,
		BranchName: u.BranchName,
		City:       u.City,
		Active:     u.Active,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// NewUserListResponse converts accounts.
func NewUserListResponse(users []domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, NewUserResponse(&users[i]))
	}
	return out
}

// BranchResponse is the JSON shape of a branch.
type BranchResponse struct {
	ROCode    string    `json:"roCode"`
	Name      string    `json:"name"`
	City      string    `json:"city"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewBranchResponse converts a branch.
func NewBranchResponse(b *domain.Branch) BranchResponse {
	return BranchResponse{ROCode: b.ROCode, Name: b.Name, City: b.City, CreatedAt: b.CreatedAt}
}

// NewBranchListResponse converts branches.
func NewBranchListResponse(branches []domain.Branch) []BranchResponse {
	out := make([]BranchResponse, 0, len(branches))
	for i := range branches {
		out = append(out, NewBranchResponse(&branches[i]))
	}
	return out
}
