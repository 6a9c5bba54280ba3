package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/feedback-portal/feedback-service/internal/api/dto"
	"github.com/feedback-portal/feedback-service/internal/service"
)

// BranchesHandler exposes the branch directory.
type BranchesHandler struct {
	branches *service.BranchService
}

// NewBranchesHandler constructs handler.
func NewBranchesHandler(branchService *service.BranchService) *BranchesHandler {
	return &BranchesHandler{branches: branchService}
}

// List handles GET /branches.
func (h *BranchesHandler) List(c *fiber.Ctx) error {
	branches, err := h.branches.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(dto.NewBranchListResponse(branches)))
}

// Create handles POST /branches.
func (h *BranchesHandler) Create(c *fiber.Ctx) error {
	var req service.CreateBranchRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	branch, err := h.branches.Create(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.OK(dto.NewBranchResponse(branch)))
}

// Delete handles DELETE /branches/:roCode.
func (h *BranchesHandler) Delete(c *fiber.Ctx) error {
	if err := h.branches.Delete(c.UserContext(), c.Params("roCode")); err != nil {
		return err
	}
	return c.JSON(dto.Message("branch deleted"))
}
