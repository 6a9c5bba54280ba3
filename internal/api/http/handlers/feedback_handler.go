package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/feedback-portal/feedback-service/internal/api/dto"
	"github.com/feedback-portal/feedback-service/internal/service"
	apperrors "github.com/feedback-portal/feedback-service/pkg/util/errorutil"
)

const dateLayout = "2006-01-02"

// FeedbackHandler exposes the feedback dashboard endpoints.
type FeedbackHandler struct {
	feedback *service.FeedbackService
}

// NewFeedbackHandler constructs handler.
func NewFeedbackHandler(feedbackService *service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedback: feedbackService}
}

// List handles GET /feedbacks.
func (h *FeedbackHandler) List(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	req := service.ListFeedbackRequest{
		BranchCode:     c.Query("roCode"),
		Search:         c.Query("search"),
		WorkflowStatus: c.Query("workflowStatus"),
		ReviewStatus:   c.Query("status"),
		AssignedTo:     c.Query("assignedTo"),
		Page:           c.QueryInt("page", 1),
		Limit:          c.QueryInt("limit", 20),
	}
	if req.DateFrom, err = parseDate(c.Query("startDate"), "startDate"); err != nil {
		return err
	}
	if req.DateTo, err = parseDate(c.Query("endDate"), "endDate"); err != nil {
		return err
	}
	if req.DateTo != nil {
		end := req.DateTo.Add(24*time.Hour - time.Nanosecond)
		req.DateTo = &end
	}

	views, pagination, err := h.feedback.List(c.UserContext(), actor.Role, req)
	if err != nil {
		return err
	}
	return c.JSON(dto.Page(dto.NewFeedbackListResponse(views), pagination))
}

// Get handles GET /feedbacks/:id.
func (h *FeedbackHandler) Get(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	detail, err := h.feedback.Get(c.UserContext(), actor.Role, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(dto.NewFeedbackDetailResponse(detail)))
}

// UpdateWorkflow handles PATCH /feedbacks/:id/workflow.
func (h *FeedbackHandler) UpdateWorkflow(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req service.UpdateWorkflowRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := h.feedback.UpdateWorkflowStatus(c.UserContext(), actor, c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(dto.NewWorkflowUpdateResponse(res)))
}

// Review handles PATCH /feedbacks/:id/review.
func (h *FeedbackHandler) Review(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req service.ReviewRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	updated, err := h.feedback.Review(c.UserContext(), actor, c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(dto.NewFeedbackResponse(*updated)))
}

// FilterOptions handles GET /filters/options.
func (h *FeedbackHandler) FilterOptions(c *fiber.Ctx) error {
	options, err := h.feedback.FilterOptions(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(options))
}

// FieldOfficers handles GET /users/fo.
func (h *FeedbackHandler) FieldOfficers(c *fiber.Ctx) error {
	officers, err := h.feedback.ListFieldOfficers(c.UserContext(), c.Query("branchCode"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(dto.OK(officers))
}

func parseDate(value, field string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid date", map[string]any{field: "expected YYYY-MM-DD"})
	}
	return &parsed, nil
}
