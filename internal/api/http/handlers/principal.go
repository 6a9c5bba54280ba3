package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/feedback-portal/feedback-service/internal/auth"
	"github.com/feedback-portal/feedback-service/internal/service"
)

func currentPrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
	}
	return principal, nil
}

func currentActor(c *fiber.Ctx) (service.Actor, error) {
	principal, err := currentPrincipal(c)
	if err != nil {
		return service.Actor{}, err
	}
	return service.Actor{ID: principal.User.ID, Role: principal.Role()}, nil
}

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	return nil
}
