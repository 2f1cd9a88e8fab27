package issue

import (
	"backend-buswatch/internal/auth"
	"backend-buswatch/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the issue surface. Any authenticated driver may
// report; the list is an admin dashboard view.
func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware, adminOnly fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req Issue
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid issue body")
		}
		if req.DriverID == 0 {
			req.DriverID = auth.UserID(c)
		}
		created, results, err := svc.Create(c.Context(), req)
		if err != nil {
			return apperr.Respond(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"issue":         created,
			"notifications": results,
		})
	})

	r.Get("/", authMiddleware, adminOnly, func(c *fiber.Ctx) error {
		issues, err := svc.List(c.Context())
		if err != nil {
			return apperr.Respond(c, err)
		}
		return c.JSON(issues)
	})
}
