package route

import (
	"strconv"

	"backend-buswatch/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the route surface. Route and stop edits are
// admin-only; reads need no token.
func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware, adminOnly fiber.Handler) {
	r.Post("/", authMiddleware, adminOnly, func(c *fiber.Ctx) error {
		var req Route
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		route, err := svc.CreateRoute(c.Context(), req)
		if err != nil {
			return apperr.Respond(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(route)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		route, err := svc.GetRoute(c.Context(), id)
		if err != nil {
			return apperr.Respond(c, err)
		}
		return c.JSON(route)
	})

	r.Put("/:id", authMiddleware, adminOnly, func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		var req Route
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		route, err := svc.UpdateRoute(c.Context(), id, req)
		if err != nil {
			return apperr.Respond(c, err)
		}
		return c.JSON(route)
	})

	r.Post("/:id/stops", authMiddleware, adminOnly, func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		var req Stop
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		req.RouteID = id
		stop, err := svc.AddStop(c.Context(), req)
		if err != nil {
			return apperr.Respond(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(stop)
	})

	r.Get("/:id/stops", func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		stops, err := svc.Stops(c.Context(), id)
		if err != nil {
			return apperr.Respond(c, err)
		}
		return c.JSON(stops)
	})
}

func parseID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return id, nil
}
