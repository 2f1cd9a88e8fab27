package session

import (
	"strconv"

	"backend-buswatch/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req struct {
			RouteID  int64 `json:"route_id"`
			DriverID int64 `json:"driver_id"`
		}
		if err := c.BodyParser(&req); err != nil || req.RouteID == 0 || req.DriverID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "route_id and driver_id required")
		}
		sess, pickups, err := svc.StartSession(c.Context(), req.RouteID, req.DriverID)
		if err != nil {
			return apperr.Respond(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"session": sess, "pickups": pickups})
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}
		sess, err := svc.GetSession(c.Context(), id)
		if err != nil {
			return apperr.Respond(c, err)
		}
		return c.JSON(sess)
	})

	r.Get("/:id/pickups", func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}
		pickups, err := svc.Pickups(c.Context(), id)
		if err != nil {
			return apperr.Respond(c, err)
		}
		return c.JSON(pickups)
	})

	r.Put("/:id/pickups/:pid", authMiddleware, func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}
		pid, err := parseID(c, "pid")
		if err != nil {
			return err
		}
		var req struct {
			Outcome string `json:"outcome"`
			Notes   string `json:"notes"`
		}
		if err := c.BodyParser(&req); err != nil || req.Outcome == "" {
			return fiber.NewError(fiber.StatusBadRequest, "outcome required")
		}
		pickup, err := svc.RecordPickup(c.Context(), id, pid, req.Outcome, req.Notes)
		if err != nil {
			return apperr.Respond(c, err)
		}
		return c.JSON(pickup)
	})

	r.Post("/:id/complete", authMiddleware, func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}
		var req struct {
			Force bool `json:"force"`
		}
		_ = c.BodyParser(&req)
		sess, err := svc.CompleteSession(c.Context(), id, req.Force)
		if err != nil {
			return apperr.Respond(c, err)
		}
		return c.JSON(sess)
	})
}

func parseID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}
