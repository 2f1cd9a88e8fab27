package location

import (
	"context"
	"log"
	"strconv"

	"backend-buswatch/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, ing *Ingestor, sim *Simulator, authMiddleware fiber.Handler) {
	r.Post("/locations", authMiddleware, func(c *fiber.Ctx) error {
		var req Report
		if err := c.BodyParser(&req); err != nil {
			ing.DropMalformed(err)
			return fiber.NewError(fiber.StatusBadRequest, "invalid report body")
		}
		loc, err := ing.Ingest(c.Context(), req)
		if err != nil {
			return apperr.Respond(c, err)
		}
		return c.JSON(loc)
	})

	r.Get("/active", func(c *fiber.Ctx) error {
		locs, err := svc.GetActiveDrivers(c.Context())
		if err != nil {
			return apperr.Respond(c, err)
		}
		return c.JSON(locs)
	})

	r.Post("/simulate", authMiddleware, func(c *fiber.Ctx) error {
		var req struct {
			SessionID int64 `json:"session_id"`
			DriverID  int64 `json:"driver_id"`
		}
		if err := c.BodyParser(&req); err != nil || req.SessionID == 0 || req.DriverID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "session_id and driver_id required")
		}
		go func() {
			if err := sim.Run(context.Background(), req.SessionID, req.DriverID); err != nil {
				log.Printf("location: simulation for session %d: %v", req.SessionID, err)
			}
		}()
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "started"})
	})
}

// PathHandler serves a session's travelled path; mounted under the sessions
// group next to the other session reads.
func PathHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid id")
		}
		points, err := svc.GetPath(c.Context(), id)
		if err != nil {
			return apperr.Respond(c, err)
		}
		return c.JSON(points)
	}
}
