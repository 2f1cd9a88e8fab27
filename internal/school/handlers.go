package school

import (
	"strconv"

	"backend-buswatch/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the school surface. Reads are open; mutations are
// admin-only.
func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware, adminOnly fiber.Handler) {
	r.Post("/", authMiddleware, adminOnly, func(c *fiber.Ctx) error {
		var req School
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name required")
		}
		sc, err := svc.CreateSchool(c.Context(), req)
		if err != nil {
			return apperr.Respond(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(sc)
	})

	r.Get("/", func(c *fiber.Ctx) error {
		schools, err := svc.ListSchools(c.Context())
		if err != nil {
			return apperr.Respond(c, err)
		}
		return c.JSON(schools)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid id")
		}
		sc, err := svc.GetSchool(c.Context(), id)
		if err != nil {
			return apperr.Respond(c, err)
		}
		return c.JSON(sc)
	})

	r.Post("/:id/students", authMiddleware, adminOnly, func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid id")
		}
		var req Student
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		req.SchoolID = id
		st, err := svc.CreateStudent(c.Context(), req)
		if err != nil {
			return apperr.Respond(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(st)
	})

	r.Get("/:id/students", func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid id")
		}
		students, err := svc.Students(c.Context(), id)
		if err != nil {
			return apperr.Respond(c, err)
		}
		return c.JSON(students)
	})
}
