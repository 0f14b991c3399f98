package history

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, store *Store, authMiddleware fiber.Handler) {
	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		if userID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing user")
		}
		sessions, err := store.List(c.Context(), userID, c.QueryInt("limit", defaultListLimit))
		if err != nil {
			return storeError(err)
		}
		return c.JSON(sessions)
	})

	r.Get("/:id", authMiddleware, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		if userID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing user")
		}
		summary, err := store.Summary(c.Context(), userID, c.Params("id"))
		if err != nil {
			return storeError(err)
		}
		return c.JSON(summary)
	})
}

func storeError(err error) error {
	switch {
	case errors.Is(err, ErrUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
