package stats

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, store *Store, authMiddleware fiber.Handler) {
	r.Get("/me", authMiddleware, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		if userID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing user")
		}
		stats, err := store.Get(c.Context(), userID)
		if errors.Is(err, ErrUnavailable) {
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(stats)
	})
}
