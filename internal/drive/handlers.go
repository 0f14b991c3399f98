package drive

import "github.com/gofiber/fiber/v2"

type accelBatch struct {
	Samples []AccelSample `json:"samples"`
}

type locationBatch struct {
	Samples []LocationSample `json:"samples"`
}

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/start", authMiddleware, func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		return c.JSON(svc.Start(userID))
	})

	r.Post("/stop", authMiddleware, func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		summary, ok := svc.Stop(userID)
		if !ok {
			return fiber.NewError(fiber.StatusConflict, "no drive in progress")
		}
		return c.JSON(summary)
	})

	r.Post("/samples/accel", authMiddleware, func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		var req accelBatch
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if len(req.Samples) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "samples required")
		}
		return c.Status(fiber.StatusAccepted).JSON(svc.Accelerations(userID, req.Samples))
	})

	r.Post("/samples/location", authMiddleware, func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		var req locationBatch
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if len(req.Samples) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "samples required")
		}
		return c.Status(fiber.StatusAccepted).JSON(svc.Locations(userID, req.Samples))
	})

	r.Get("/state", authMiddleware, func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		return c.JSON(svc.State(userID))
	})
}

func currentUser(c *fiber.Ctx) (string, error) {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "missing user")
	}
	return userID, nil
}
