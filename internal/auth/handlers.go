package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Post("/register", func(c *fiber.Ctx) error {
		var req RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		user, token, err := svc.Register(c.Context(), req)
		if errors.Is(err, ErrMissingFields) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if errors.Is(err, ErrUnavailable) {
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusConflict, "could not create user")
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user": user, "token": token})
	})

	r.Post("/login", func(c *fiber.Ctx) error {
		var req LoginRequest
		if err := c.BodyParser(&req); err != nil || req.Email == "" || req.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "email and password required")
		}
		_, token, err := svc.Login(c.Context(), req)
		if errors.Is(err, ErrUnavailable) {
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}
		if errors.Is(err, ErrInvalidCredentials) {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "login failed")
		}
		return c.JSON(token)
	})

	r.Get("/verify", func(c *fiber.Ctx) error {
		token := parseBearer(c.Get("Authorization"))
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}
		userID, err := svc.ValidateAccessToken(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		return c.JSON(fiber.Map{"user_id": userID})
	})
}
