package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// JWTMiddleware validates bearer tokens and stores user_id in locals.
func JWTMiddleware(secret string) fiber.Handler {
	return jwtHandler([]byte(secret), false)
}

// JWTQueryMiddleware also accepts the token as ?access_token=, for websocket
// handshakes where browsers cannot set headers.
func JWTQueryMiddleware(secret string) fiber.Handler {
	return jwtHandler([]byte(secret), true)
}

func jwtHandler(secretBytes []byte, allowQuery bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := parseBearer(c.Get("Authorization"))
		if token == "" && allowQuery {
			token = c.Query("access_token")
		}
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		claims, err := parseToken(secretBytes, token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}

		c.Locals("user_id", claims.UserID)
		return c.Next()
	}
}

func parseBearer(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
