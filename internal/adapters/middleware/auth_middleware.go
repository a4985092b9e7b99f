package middleware

import (
	"github.com/gofiber/fiber/v3"

	"github.com/allumi/attribution-api/internal/core/auth"
)

type AuthMiddleware struct {
	validator *auth.APIKeyValidator
}

func NewAuthMiddleware(validator *auth.APIKeyValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

func (am *AuthMiddleware) RequireAuth(c fiber.Ctx) error {
	token, err := auth.KeyFromHeaders(c.Get("Authorization"), c.Get("X-API-Key"))
	if err != nil {
		return c.Status(401).JSON(fiber.Map{
			"error": "Unauthorized: No API key provided",
		})
	}

	userID, err := am.validator.ValidateKey(c.Context(), token)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{
			"error": "Unauthorized: Invalid or revoked API key",
		})
	}

	c.Locals("userID", userID)

	return c.Next()
}
