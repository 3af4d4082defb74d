package handlers

import (
	"fmt"
	"strings"

	"github.com/developia-II/slang-translator-backend/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// AuthMiddleware accepts HMAC-signed bearer tokens issued by the account service and
// exposes their userId, role and premium claims as locals.
func AuthMiddleware(secret string) fiber.Handler {
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}

	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Missing authorization header")
		}
		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || strings.TrimSpace(tokenString) == "" {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid authorization header")
		}

		token, err := jwt.Parse(strings.TrimSpace(tokenString), keyFunc)
		if err != nil || !token.Valid {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid token")
		}
		userID, _ := claims["userId"].(string)
		if userID == "" {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid token")
		}
		c.Locals("userId", userID)
		if role, ok := claims["role"].(string); ok {
			c.Locals("role", role)
		}
		premium, _ := claims["premium"].(bool)
		c.Locals("premium", premium)

		return c.Next()
	}
}

// AdminMiddleware ensures the requester has role == "admin"
func AdminMiddleware(c *fiber.Ctx) error {
	if !isAdmin(c) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Admins only")
	}
	return c.Next()
}

// PremiumMiddleware lets through subscribers and admins.
func PremiumMiddleware(c *fiber.Ctx) error {
	premium, _ := c.Locals("premium").(bool)
	if !premium && !isAdmin(c) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Premium subscription required")
	}
	return c.Next()
}

func isAdmin(c *fiber.Ctx) bool {
	role, _ := c.Locals("role").(string)
	return role == "admin"
}

func currentUser(c *fiber.Ctx) string {
	userID, _ := c.Locals("userId").(string)
	return userID
}
