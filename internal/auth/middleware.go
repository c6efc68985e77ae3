package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// LocalWorkspaceID is the fiber locals key holding the authenticated
// workspace.
const LocalWorkspaceID = "workspace_id"

// JWTMiddleware validates bearer tokens and stores workspace_id in locals.
func JWTMiddleware(secret string) fiber.Handler {
	secretBytes := []byte(secret)
	return func(c *fiber.Ctx) error {
		token := bearerFromHeader(c.Get("Authorization"))
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		claims, err := parseClaims(token, secretBytes)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}

		c.Locals(LocalWorkspaceID, claims.WorkspaceID)
		return c.Next()
	}
}

// QueryTokenMiddleware is for WebSocket upgrades, where browsers cannot set
// headers: the token comes from ?token= and must match the :param route
// segment.
func QueryTokenMiddleware(secret, param string) fiber.Handler {
	secretBytes := []byte(secret)
	return func(c *fiber.Ctx) error {
		token := c.Query("token")
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing token")
		}

		claims, err := parseClaims(token, secretBytes)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		if claims.WorkspaceID != c.Params(param) {
			return fiber.NewError(fiber.StatusForbidden, "token does not match workspace")
		}

		c.Locals(LocalWorkspaceID, claims.WorkspaceID)
		return c.Next()
	}
}

// WorkspaceID reads the workspace stored by the middlewares.
func WorkspaceID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalWorkspaceID).(string)
	return id
}

func bearerFromHeader(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
