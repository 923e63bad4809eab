package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/evalforge/feedback-api/internal/utils"
)

// RequireRole ensures the authenticated caller holds at least one of the
// allowed roles.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		normalized := strings.ToLower(strings.TrimSpace(role))
		if normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		for _, role := range rolesFromLocals(c.Locals("user_roles")) {
			if _, ok := allowed[role]; ok {
				return c.Next()
			}
		}
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	}
}

func rolesFromLocals(value interface{}) []string {
	switch v := value.(type) {
	case []string:
		normalized := make([]string, 0, len(v))
		for _, role := range v {
			if role = strings.ToLower(strings.TrimSpace(role)); role != "" {
				normalized = append(normalized, role)
			}
		}
		return normalized
	case string:
		if role := strings.ToLower(strings.TrimSpace(v)); role != "" {
			return []string{role}
		}
	}
	return nil
}
