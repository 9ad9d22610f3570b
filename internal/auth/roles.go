package auth

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/unisupport/portal/internal/domain"
	apperrors "github.com/unisupport/portal/pkg/util/errorutil"
)

// RequireRoles allows the request through only when the authenticated
// principal holds one of the given roles.
func RequireRoles(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	names := make([]string, 0, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
		names = append(names, string(role))
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.User == nil {
			return apperrors.NewUnauthorized("please login first")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.User.Role]; !exists {
			return apperrors.NewForbidden(fmt.Sprintf(
				"role '%s' is not authorized for this resource. Required roles: %s",
				principal.User.Role, strings.Join(names, ", ")))
		}
		return c.Next()
	}
}
