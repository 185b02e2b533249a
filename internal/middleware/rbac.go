package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tahfidz-admin-api/internal/models"
	appErrors "github.com/noah-isme/tahfidz-admin-api/pkg/errors"
	"github.com/noah-isme/tahfidz-admin-api/pkg/response"
)

// RequireRoles answers 403 for authenticated callers outside roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	return requireRoles(appErrors.ErrForbidden, roles)
}

// RequireAdmin gates administrative routes. Callers without an admin role are treated as
// unauthenticated, which is what the import clients expect.
func RequireAdmin() gin.HandlerFunc {
	return requireRoles(
		appErrors.Clone(appErrors.ErrUnauthorized, "admin access required"),
		[]models.UserRole{models.RoleAdmin, models.RoleSuperAdmin},
	)
}

func requireRoles(denied *appErrors.Error, roles []models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims, ok := CurrentClaims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, denied)
			c.Abort()
			return
		}
		c.Next()
	}
}
