package middleware

import (
	"github.com/gin-gonic/gin"

	apperrors "autohaus.io/cms/internal/pkg/errors"
)

// RequireElevated admits only elevated principals. It must run after JWTAuth.
func RequireElevated() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c.Request.Context())
		if !ok {
			_ = c.Error(apperrors.Unauthorized(apperrors.CodeUnauthorized, "authentication required"))
			c.Abort()
			return
		}
		if !p.Elevated {
			_ = c.Error(apperrors.Forbidden(apperrors.CodePermissionDenied, "administrator access required"))
			c.Abort()
			return
		}
		c.Next()
	}
}
