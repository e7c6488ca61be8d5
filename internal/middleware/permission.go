package middleware

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/tuntasinaja/tuntasinaja/pkg/errors"
	"github.com/tuntasinaja/tuntasinaja/pkg/response"
)

// RequireAdmin allows only administrators through. It must run after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			response.Abort(c, apperrors.ErrUnauthorized)
			return
		}
		if !user.IsAdmin {
			response.Abort(c, apperrors.ErrForbidden)
			return
		}
		c.Next()
	}
}

// RequireClassLeader allows administrators and class leaders (danton).
// Whether a danton may act on a particular class is checked by the service.
func RequireClassLeader() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			response.Abort(c, apperrors.ErrUnauthorized)
			return
		}
		if !user.IsAdmin && !user.IsDanton {
			response.Abort(c, apperrors.ErrForbidden)
			return
		}
		c.Next()
	}
}
