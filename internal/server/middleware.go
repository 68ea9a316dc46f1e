package server

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/storefront/internal/observability/logger"
)

const adminTokenHeader = "X-Admin-Token"

// AdminRequired gates the back-office routes behind a shared token.
// With no token configured the admin surface stays closed.
func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		configured := strings.TrimSpace(s.cfg.AdminToken)
		if configured == "" {
			logger.FromContext(c.Request.Context()).Warn("admin request rejected, no admin token configured")
			AbortWithError(c, ErrForbidden)
			return
		}

		presented := strings.TrimSpace(c.GetHeader(adminTokenHeader))
		if presented == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) != 1 {
			AbortWithError(c, ErrForbidden)
			return
		}

		c.Next()
	}
}
