package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/skipd/skipd-api/internal/service"
	appErrors "github.com/skipd/skipd-api/pkg/errors"
	"github.com/skipd/skipd-api/pkg/response"
)

// ContextUserKey is the gin context key storing the resolved principal.
const ContextUserKey = "currentUser"

// JWT protects routes by requiring a valid access token. The token's claimed
// identity is resolved against the user store on every request, so tokens
// for deleted accounts are rejected here.
func JWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		principal, err := authService.ResolveIdentity(c.Request.Context(), parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, principal)
		c.Next()
	}
}
