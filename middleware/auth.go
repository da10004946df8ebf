package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/orchestrator/common"
	"github.com/joshu-sajeev/orchestrator/internal/auth"
	"github.com/joshu-sajeev/orchestrator/internal/config"
)

const identityKey = "identity"

// Authenticate requires a valid bearer access token and stores the caller's
// identity on the context.
func Authenticate(v auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			c.Error(common.Errf(http.StatusUnauthorized, "missing bearer token"))
			c.Abort()
			return
		}

		id, err := v.Verify(strings.TrimSpace(token))
		if err != nil {
			c.Error(common.Errf(http.StatusUnauthorized, "could not validate credentials"))
			c.Abort()
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireRole rejects authenticated callers whose role is not listed.
func RequireRole(roles ...config.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			c.Error(common.Errf(http.StatusUnauthorized, "not authenticated"))
			c.Abort()
			return
		}
		if !slices.Contains(roles, id.Role) {
			c.Error(common.Errf(http.StatusForbidden, "role %q may not perform this action", id.Role))
			c.Abort()
			return
		}
		c.Next()
	}
}

func IdentityFrom(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}

// SetIdentity is used by tests and internal callers that authenticate by other means.
func SetIdentity(c *gin.Context, id auth.Identity) {
	c.Set(identityKey, id)
}
