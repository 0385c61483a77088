package httpapi

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aimathteacher/backend/internal/server/identity"
)

const (
	ctxIdentity    = "identity"
	ctxLegacyToken = "legacy_token"

	headerSessionToken = "X-Session-Token"
)

// identityMiddleware resolves request credentials into an identity: a valid
// Authorization bearer wins, the X-Session-Token header is the fallback. An
// unresolved caller passes through with no identity set; anonymous flows
// mint their own user later.
func (s *Server) identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		bearer := ""
		if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			bearer = strings.TrimPrefix(h, "Bearer ")
		}
		legacy := c.GetHeader(headerSessionToken)
		c.Set(ctxLegacyToken, legacy)

		if id := s.auth.ResolveIdentity(c.Request.Context(), bearer, legacy); id != nil {
			c.Set(ctxIdentity, id)
		}
		c.Next()
	}
}

// callerIdentity returns the resolved identity, or nil for an unresolved
// caller.
func callerIdentity(c *gin.Context) identity.Identity {
	v, ok := c.Get(ctxIdentity)
	if !ok {
		return nil
	}
	id, _ := v.(identity.Identity)
	return id
}

// legacyToken returns the raw X-Session-Token header value.
func legacyToken(c *gin.Context) string {
	return c.GetString(ctxLegacyToken)
}
