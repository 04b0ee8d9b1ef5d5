package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ClaimsKey is the gin context key holding the caller's Claims.
const ClaimsKey = "claims"

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": msg})
}

// Bearer enforces HS256 bearer tokens and answers failures with a 401
// envelope.
func Bearer(signingKey, issuer string, denied *Denylist) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			unauthorized(c, "Access token required")
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			unauthorized(c, "Invalid or expired token")
			return
		}
		if denied != nil && denied.Revoked(claims.ID) {
			unauthorized(c, "Token has been revoked")
			return
		}
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}
