package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/code-100-precent/LingRelay/pkg/utils/response"
	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// ExtractToken reads a bearer token from the Authorization header, falling back to the
// token query parameter (browsers cannot set headers on websocket upgrades).
func ExtractToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return c.Query("token")
}

// BearerMiddleware rejects requests without a verifiable credential and stores the
// Principal in the gin context.
func BearerMiddleware(verifier Verifier) gin.HandlerFunc {
	if verifier == nil {
		panic("Verifier cannot be nil")
	}
	return func(c *gin.Context) {
		token := ExtractToken(c)
		if token == "" {
			response.AbortWithStatusJSON(c, http.StatusUnauthorized, errors.New("missing token"))
			return
		}
		p, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			response.AbortWithStatusJSON(c, http.StatusUnauthorized, errors.New("invalid token"))
			return
		}
		SetPrincipal(c, p)
		c.Next()
	}
}

// SetPrincipal attaches p to the request context.
func SetPrincipal(c *gin.Context, p Principal) {
	c.Set(principalKey, p)
}

// CurrentPrincipal returns the principal stored by BearerMiddleware.
func CurrentPrincipal(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}
