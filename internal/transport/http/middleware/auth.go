package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docmind/internal/pkg/jwtutil"
	"docmind/internal/transport/http/response"
)

const ContextClientKey = "client"

// AuthBearer accepts either the static token or an HS256 JWT signed with
// jwtSecret. With neither configured every request passes.
func AuthBearer(staticToken, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if staticToken == "" && jwtSecret == "" {
			c.Next()
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "missing authorization header")
			c.Abort()
			return
		}

		const prefix = "Bearer "
		if !strings.HasPrefix(authHeader, prefix) {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid authorization scheme")
			c.Abort()
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))

		if staticToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(staticToken)) == 1 {
			c.Set(ContextClientKey, "static")
			c.Next()
			return
		}
		if jwtSecret != "" {
			if claims, err := jwtutil.ParseToken(jwtSecret, token); err == nil {
				c.Set(ContextClientKey, claims.Client)
				c.Next()
				return
			}
		}

		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid authorization token")
		c.Abort()
	}
}
