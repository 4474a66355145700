package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"go-gin-gorm-accounts/internal/core/auth"
	"go-gin-gorm-accounts/internal/core/logger"
	"go-gin-gorm-accounts/internal/domain"
	resp "go-gin-gorm-accounts/internal/transport/http/response"
)

const KeyCaller = "caller"

// AuthJWT verifies the bearer token and stores the domain.Caller on the
// context. A non-empty requireRole additionally gates the whole group.
func AuthJWT(j *auth.JWTer, requireRole domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		ah := c.GetHeader("Authorization")
		if !strings.HasPrefix(ah, "Bearer ") {
			resp.Abort(c, resp.CodeUnauthorized, "missing token")
			return
		}
		claims, err := j.Parse(strings.TrimPrefix(ah, "Bearer "))
		if err != nil {
			resp.Abort(c, resp.CodeUnauthorized, "invalid token")
			return
		}
		role, ok := domain.ParseRole(claims.Role)
		if !ok {
			resp.Abort(c, resp.CodeUnauthorized, "invalid token")
			return
		}
		if requireRole != "" && role != requireRole {
			resp.Abort(c, resp.CodeForbidden, "forbidden")
			return
		}
		c.Set(KeyCaller, domain.Caller{ID: claims.Subject, Email: claims.Email, Role: role})
		c.Request = c.Request.WithContext(logger.WithFields(c.Request.Context(), zap.String("caller", claims.Subject)))
		c.Next()
	}
}

// CallerFrom returns the zero Caller when AuthJWT did not run.
func CallerFrom(c *gin.Context) domain.Caller {
	if v, ok := c.Get(KeyCaller); ok {
		if caller, ok := v.(domain.Caller); ok {
			return caller
		}
	}
	return domain.Caller{}
}
