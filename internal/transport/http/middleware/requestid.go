package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"go-gin-gorm-accounts/internal/core/logger"
)

const KeyRequestID = "X-Request-ID"

// RequestID echoes or mints X-Request-ID and puts it on the request context,
// so service logs for the same call carry a "rid" field.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.Request.Header.Get(KeyRequestID)
		if rid == "" || len(rid) > 128 {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(KeyRequestID, rid)
		c.Set(KeyRequestID, rid)
		c.Request = c.Request.WithContext(logger.WithFields(c.Request.Context(), zap.String("rid", rid)))
		c.Next()
	}
}
