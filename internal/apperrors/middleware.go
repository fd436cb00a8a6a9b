package apperrors

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/podwise/hrap/internal/logger"
)

// GinMiddleware translates the last error attached via c.Error(...) into a
// stable JSON error response, matching the gateway's §6 status code table.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		ae, ok := As(err)
		if !ok {
			logger.ErrorWithFields(c.Request.Context(), err, nil)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		if ae.Kind == KindInvariantViolation {
			logger.ErrorWithFields(c.Request.Context(), ae, map[string]interface{}{"kind": ae.Kind})
		}
		c.JSON(ae.Kind.HTTPStatus(), gin.H{"error": ae.Message})
	}
}
