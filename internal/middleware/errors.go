package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/user/movierec/internal/apperr"
	"github.com/user/movierec/internal/logging"
	"github.com/user/movierec/internal/utils"
)

// ErrorHandler turns the last error attached with c.Error into the error
// envelope. Handlers attach the error and return without writing.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		status := apperr.StatusCode(err)
		if status >= http.StatusInternalServerError {
			log := logging.Component("api")
			log.Error().Err(err).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Str("request_id", GetRequestID(c)).
				Msg("request failed")
		}
		utils.Error(c, status, apperr.PublicMessage(err))
	}
}

// Recovery answers a panic with a 500 envelope.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log := logging.Component("api")
		log.Error().
			Interface("panic", recovered).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("request_id", GetRequestID(c)).
			Msg("panic recovered")
		utils.AbortWithError(c, http.StatusInternalServerError, "Internal Server Error")
	})
}

// NoRoute 404 envelope for unmatched routes.
func NoRoute() gin.HandlerFunc {
	return func(c *gin.Context) {
		utils.Error(c, http.StatusNotFound, "Route not found: "+c.Request.Method+" "+c.Request.URL.RequestURI())
	}
}
