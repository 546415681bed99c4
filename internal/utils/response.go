package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response success envelope of every API answer.
type Response struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       any    `json:"data"`
}

// ErrorResponse failure envelope; it never carries data.
type ErrorResponse struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// Success writes a 200 envelope.
func Success(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Response{
		Success:    true,
		StatusCode: http.StatusOK,
		Message:    message,
		Data:       data,
	})
}

// Error writes a failure envelope with the given status.
func Error(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{
		Success:    false,
		StatusCode: status,
		Message:    message,
	})
}

// AbortWithError writes a failure envelope and stops the handler chain.
func AbortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Success:    false,
		StatusCode: status,
		Message:    message,
	})
}
