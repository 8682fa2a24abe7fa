package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/sangkips/popup-pos/internal/presentation/http/middleware"
)

// GetTerminalID returns the calling terminal
func GetTerminalID(c *gin.Context) string {
	return middleware.GetTerminalID(c)
}

// hasBody reports whether the request carries a body to bind
func hasBody(c *gin.Context) bool {
	return c.Request.Body != nil && c.Request.ContentLength != 0
}
