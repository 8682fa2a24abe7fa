package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// TerminalIDHeader identifies the register a request comes from
	TerminalIDHeader = "X-Terminal-ID"

	terminalIDKey = "terminal_id"
	maxTerminalID = 100
)

// TerminalMiddleware resolves the calling terminal. Requests without the
// header are attributed to the client address.
func TerminalMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		terminalID := strings.TrimSpace(c.GetHeader(TerminalIDHeader))
		if terminalID == "" {
			terminalID = c.ClientIP()
		}
		if len(terminalID) > maxTerminalID {
			terminalID = terminalID[:maxTerminalID]
		}
		c.Set(terminalIDKey, terminalID)
		c.Next()
	}
}

// GetTerminalID returns the terminal resolved by TerminalMiddleware
func GetTerminalID(c *gin.Context) string {
	if id := c.GetString(terminalIDKey); id != "" {
		return id
	}
	return c.ClientIP()
}
