package middleware

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

// clientIP derives the caller address for rate limiting. Traffic here is
// server-to-server from the channel platform through the deployment's own
// proxy, so only the last X-Forwarded-For hop is trusted: earlier entries
// are supplied by the caller and spoofable.
func clientIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		if ip := strings.TrimSpace(hops[len(hops)-1]); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil {
		return host
	}
	return c.Request.RemoteAddr
}
