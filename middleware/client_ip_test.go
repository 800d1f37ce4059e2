package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func requestContext(remoteAddr, xff string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/api/webhook", nil)
	c.Request.RemoteAddr = remoteAddr
	if xff != "" {
		c.Request.Header.Set("X-Forwarded-For", xff)
	}
	return c
}

func TestClientIP_TrustsOnlyLastForwardedHop(t *testing.T) {
	c := requestContext("10.0.0.1:443", "6.6.6.6, 203.0.113.9")
	if got := clientIP(c); got != "203.0.113.9" {
		t.Fatalf("clientIP = %q, want the proxy-appended hop 203.0.113.9", got)
	}
}

func TestClientIP_FallsBackToRemoteAddr(t *testing.T) {
	c := requestContext("198.51.100.7:52011", "")
	if got := clientIP(c); got != "198.51.100.7" {
		t.Fatalf("clientIP = %q, want 198.51.100.7", got)
	}
}
