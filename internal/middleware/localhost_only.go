package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// LocalhostOnly restricts a route to loopback and whitelisted IPs or CIDR ranges
type LocalhostOnly struct {
	logger     *logrus.Logger
	allowedIPs []string
}

func NewLocalhostOnly(logger *logrus.Logger, allowedIPs []string) *LocalhostOnly {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LocalhostOnly{logger: logger, allowedIPs: allowedIPs}
}

// Restrict rejects any client outside the whitelist with 403.
func (l *LocalhostOnly) Restrict() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if l.isAllowedIP(clientIP) {
			c.Next()
			return
		}

		l.logger.WithFields(logrus.Fields{
			"client_ip":   clientIP,
			"path":        c.Request.URL.Path,
			"remote_addr": c.Request.RemoteAddr,
		}).Warn("[LocalhostOnly] access denied")
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": "Forbidden",
			"code":  "IP_NOT_ALLOWED",
		})
	}
}

func (l *LocalhostOnly) isAllowedIP(clientIP string) bool {
	if isLocalhost(clientIP) {
		return true
	}
	ip := net.ParseIP(clientIP)
	if ip == nil {
		return false
	}
	for _, allowed := range l.allowedIPs {
		allowed = strings.TrimSpace(allowed)
		if strings.Contains(allowed, "/") {
			if _, network, err := net.ParseCIDR(allowed); err == nil && network.Contains(ip) {
				return true
			}
			continue
		}
		if allowedIP := net.ParseIP(allowed); allowedIP != nil && allowedIP.Equal(ip) {
			return true
		}
	}
	return false
}

func isLocalhost(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.IsLoopback()
}
