package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"twister-backend/internal/dto"
	"twister-backend/internal/handlers"
)

// AuthMiddleware operator bearer tokens
type AuthMiddleware struct {
	logger *logrus.Logger
}

// NewAuthMiddleware tokens are verified with the secret installed by handlers.SetJWTSecret.
func NewAuthMiddleware(logger *logrus.Logger) *AuthMiddleware {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AuthMiddleware{logger: logger}
}

func (a *AuthMiddleware) reject(c *gin.Context, code, message string) {
	a.logger.WithFields(logrus.Fields{
		"path":   c.Request.URL.Path,
		"method": c.Request.Method,
		"code":   code,
	}).Warn("[Auth] request rejected")

	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{
		Error:   "Authentication required",
		Code:    code,
		Message: message,
	})
}

// RequireAuth rejects requests without a valid operator token.
func (a *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			a.reject(c, "MISSING_AUTH_HEADER", "Missing Authorization header. Please provide a valid JWT token.")
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			a.reject(c, "INVALID_AUTH_FORMAT", "Authorization header must be in format: Bearer <token>")
			return
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if tokenString == "" {
			a.reject(c, "EMPTY_TOKEN", "Token cannot be empty")
			return
		}

		claims, err := handlers.ValidateJWTToken(tokenString)
		if err != nil {
			a.reject(c, "INVALID_TOKEN", err.Error())
			return
		}

		c.Set("operator", claims.Operator)
		c.Set("role", claims.Role)

		a.logger.WithFields(logrus.Fields{
			"path":     c.Request.URL.Path,
			"method":   c.Request.Method,
			"operator": claims.Operator,
		}).Debug("[Auth] token accepted")

		c.Next()
	}
}
