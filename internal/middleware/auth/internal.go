package auth

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// InternalConfig holds the configuration for the internal-endpoint guard.
// Two caller classes are accepted: platform services presenting the
// shared internal token, and operators presenting a JWT whose email is
// in the admin allowlist.
type InternalConfig struct {
	InternalToken string
	JWTSecret     string
	AdminEmails   []string
	Logger        *zap.Logger
}

// InternalMiddleware guards internal endpoints such as the reconciliation
// trigger and the webhook event audit trail.
func InternalMiddleware(config InternalConfig) echo.MiddlewareFunc {
	admins := make(map[string]struct{}, len(config.AdminEmails))
	for _, email := range config.AdminEmails {
		admins[strings.ToLower(strings.TrimSpace(email))] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path

			if token := c.Request().Header.Get("X-Internal-Token"); token != "" {
				if config.InternalToken != "" &&
					subtle.ConstantTimeCompare([]byte(token), []byte(config.InternalToken)) == 1 {
					return next(c)
				}
				config.Logger.Warn("Invalid internal token",
					zap.String("path", path))
				return c.JSON(http.StatusForbidden, echo.Map{
					"error": "Invalid internal token",
					"code":  "INVALID_INTERNAL_TOKEN",
				})
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				config.Logger.Warn("Missing credentials for internal endpoint",
					zap.String("path", path),
					zap.String("method", c.Request().Method))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "X-Internal-Token or Authorization header required",
					"code":  "MISSING_CREDENTIALS",
				})
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "Invalid authorization header format. Expected: Bearer <token>",
					"code":  "INVALID_AUTH_FORMAT",
				})
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(config.JWTSecret), nil
			})
			if err != nil || !token.Valid {
				config.Logger.Warn("JWT validation failed for internal endpoint",
					zap.Error(err),
					zap.String("path", path))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "Invalid or expired token",
					"code":  "INVALID_TOKEN",
				})
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "Invalid token claims",
					"code":  "INVALID_CLAIMS",
				})
			}

			email, _ := claims["email"].(string)
			if _, allowed := admins[strings.ToLower(email)]; !allowed {
				config.Logger.Warn("Non-admin caller on internal endpoint",
					zap.String("email", email),
					zap.String("path", path))
				return c.JSON(http.StatusForbidden, echo.Map{
					"error": "Admin access required",
					"code":  "NOT_ADMIN",
				})
			}

			c.Set("admin_email", email)
			return next(c)
		}
	}
}
