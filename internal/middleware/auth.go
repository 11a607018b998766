package middleware

import (
	"strings"

	"catalog-service/pkg/jwtutil"
	"catalog-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// OptionalAuthMiddleware extracts the user from a Bearer token when one is
// present. Read paths never reject a request: a missing or invalid token
// leaves the request anonymous.
func OptionalAuthMiddleware(jwt *jwtutil.JWTUtil) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" || jwt == nil {
				return next(c)
			}

			log := logger.FromEcho(c)

			parts := strings.Fields(authHeader)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				log.Debug("Ignoring malformed Authorization header")
				return next(c)
			}

			claims, err := jwt.ValidateToken(parts[1])
			if err != nil {
				log.Info("Ignoring invalid JWT token", zap.Error(err))
				return next(c)
			}
			if claims.UserID <= 0 {
				log.Debug("JWT token does not carry a user id")
				return next(c)
			}

			c.Set("user_id", claims.UserID)
			c.Set("email", claims.Email)
			c.Set("logger", log.With(zap.Int64("user_id", claims.UserID)))

			return next(c)
		}
	}
}

// GetUserIDFromContext returns the authenticated user id, or nil for
// anonymous requests
func GetUserIDFromContext(c echo.Context) *int64 {
	userID, ok := c.Get("user_id").(int64)
	if !ok || userID <= 0 {
		return nil
	}
	return &userID
}
