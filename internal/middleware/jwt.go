package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/parking-cession/internal/handler" // context key shared with handlers
	"github.com/iliyamo/parking-cession/internal/utils"   // access token parsing
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// stores the caller's identity in the request context.  The provided secret
// must match the one used when issuing tokens.  Handlers read the identity
// under handler.IdentityKey; the raw "user_id" and "role" values are kept
// for the rate limiter and the request logger.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A valid header starts with "Bearer " followed by the JWT.
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			id, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(handler.IdentityKey, id)
			c.Set("user_id", id.UserID)
			c.Set("role", string(id.Role))
			return next(c)
		}
	}
}
