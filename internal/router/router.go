package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/parking-cession/internal/handler"    // handlers for each endpoint
	"github.com/iliyamo/parking-cession/internal/middleware" // JWT authentication and role enforcement
	"github.com/iliyamo/parking-cession/internal/model"
)

// Handlers groups everything RegisterAPI mounts.
type Handlers struct {
	Auth         *handler.AuthHandler
	Availability *handler.AvailabilityHandler
	Reservations *handler.ReservationHandler
	Cessions     *handler.CessionHandler
	Visitors     *handler.VisitorHandler
}

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAPI mounts the versioned API. Login lives under /v1/auth
// without a session; everything else under /v1 requires a valid access
// token, and the cession endpoints additionally require a manager or
// admin role. limiter is applied after authentication so buckets can be
// keyed per user.
func RegisterAPI(e *echo.Echo, h Handlers, jwtSecret string, limiter echo.MiddlewareFunc) {
	public := e.Group("/v1/auth", limiter)
	public.POST("/login", h.Auth.Login)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(model.RoleEmployee, model.RoleManagement, model.RoleAdmin))
	auth.Use(limiter)

	auth.GET("/me", h.Auth.Me)

	auth.GET("/spots/bookable", h.Availability.BookableSpots)
	auth.GET("/calendar", h.Availability.Calendar)

	auth.POST("/reservations", h.Reservations.Create)
	auth.GET("/my-reservations", h.Reservations.ListMine)
	auth.DELETE("/reservations/:id", h.Reservations.Cancel)

	auth.POST("/visitor-bookings", h.Visitors.Create)
	auth.DELETE("/visitor-bookings/:id", h.Visitors.Cancel)

	managers := middleware.RequireRole(model.RoleManagement, model.RoleAdmin)
	auth.POST("/cessions", h.Cessions.Create, managers)
	auth.GET("/my-cessions", h.Cessions.ListMine, managers)
	auth.DELETE("/cessions/:id", h.Cessions.Cancel, managers)
}
