package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-cession/internal/model"
	"github.com/iliyamo/parking-cession/internal/service"
)

// requestTimeout bounds the storage work of a single request.
const requestTimeout = 5 * time.Second

// IdentityKey is the echo context key under which the JWT middleware
// stores the caller's model.Identity.
const IdentityKey = "identity"

// identity returns the authenticated caller, or the zero Identity when
// the route is not behind JWTAuth. Services reject the zero value.
func identity(c echo.Context) model.Identity {
	id, _ := c.Get(IdentityKey).(model.Identity)
	return id
}

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// bind decodes the request body into req and validates it.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return &service.Error{Kind: service.KindValidation, Message: "invalid body", Err: err}
	}
	return c.Validate(req)
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fieldError(name, "must be a positive integer")
	}
	return id, nil
}

// queryDate parses an optional YYYY-MM-DD query parameter. A missing
// value yields the zero time and no error unless required is set.
func queryDate(c echo.Context, name string, required bool) (time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		if required {
			return time.Time{}, fieldError(name, "is required")
		}
		return time.Time{}, nil
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		return time.Time{}, fieldError(name, "must be a date in YYYY-MM-DD format")
	}
	return d, nil
}

func fieldError(field, msg string) *service.Error {
	return &service.Error{Kind: service.KindValidation, Message: "validation failed", Fields: map[string]string{field: msg}}
}
