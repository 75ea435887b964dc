package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-cession/internal/service"
)

// KindRateLimited is reported by the rate limiter; the services never
// produce it.
const KindRateLimited service.Kind = "rate_limited"

// successEnvelope wraps every 2xx body.
type successEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// failureEnvelope is the only shape an error ever leaves the API in.
type failureEnvelope struct {
	Success     bool              `json:"success"`
	Error       string            `json:"error"`
	ErrorKind   service.Kind      `json:"error_kind"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
}

func ok(c echo.Context, status int, data any) error {
	return c.JSON(status, successEnvelope{Success: true, Data: data})
}

func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindUnauthorized:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func kindFor(status int) service.Kind {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return service.KindValidation
	case http.StatusUnauthorized:
		return service.KindUnauthorized
	case http.StatusForbidden:
		return service.KindForbidden
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return service.KindNotFound
	case http.StatusConflict:
		return service.KindConflict
	default:
		return service.KindInternal
	}
}

// failure converts any error into its status code and envelope.
// Internal errors never leak their cause.
func failure(err error) (int, failureEnvelope) {
	var se *service.Error
	if errors.As(err, &se) {
		msg := se.Message
		if se.Kind == service.KindInternal {
			msg = service.MsgInternal
		}
		return statusFor(se.Kind), failureEnvelope{Error: msg, ErrorKind: se.Kind, FieldErrors: se.Fields}
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		kind := kindFor(he.Code)
		msg := http.StatusText(he.Code)
		if s, isStr := he.Message.(string); isStr && s != "" {
			msg = s
		} else if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		status := he.Code
		switch {
		case he.Code == http.StatusTooManyRequests:
			kind = KindRateLimited
		case kind == service.KindInternal:
			status, msg = http.StatusInternalServerError, service.MsgInternal
		}
		return status, failureEnvelope{Error: msg, ErrorKind: kind}
	}
	return http.StatusInternalServerError, failureEnvelope{Error: service.MsgInternal, ErrorKind: service.KindInternal}
}

// ErrorHandler replaces echo's default so that every failure, including
// routing and middleware errors, is rendered as the failure envelope.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := failure(err)
		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				"method", c.Request().Method,
				"path", c.Path(),
				"status", status,
				"error", err,
			)
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}
