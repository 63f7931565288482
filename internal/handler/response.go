package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"gowa-gateway/internal/service"
)

// ErrorResponse menulis envelope error standar.
func ErrorResponse(c echo.Context, code int, message, errCode, details string) error {
	errBody := map[string]interface{}{
		"code": errCode,
	}
	if details != "" {
		errBody["details"] = details
	}
	return c.JSON(code, map[string]interface{}{
		"success": false,
		"message": message,
		"error":   errBody,
	})
}

func SuccessResponse(c echo.Context, code int, message string, data interface{}) error {
	body := map[string]interface{}{
		"success": true,
		"message": message,
	}
	if data != nil {
		body["data"] = data
	}
	return c.JSON(code, body)
}

// statusFor memetakan sentinel error service ke HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrUpstreamSend):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HTTPErrorHandler merender error echo (404 route, 405, panic yang di-recover)
// dengan envelope yang sama.
func HTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		message := http.StatusText(code)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if m, ok := he.Message.(string); ok {
				message = m
			} else {
				message = http.StatusText(code)
			}
		} else {
			code = statusFor(err)
			message = err.Error()
		}

		if code >= http.StatusInternalServerError {
			log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = ErrorResponse(c, code, message, http.StatusText(code), "")
	}
}
