package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"gowa-gateway/internal/service"
)

type SessionRequest struct {
	SessionID string `json:"session_id"`
}

func statusMessage(c echo.Context, code int, ok bool, message string) error {
	return c.JSON(code, map[string]interface{}{
		"status":  ok,
		"message": message,
	})
}

func bindSessionID(c echo.Context) (string, error) {
	var req SessionRequest
	if err := c.Bind(&req); err != nil {
		return "", fmt.Errorf("%w: invalid request body", service.ErrValidation)
	}
	id := strings.TrimSpace(req.SessionID)
	if id == "" {
		return "", fmt.Errorf("%w: session_id wajib diisi", service.ErrValidation)
	}
	return id, nil
}

// POST /session/start
func (h *Handler) StartSession(c echo.Context) error {
	id, err := bindSessionID(c)
	if err != nil {
		return statusMessage(c, http.StatusBadRequest, false, err.Error())
	}

	if err := h.sessions.Start(c.Request().Context(), id); err != nil {
		return statusMessage(c, statusFor(err), false, err.Error())
	}
	return statusMessage(c, http.StatusOK, true, fmt.Sprintf("Session %s starting. Check status for QR.", id))
}

// POST /session/logout
func (h *Handler) LogoutSession(c echo.Context) error {
	id, err := bindSessionID(c)
	if err != nil {
		return statusMessage(c, http.StatusBadRequest, false, err.Error())
	}

	res, err := h.sessions.Logout(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return statusMessage(c, http.StatusNotFound, false, "Session tidak ditemukan")
		}
		return statusMessage(c, statusFor(err), false, err.Error())
	}
	return statusMessage(c, http.StatusOK, true, res.Message(id))
}

// GET /session/status/:id
func (h *Handler) SessionStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.sessions.Status(c.Param("id")))
}

// GET /sessions
func (h *Handler) ListSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, h.sessions.List())
}
