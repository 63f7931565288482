package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"gowa-gateway/internal/model"
	"gowa-gateway/internal/service"
)

const Version = "1.0.0"

// SessionService adalah operasi SessionManager yang dipakai HTTP layer.
type SessionService interface {
	Start(ctx context.Context, sessionID string) error
	Logout(ctx context.Context, sessionID string) (service.LogoutResult, error)
	Status(sessionID string) model.SessionStatus
	List() []model.SessionSummary
	Send(ctx context.Context, sessionID, number string, content service.Content) (service.SendResult, error)
}

type Handler struct {
	sessions SessionService
}

func New(sessions SessionService) *Handler {
	return &Handler{sessions: sessions}
}

// GET /
func (h *Handler) Health(c echo.Context) error {
	return SuccessResponse(c, http.StatusOK, "WhatsApp gateway is running", map[string]string{
		"version": Version,
	})
}
