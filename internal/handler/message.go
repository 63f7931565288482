package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"gowa-gateway/internal/service"
)

// flexString menerima nilai JSON string maupun angka (mis. "0812..." atau 62812...).
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("must be a string or number")
	}
	*f = flexString(n.String())
	return nil
}

// Request body untuk send message
type SendMessageRequest struct {
	Number     flexString      `json:"number"`
	Message    string          `json:"message"`
	Type       string          `json:"type"`
	MediaURL   string          `json:"media_url"`
	SessionID  string          `json:"session_id"`
	MimeType   string          `json:"mime_type"`
	FileName   string          `json:"file_name"`
	Footer     string          `json:"footer"`
	Title      string          `json:"title"`
	ButtonText string          `json:"buttonText"`
	Sections   json.RawMessage `json:"sections"`
}

func (r SendMessageRequest) content() (service.Content, error) {
	content := service.Content{
		Type:       service.ContentType(strings.ToLower(strings.TrimSpace(r.Type))),
		Text:       r.Message,
		MediaURL:   r.MediaURL,
		MimeType:   r.MimeType,
		FileName:   r.FileName,
		Footer:     r.Footer,
		Title:      r.Title,
		ButtonText: r.ButtonText,
	}

	if len(r.Sections) > 0 {
		// UseNumber supaya rowId numerik tidak berubah jadi float
		dec := json.NewDecoder(bytes.NewReader(r.Sections))
		dec.UseNumber()
		if err := dec.Decode(&content.RawSections); err != nil {
			return content, fmt.Errorf("%w: invalid sections: %v", service.ErrValidation, err)
		}
	}
	return content, nil
}

func sendError(c echo.Context, code int, message string) error {
	return c.JSON(code, map[string]interface{}{
		"status":  "error",
		"message": message,
	})
}

// POST /send-message
func (h *Handler) SendMessage(c echo.Context) error {
	var req SendMessageRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return sendError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	content, err := req.content()
	if err != nil {
		return sendError(c, statusFor(err), err.Error())
	}

	res, err := h.sessions.Send(c.Request().Context(), strings.TrimSpace(req.SessionID), string(req.Number), content)
	if err != nil {
		return sendError(c, statusFor(err), err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":     "success",
		"sender":     res.Sender,
		"session_id": res.SessionID,
		"recipient":  res.Recipient,
	})
}
