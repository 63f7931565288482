package handler

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"gowa-gateway/internal/model"
	"gowa-gateway/internal/service"
)

type sendCall struct {
	sessionID string
	number    string
	content   service.Content
}

type fakeSessions struct {
	startErr  error
	started   []string
	logoutRes service.LogoutResult
	logoutErr error
	status    map[string]model.SessionStatus
	list      []model.SessionSummary
	sendRes   service.SendResult
	sendErr   error
	sends     []sendCall
}

func (f *fakeSessions) Start(ctx context.Context, id string) error {
	f.started = append(f.started, id)
	return f.startErr
}

func (f *fakeSessions) Logout(ctx context.Context, id string) (service.LogoutResult, error) {
	return f.logoutRes, f.logoutErr
}

func (f *fakeSessions) Status(id string) model.SessionStatus {
	if s, ok := f.status[id]; ok {
		return s
	}
	return model.NotFoundStatus()
}

func (f *fakeSessions) List() []model.SessionSummary { return f.list }

func (f *fakeSessions) Send(ctx context.Context, id, number string, content service.Content) (service.SendResult, error) {
	f.sends = append(f.sends, sendCall{sessionID: id, number: number, content: content})
	return f.sendRes, f.sendErr
}

func newTestServer(f *fakeSessions) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = HTTPErrorHandler(zerolog.Nop())
	h := New(f)
	e.GET("/", h.Health)
	e.POST("/session/start", h.StartSession)
	e.POST("/session/logout", h.LogoutSession)
	e.GET("/session/status/:id", h.SessionStatus)
	e.GET("/sessions", h.ListSessions)
	e.GET("/sessions/export", h.ExportSessions)
	e.POST("/send-message", h.SendMessage)
	return e
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func strptr(s string) *string { return &s }

func TestStartSession(t *testing.T) {
	f := &fakeSessions{}
	e := newTestServer(f)

	rec := do(e, http.MethodPost, "/session/start", `{"session_id":"toko1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["status"])
	assert.Contains(t, body["message"], "toko1")
	assert.Equal(t, []string{"toko1"}, f.started)
}

func TestStartSession_MissingID(t *testing.T) {
	for _, payload := range []string{`{}`, `{"session_id":"  "}`, `not json`} {
		f := &fakeSessions{}
		rec := do(newTestServer(f), http.MethodPost, "/session/start", payload)
		assert.Equal(t, http.StatusBadRequest, rec.Code, payload)
		assert.Equal(t, false, decode(t, rec)["status"])
		assert.Empty(t, f.started)
	}
}

func TestStartSession_ValidationErrorIs400(t *testing.T) {
	f := &fakeSessions{startErr: fmt.Errorf("%w: session_id \"a/b\" contains invalid characters", service.ErrValidation)}
	rec := do(newTestServer(f), http.MethodPost, "/session/start", `{"session_id":"a/b"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, decode(t, rec)["status"])
}

func TestLogoutSession(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		f := &fakeSessions{logoutRes: service.LogoutResult{InMemory: true, StorageRemoved: true}}
		rec := do(newTestServer(f), http.MethodPost, "/session/logout", `{"session_id":"toko1"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, true, body["status"])
		assert.Equal(t, "Session toko1 logged out and removed", body["message"])
	})

	t.Run("unknown", func(t *testing.T) {
		f := &fakeSessions{logoutErr: fmt.Errorf("%w: ghost", service.ErrNotFound)}
		rec := do(newTestServer(f), http.MethodPost, "/session/logout", `{"session_id":"ghost"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, false, decode(t, rec)["status"])
	})

	t.Run("erase failure", func(t *testing.T) {
		f := &fakeSessions{logoutErr: fmt.Errorf("erase credentials: disk full")}
		rec := do(newTestServer(f), http.MethodPost, "/session/logout", `{"session_id":"toko1"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestSessionStatus(t *testing.T) {
	f := &fakeSessions{status: map[string]model.SessionStatus{
		"scan":   {Status: model.StatusScanNeeded, QR: strptr("2@qr")},
		"online": {Status: model.StatusConnected, Phone: strptr("628111")},
	}}
	e := newTestServer(f)

	body := decode(t, do(e, http.MethodGet, "/session/status/scan", ""))
	assert.Equal(t, "scan_needed", body["status"])
	assert.Equal(t, "2@qr", body["qr"])
	assert.Nil(t, body["phone"])

	body = decode(t, do(e, http.MethodGet, "/session/status/online", ""))
	assert.Equal(t, "connected", body["status"])
	assert.Equal(t, "628111", body["phone"])

	rec := do(e, http.MethodGet, "/session/status/ghost", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "not_found", body["status"])
	assert.Contains(t, body, "qr")
	assert.Nil(t, body["qr"])
}

func TestListSessions(t *testing.T) {
	f := &fakeSessions{list: []model.SessionSummary{
		{SessionID: "a", Status: model.StatusConnected, Phone: strptr("628111")},
		{SessionID: "b", Status: model.StatusConnecting},
	}}
	rec := do(newTestServer(f), http.MethodGet, "/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0]["session_id"])
	assert.Equal(t, "628111", got[0]["phone"])
	assert.Nil(t, got[1]["phone"])
}

func TestListSessions_EmptyIsArray(t *testing.T) {
	rec := do(newTestServer(&fakeSessions{list: []model.SessionSummary{}}), http.MethodGet, "/sessions", "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestSendMessage_Success(t *testing.T) {
	f := &fakeSessions{sendRes: service.SendResult{SessionID: "gw", Sender: "628111", Recipient: "6281234567890@s.whatsapp.net"}}
	rec := do(newTestServer(f), http.MethodPost, "/send-message", `{"number":"081234567890","message":"halo"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "628111", body["sender"])

	require.Len(t, f.sends, 1)
	assert.Equal(t, "081234567890", f.sends[0].number)
	assert.Equal(t, "", f.sends[0].sessionID)
	assert.Equal(t, "halo", f.sends[0].content.Text)
}

func TestSendMessage_NumericNumber(t *testing.T) {
	f := &fakeSessions{}
	do(newTestServer(f), http.MethodPost, "/send-message", `{"number":6281234567890,"message":"x","session_id":"gw"}`)

	require.Len(t, f.sends, 1)
	assert.Equal(t, "6281234567890", f.sends[0].number)
	assert.Equal(t, "gw", f.sends[0].sessionID)
}

func TestSendMessage_ListKeepsNumericRowID(t *testing.T) {
	f := &fakeSessions{}
	payload := `{"number":"0812","message":"menu","type":"list","buttonText":"Buka",
		"sections":[{"title":"A","rows":[{"title":"r","rowId":1}]}]}`
	do(newTestServer(f), http.MethodPost, "/send-message", payload)

	require.Len(t, f.sends, 1)
	c := f.sends[0].content
	assert.Equal(t, service.ContentList, c.Type)
	assert.Equal(t, "Buka", c.ButtonText)

	sections, err := service.SanitizeSections(c.RawSections)
	require.NoError(t, err)
	assert.Equal(t, "1", sections[0].Rows[0].RowID)
}

func TestSendMessage_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"validation", fmt.Errorf("%w: number is required", service.ErrValidation), http.StatusBadRequest},
		{"no gateway", fmt.Errorf("%w: no gateway available", service.ErrGatewayUnavailable), http.StatusServiceUnavailable},
		{"upstream", fmt.Errorf("%w: timeout", service.ErrUpstreamSend), http.StatusBadGateway},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeSessions{sendErr: tt.err}
			rec := do(newTestServer(f), http.MethodPost, "/send-message", `{"number":"0812","message":"x"}`)
			assert.Equal(t, tt.code, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, "error", body["status"])
			assert.Equal(t, tt.err.Error(), body["message"])
		})
	}
}

func TestSendMessage_BadBody(t *testing.T) {
	f := &fakeSessions{}
	e := newTestServer(f)

	rec := do(e, http.MethodPost, "/send-message", `{"number":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPost, "/send-message", `{"number":"0812","type":"list","sections":[1,}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.sends)
}

func TestExportSessions(t *testing.T) {
	f := &fakeSessions{list: []model.SessionSummary{
		{SessionID: "a", Status: model.StatusConnected, Phone: strptr("6281234567890")},
		{SessionID: "b", Status: model.StatusScanNeeded},
	}}
	e := newTestServer(f)

	t.Run("csv", func(t *testing.T) {
		rec := do(e, http.MethodGet, "/sessions/export?format=csv", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

		rows, err := csv.NewReader(rec.Body).ReadAll()
		require.NoError(t, err)
		assert.Equal(t, [][]string{
			{"No", "Session ID", "Status", "Phone"},
			{"1", "a", "connected", "6281234567890"},
			{"2", "b", "scan_needed", ""},
		}, rows)
	})

	t.Run("xlsx", func(t *testing.T) {
		rec := do(e, http.MethodGet, "/sessions/export", "")
		require.Equal(t, http.StatusOK, rec.Code)

		book, err := excelize.OpenReader(rec.Body)
		require.NoError(t, err)
		defer book.Close()

		v, err := book.GetCellValue("Sessions", "D2")
		require.NoError(t, err)
		assert.Equal(t, "6281234567890", v)
	})

	t.Run("bad format", func(t *testing.T) {
		rec := do(e, http.MethodGet, "/sessions/export?format=pdf", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, false, body["success"])
	})
}

func TestHealthAndUnknownRoute(t *testing.T) {
	e := newTestServer(&fakeSessions{})

	body := decode(t, do(e, http.MethodGet, "/", ""))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "WhatsApp gateway is running", body["message"])
	assert.Equal(t, map[string]any{"version": Version}, body["data"])

	rec := do(e, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, decode(t, rec)["success"])
}
