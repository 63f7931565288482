package ws

import "time"

const (
	EventSessionStatusChanged = "SESSION_STATUS_CHANGED"
	EventQRGenerated          = "QR_GENERATED"
)

// WsEvent adalah envelope semua event yang dikirim ke client /ws.
type WsEvent struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

type SessionStatusData struct {
	SessionID string  `json:"session_id"`
	Status    string  `json:"status"`
	Phone     *string `json:"phone"`
}

type QRGeneratedData struct {
	SessionID string `json:"session_id"`
	QR        string `json:"qr"`
}
