package model

import "time"

// Status adalah state lifecycle satu gateway.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusScanNeeded   Status = "scan_needed"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"

	// StatusNotFound hanya dipakai di response, tidak pernah disimpan di record.
	StatusNotFound Status = "not_found"
)

// Session adalah record in-memory untuk satu identitas gateway.
// Semua field dijaga oleh lock milik SessionManager.
type Session struct {
	ID     string
	Status Status
	QR     string
	Phone  string

	// Generation naik setiap kali koneksi baru dibuat; event dari koneksi
	// lama yang generation-nya beda akan diabaikan.
	Generation        uint64
	ReconnectAttempts int
	UpdatedAt         time.Time
}

// SessionStatus adalah snapshot untuk GET /session/status/:id.
type SessionStatus struct {
	Status Status  `json:"status"`
	QR     *string `json:"qr"`
	Phone  *string `json:"phone"`
}

// SessionSummary adalah satu baris untuk GET /sessions.
type SessionSummary struct {
	SessionID string  `json:"session_id"`
	Status    Status  `json:"status"`
	Phone     *string `json:"phone"`
}

// ToStatus mengubah record jadi snapshot status. QR hanya muncul saat scan_needed.
func (s *Session) ToStatus() SessionStatus {
	out := SessionStatus{Status: s.Status, Phone: nullable(s.Phone)}
	if s.Status == StatusScanNeeded {
		out.QR = nullable(s.QR)
	}
	return out
}

func (s *Session) ToSummary() SessionSummary {
	return SessionSummary{
		SessionID: s.ID,
		Status:    s.Status,
		Phone:     nullable(s.Phone),
	}
}

// NotFoundStatus dipakai untuk id yang tidak ada di map.
func NotFoundStatus() SessionStatus {
	return SessionStatus{Status: StatusNotFound}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
