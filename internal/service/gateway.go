package service

import (
	"context"
	"fmt"
	"strings"

	"gowa-gateway/internal/helper"
	"gowa-gateway/internal/model"
)

// Gateway adalah session connected yang terpilih untuk mengirim pesan.
type Gateway struct {
	SessionID string
	Phone     string
	conn      Connection
}

type SendResult struct {
	SessionID string `json:"session_id"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
}

// SelectGateway memilih gateway pengirim. Kalau sessionID diisi, session itu
// harus ada dan connected (tidak fallback ke gateway lain). Kalau kosong,
// dipilih acak dari semua session connected.
func (m *SessionManager) SelectGateway(sessionID string) (Gateway, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if sessionID != "" {
		rec, ok := m.sessions[sessionID]
		if !ok || rec.Status != model.StatusConnected || rec.conn == nil {
			return Gateway{}, fmt.Errorf("%w: gateway %s not connected", ErrGatewayUnavailable, sessionID)
		}
		return Gateway{SessionID: rec.ID, Phone: rec.Phone, conn: rec.conn}, nil
	}

	connected := make([]*record, 0, len(m.sessions))
	for _, rec := range m.sessions {
		if rec.Status == model.StatusConnected && rec.conn != nil {
			connected = append(connected, rec)
		}
	}
	if len(connected) == 0 {
		return Gateway{}, fmt.Errorf("%w: no gateway available", ErrGatewayUnavailable)
	}

	rec := connected[m.pick(len(connected))]
	return Gateway{SessionID: rec.ID, Phone: rec.Phone, conn: rec.conn}, nil
}

// Send memvalidasi content, memilih gateway, menormalkan nomor tujuan lalu
// mengirim lewat koneksi gateway tersebut. Tidak pernah fan-out ke lebih
// dari satu gateway.
func (m *SessionManager) Send(ctx context.Context, sessionID, number string, content Content) (SendResult, error) {
	if strings.TrimSpace(number) == "" {
		return SendResult{}, fmt.Errorf("%w: number is required", ErrValidation)
	}

	prepared, err := content.prepare()
	if err != nil {
		return SendResult{}, err
	}

	gw, err := m.SelectGateway(sessionID)
	if err != nil {
		return SendResult{}, err
	}

	recipient := helper.NormalizeRecipient(number, m.cfg.CountryCode, m.cfg.JIDDomain)
	log := m.log.With().
		Str("session_id", gw.SessionID).
		Str("recipient", recipient).
		Str("type", string(prepared.Type)).
		Logger()

	if err := gw.conn.Send(ctx, recipient, prepared); err != nil {
		log.Error().Err(err).Msg("send failed")
		return SendResult{}, fmt.Errorf("%w: %w", ErrUpstreamSend, err)
	}

	log.Info().Str("sender", gw.Phone).Msg("message sent")
	return SendResult{SessionID: gw.SessionID, Sender: gw.Phone, Recipient: recipient}, nil
}
