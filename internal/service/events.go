package service

import (
	"context"
	"time"

	"gowa-gateway/internal/model"
)

const unknownPhone = "Unknown"

// handleEvent adalah state machine per session. Event dari koneksi yang
// sudah dibuang (generation beda) diabaikan.
func (m *SessionManager) handleEvent(sessionID string, gen uint64, evt Event) {
	log := m.log.With().Str("session_id", sessionID).Str("event", evt.Kind.String()).Logger()

	switch evt.Kind {
	case EventMessage:
		if evt.Message == nil || m.forwarder == nil || !m.isCurrent(sessionID, gen) {
			return
		}
		m.forwarder.Forward(sessionID, *evt.Message)
		return

	case EventCredentialsUpdate:
		conn := m.currentConn(sessionID, gen)
		if conn == nil {
			return
		}
		if err := conn.PersistCredentials(context.Background()); err != nil {
			log.Warn().Err(err).Msg("failed to persist credentials")
		}
		return
	}

	m.mu.Lock()
	rec, ok := m.sessions[sessionID]
	if !ok || rec.Generation != gen {
		m.mu.Unlock()
		log.Debug().Uint64("generation", gen).Msg("ignoring event from stale connection")
		return
	}

	var (
		discard   Connection
		terminal  bool
		reconnect bool
		attempt   int
	)

	switch evt.Kind {
	case EventQR:
		rec.Status = model.StatusScanNeeded
		rec.QR = evt.QR
		log.Info().Msg("QR code generated, waiting for scan")

	case EventOpen:
		rec.Status = model.StatusConnected
		rec.QR = ""
		rec.ReconnectAttempts = 0
		rec.Phone = unknownPhone
		if rec.conn != nil {
			if phone := rec.conn.Identity(); phone != "" {
				rec.Phone = phone
			}
		}
		log.Info().Str("phone", rec.Phone).Msg("session connected")

	case EventClose:
		// close kedua untuk koneksi yang sama tidak memicu reconnect lagi
		if rec.Status == model.StatusDisconnected && rec.conn == nil {
			m.mu.Unlock()
			return
		}
		discard = rec.conn
		rec.conn = nil
		if evt.Reason == CloseLoggedOut {
			terminal = true
			delete(m.sessions, sessionID)
			log.Info().Msg("logged out from device, removing session")
		} else {
			rec.Status = model.StatusDisconnected
			rec.QR = ""
			rec.ReconnectAttempts++
			attempt = rec.ReconnectAttempts
			reconnect = true
			log.Warn().Err(evt.Err).Int("attempt", attempt).Msg("connection closed, reconnecting")
		}

	default:
		m.mu.Unlock()
		return
	}

	rec.UpdatedAt = time.Now().UTC()
	change := rec.change()
	if terminal {
		change.Status = model.StatusNotFound
	}
	m.mu.Unlock()

	m.publish(change)

	if terminal {
		if discard != nil {
			discard.Close()
		}
		key := m.StorageKey(sessionID)
		if err := m.creds.Erase(context.Background(), key); err != nil {
			log.Error().Err(err).Str("storage_key", key).Msg("failed to erase credentials")
		}
		return
	}

	if reconnect {
		go func() {
			if discard != nil {
				discard.Close()
			}
			if d := m.reconnectDelay(attempt); d > 0 {
				time.Sleep(d)
			}
			m.connect(context.Background(), sessionID, gen)
		}()
	}
}

func (m *SessionManager) isCurrent(sessionID string, gen uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[sessionID]
	return ok && rec.Generation == gen
}

func (m *SessionManager) currentConn(sessionID string, gen uint64) Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[sessionID]
	if !ok || rec.Generation != gen {
		return nil
	}
	return rec.conn
}
