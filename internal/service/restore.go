package service

import (
	"context"
	"fmt"
	"strings"
)

// Restore membaca semua storage key kredensial yang tersimpan dan memulai
// ulang session-nya. Dipanggil sekali saat proses start, karena map session
// tidak dipersist.
func (m *SessionManager) Restore(ctx context.Context) ([]string, error) {
	keys, err := m.creds.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list credential storage: %w", err)
	}

	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		if !strings.HasPrefix(key, m.cfg.StoragePrefix) {
			continue
		}
		id := strings.TrimPrefix(key, m.cfg.StoragePrefix)
		if id == "" {
			continue
		}
		ids = append(ids, id)
	}

	m.log.Info().Int("found", len(ids)).Msg("restoring saved sessions")
	for _, id := range ids {
		m.log.Info().Str("session_id", id).Msg("loading saved session")
		go m.connect(context.WithoutCancel(ctx), id, 0)
	}
	return ids, nil
}
