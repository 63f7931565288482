package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"gowa-gateway/internal/model"

	"github.com/rs/zerolog"
)

type ManagerConfig struct {
	// StoragePrefix + session_id = storage key kredensial.
	StoragePrefix string
	CountryCode   string
	JIDDomain     string

	// ReconnectBase 0 berarti reconnect langsung tanpa jeda.
	ReconnectBase time.Duration
	ReconnectMax  time.Duration
}

// StatusChange dikirim ke StatusPublisher setiap kali status session berubah.
type StatusChange struct {
	SessionID string       `json:"session_id"`
	Status    model.Status `json:"status"`
	QR        string       `json:"qr,omitempty"`
	Phone     string       `json:"phone,omitempty"`
	At        time.Time    `json:"at"`
}

type ManagerOption func(*SessionManager)

func WithForwarder(f Forwarder) ManagerOption {
	return func(m *SessionManager) { m.forwarder = f }
}

func WithPublisher(p StatusPublisher) ManagerOption {
	return func(m *SessionManager) { m.publisher = p }
}

func WithLogger(l zerolog.Logger) ManagerOption {
	return func(m *SessionManager) { m.log = l }
}

// WithPicker mengganti pemilih acak gateway; pick(n) harus mengembalikan [0, n).
func WithPicker(pick func(n int) int) ManagerOption {
	return func(m *SessionManager) { m.pick = pick }
}

type record struct {
	model.Session
	conn Connection
}

func (r *record) change() StatusChange {
	return StatusChange{
		SessionID: r.ID,
		Status:    r.Status,
		QR:        r.QR,
		Phone:     r.Phone,
		At:        r.UpdatedAt,
	}
}

// SessionManager memegang map session_id -> record. Semua mutasi state
// session lewat method di sini.
type SessionManager struct {
	adapter   Adapter
	creds     CredentialStore
	forwarder Forwarder
	publisher StatusPublisher
	cfg       ManagerConfig
	log       zerolog.Logger
	pick      func(n int) int

	mu       sync.RWMutex
	sessions map[string]*record
	closed   bool
}

func NewSessionManager(adapter Adapter, creds CredentialStore, cfg ManagerConfig, opts ...ManagerOption) *SessionManager {
	if cfg.StoragePrefix == "" {
		cfg.StoragePrefix = "auth_info_"
	}
	if cfg.CountryCode == "" {
		cfg.CountryCode = "62"
	}
	if cfg.JIDDomain == "" {
		cfg.JIDDomain = "s.whatsapp.net"
	}
	if cfg.ReconnectMax == 0 {
		cfg.ReconnectMax = time.Minute
	}

	m := &SessionManager{
		adapter:  adapter,
		creds:    creds,
		cfg:      cfg,
		log:      zerolog.Nop(),
		pick:     rand.IntN,
		sessions: make(map[string]*record),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StorageKey mengembalikan key kredensial untuk session_id.
func (m *SessionManager) StorageKey(sessionID string) string {
	return m.cfg.StoragePrefix + sessionID
}

// Start memulai (atau memulai ulang) session. Session yang sudah connected
// tidak disentuh. Gagal konek tidak dikembalikan ke caller; hasilnya muncul
// sebagai status disconnected lalu reconnect.
func (m *SessionManager) Start(ctx context.Context, sessionID string) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}
	m.connect(ctx, sessionID, 0)
	return nil
}

// validateSessionID menolak id yang tidak bisa jadi bagian storage key:
// separator path, awalan titik, dan karakter kontrol.
func validateSessionID(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("%w: session_id required", ErrValidation)
	}
	if strings.HasPrefix(sessionID, ".") || strings.ContainsAny(sessionID, `/\`) {
		return fmt.Errorf("%w: session_id %q contains invalid characters", ErrValidation, sessionID)
	}
	for _, r := range sessionID {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("%w: session_id %q contains control characters", ErrValidation, sessionID)
		}
	}
	return nil
}

// connect menjalankan satu percobaan koneksi. expectGen != 0 dipakai oleh
// reconnect: percobaan dibatalkan kalau record sudah dihapus atau sudah
// di-start ulang oleh pihak lain.
func (m *SessionManager) connect(ctx context.Context, sessionID string, expectGen uint64) {
	log := m.log.With().Str("session_id", sessionID).Logger()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	rec, exists := m.sessions[sessionID]
	if expectGen != 0 && (!exists || rec.Generation != expectGen) {
		m.mu.Unlock()
		log.Debug().Msg("reconnect skipped, session changed meanwhile")
		return
	}
	if exists && rec.Status == model.StatusConnected {
		m.mu.Unlock()
		log.Info().Msg("session already running")
		return
	}
	if !exists {
		rec = &record{Session: model.Session{ID: sessionID}}
		m.sessions[sessionID] = rec
	}

	old := rec.conn
	rec.conn = nil
	rec.Generation++
	gen := rec.Generation
	rec.Status = model.StatusConnecting
	rec.QR = ""
	rec.UpdatedAt = time.Now().UTC()
	change := rec.change()
	m.mu.Unlock()

	// koneksi lama dibuang dulu sebelum yang baru dibuat
	if old != nil {
		old.Close()
	}
	m.publish(change)

	conn, err := m.adapter.Open(ctx, m.StorageKey(sessionID), func(evt Event) {
		m.handleEvent(sessionID, gen, evt)
	})
	if err != nil {
		if errors.Is(err, ErrValidation) {
			// storage menolak key ini; reconnect tidak akan pernah berhasil
			log.Error().Err(err).Msg("credential storage rejected session, giving up")
			m.abandon(sessionID, gen)
			return
		}
		log.Warn().Err(err).Msg("failed to open connection")
		m.handleEvent(sessionID, gen, Event{Kind: EventClose, Reason: CloseTransient, Err: err})
		return
	}

	m.mu.Lock()
	rec, exists = m.sessions[sessionID]
	if !exists || rec.Generation != gen {
		m.mu.Unlock()
		conn.Close()
		if !exists {
			// session di-logout selagi Open berjalan; Open bisa membuat
			// ulang storage yang sudah dihapus Logout
			key := m.StorageKey(sessionID)
			if err := m.creds.Erase(context.Background(), key); err != nil {
				log.Error().Err(err).Str("storage_key", key).Msg("failed to erase credentials")
			}
		}
		return
	}
	rec.conn = conn
	m.mu.Unlock()

	log.Info().Uint64("generation", gen).Msg("connecting session")
	if err := conn.Connect(ctx); err != nil {
		log.Warn().Err(err).Msg("connect failed")
		m.handleEvent(sessionID, gen, Event{Kind: EventClose, Reason: CloseTransient, Err: err})
	}
}

// abandon menghapus record yang koneksinya gagal permanen.
func (m *SessionManager) abandon(sessionID string, gen uint64) {
	m.mu.Lock()
	rec, ok := m.sessions[sessionID]
	if !ok || rec.Generation != gen {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	m.publish(StatusChange{SessionID: sessionID, Status: model.StatusNotFound, At: time.Now().UTC()})
}

// Status mengembalikan snapshot satu session; id tidak dikenal -> not_found.
func (m *SessionManager) Status(sessionID string) model.SessionStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.sessions[sessionID]
	if !ok {
		return model.NotFoundStatus()
	}
	return rec.ToStatus()
}

// List mengembalikan ringkasan semua session, urut berdasarkan id.
func (m *SessionManager) List() []model.SessionSummary {
	m.mu.RLock()
	out := make([]model.SessionSummary, 0, len(m.sessions))
	for _, rec := range m.sessions {
		out = append(out, rec.ToSummary())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// LogoutResult menjelaskan apa saja yang dibersihkan oleh Logout.
type LogoutResult struct {
	InMemory       bool
	StorageRemoved bool
}

func (r LogoutResult) Message(sessionID string) string {
	switch {
	case r.InMemory && r.StorageRemoved:
		return fmt.Sprintf("Session %s logged out and removed", sessionID)
	case r.StorageRemoved:
		return fmt.Sprintf("Session %s removed (cleanup)", sessionID)
	default:
		return fmt.Sprintf("Session %s removed from memory", sessionID)
	}
}

// Logout menghapus session dari memory dan storage. Logout di sisi protokol
// best-effort: error-nya sengaja diabaikan supaya cleanup lokal tetap jalan.
func (m *SessionManager) Logout(ctx context.Context, sessionID string) (LogoutResult, error) {
	var res LogoutResult
	if strings.TrimSpace(sessionID) == "" {
		return res, fmt.Errorf("%w: session_id required", ErrValidation)
	}
	log := m.log.With().Str("session_id", sessionID).Logger()

	m.mu.Lock()
	rec, ok := m.sessions[sessionID]
	var conn Connection
	if ok {
		conn = rec.conn
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
	res.InMemory = ok

	if conn != nil {
		if err := conn.Logout(ctx); err != nil {
			log.Warn().Err(err).Msg("protocol logout failed, continuing local cleanup")
		}
		conn.Close()
	}

	key := m.StorageKey(sessionID)
	exists, err := m.creds.Exists(ctx, key)
	if err != nil {
		log.Warn().Err(err).Msg("failed to check credential storage")
	}
	if exists {
		if err := m.creds.Erase(ctx, key); err != nil {
			return res, fmt.Errorf("erase credentials %s: %w", key, err)
		}
		res.StorageRemoved = true
	}

	if !res.InMemory && !res.StorageRemoved {
		return res, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	if res.InMemory {
		m.publish(StatusChange{SessionID: sessionID, Status: model.StatusNotFound, At: time.Now().UTC()})
	}
	log.Info().Bool("storage_removed", res.StorageRemoved).Msg("session logged out")
	return res, nil
}

// Shutdown menutup semua koneksi tanpa logout; kredensial tetap ada untuk
// dipulihkan saat start berikutnya.
func (m *SessionManager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	conns := make([]Connection, 0, len(m.sessions))
	for _, rec := range m.sessions {
		// generation dinaikkan supaya event dari koneksi yang ditutup diabaikan
		rec.Generation++
		if rec.conn != nil {
			conns = append(conns, rec.conn)
			rec.conn = nil
		}
		rec.Status = model.StatusDisconnected
	}
	m.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	m.log.Info().Int("connections", len(conns)).Msg("session manager stopped")
}

func (m *SessionManager) publish(change StatusChange) {
	if m.publisher != nil {
		m.publisher.PublishStatus(change)
	}
}

func (m *SessionManager) reconnectDelay(attempt int) time.Duration {
	if m.cfg.ReconnectBase <= 0 || attempt <= 0 {
		return 0
	}
	d := m.cfg.ReconnectBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= m.cfg.ReconnectMax {
			return m.cfg.ReconnectMax
		}
	}
	return min(d, m.cfg.ReconnectMax)
}
