package service

import "context"

// EventKind adalah jenis event dari Connection Adapter.
type EventKind int

const (
	EventQR EventKind = iota + 1
	EventOpen
	EventClose
	EventCredentialsUpdate
	EventMessage
)

func (k EventKind) String() string {
	switch k {
	case EventQR:
		return "qr"
	case EventOpen:
		return "open"
	case EventClose:
		return "close"
	case EventCredentialsUpdate:
		return "credentials_update"
	case EventMessage:
		return "message"
	}
	return "unknown"
}

// CloseReason membedakan logout dari HP (terminal) dengan putus jaringan biasa.
type CloseReason int

const (
	CloseTransient CloseReason = iota
	CloseLoggedOut
)

func (r CloseReason) String() string {
	if r == CloseLoggedOut {
		return "logged_out"
	}
	return "transient"
}

// Event adalah satu kejadian pada koneksi. Field yang terisi tergantung Kind.
type Event struct {
	Kind    EventKind
	QR      string
	Reason  CloseReason
	Err     error
	Message *InboundMessage
}

// InboundMessage membawa kandidat teks mentah; Forwarder yang memilih
// representasi terbaik.
type InboundMessage struct {
	SenderID    string
	DisplayName string
	FromSelf    bool

	Conversation     string
	ExtendedText     string
	SelectedRowID    string
	SelectedButtonID string
}

// EventHandler dipasang adapter sebelum koneksi mulai mengirim event.
type EventHandler func(Event)

// Adapter menyiapkan koneksi protokol untuk satu storage key. Handler sudah
// terpasang saat Open selesai, jadi tidak ada event yang hilang sebelum Connect.
type Adapter interface {
	Open(ctx context.Context, storageKey string, handle EventHandler) (Connection, error)
}

// Connection adalah satu koneksi fisik milik satu session record.
type Connection interface {
	// Connect menjalankan handshake. Kegagalan setelah ini datang lewat event close.
	Connect(ctx context.Context) error
	Send(ctx context.Context, recipient string, content Content) error
	// Identity mengembalikan nomor HP akun yang terhubung.
	Identity() string
	PersistCredentials(ctx context.Context) error
	Logout(ctx context.Context) error
	Close()
}

// CredentialStore adalah penyimpanan kredensial durable per session.
type CredentialStore interface {
	Keys(ctx context.Context) ([]string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Erase(ctx context.Context, key string) error
}

// Forwarder menerima pesan masuk; implementasi tidak boleh blocking.
type Forwarder interface {
	Forward(sessionID string, msg InboundMessage)
}

// StatusPublisher menerima notifikasi perubahan status session.
type StatusPublisher interface {
	PublishStatus(change StatusChange)
}
