package whatsapp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"gowa-gateway/internal/service"
)

// DeviceStore memberi device whatsmeow untuk satu storage key dan mencatat
// identitas device setelah pairing.
type DeviceStore interface {
	Device(ctx context.Context, key string) (*store.Device, error)
	Bind(ctx context.Context, key string, device *store.Device) error
}

type Options struct {
	// DeviceName tampil di menu "Linked devices" di HP.
	DeviceName string
	// PrintQR mencetak QR ke terminal selain dikirim sebagai event.
	PrintQR bool
	// MediaTimeout batas waktu download media_url sebelum upload.
	MediaTimeout time.Duration
}

// Adapter adalah implementasi service.Adapter di atas whatsmeow.
type Adapter struct {
	devices DeviceStore
	opts    Options
	log     zerolog.Logger
	http    *http.Client
}

var _ service.Adapter = (*Adapter)(nil)

func NewAdapter(devices DeviceStore, opts Options, log zerolog.Logger) *Adapter {
	if opts.MediaTimeout <= 0 {
		opts.MediaTimeout = 30 * time.Second
	}
	if opts.DeviceName != "" {
		// global setting whatsmeow, harus sebelum device baru dibuat
		store.DeviceProps.Os = proto.String(opts.DeviceName)
	}
	return &Adapter{
		devices: devices,
		opts:    opts,
		log:     log.With().Str("component", "whatsapp").Logger(),
		http:    &http.Client{Timeout: opts.MediaTimeout},
	}
}

// Open membuat client whatsmeow untuk storage key dan memasang handler.
// Belum ada koneksi jaringan sampai Connect dipanggil.
func (a *Adapter) Open(ctx context.Context, storageKey string, handle service.EventHandler) (service.Connection, error) {
	device, err := a.devices.Device(ctx, storageKey)
	if err != nil {
		return nil, fmt.Errorf("load device %s: %w", storageKey, err)
	}

	log := a.log.With().Str("storage_key", storageKey).Logger()
	client := whatsmeow.NewClient(device, waLog.Zerolog(log))
	// reconnect diatur SessionManager, bukan whatsmeow
	client.EnableAutoReconnect = false

	qrCtx, cancel := context.WithCancel(context.Background())
	conn := &Connection{
		key:     storageKey,
		client:  client,
		devices: a.devices,
		media:   a.http,
		printQR: a.opts.PrintQR,
		handle:  handle,
		log:     log,
		qrCtx:   qrCtx,
		cancel:  cancel,
	}
	client.AddEventHandler(conn.onEvent)
	return conn, nil
}
