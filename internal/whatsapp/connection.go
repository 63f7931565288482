package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/mdp/qrterminal"
	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types"

	"gowa-gateway/internal/helper"
	"gowa-gateway/internal/service"
)

var errQRTimeout = errors.New("qr code not scanned in time")

// Connection membungkus satu whatsmeow.Client milik satu session.
type Connection struct {
	key     string
	client  *whatsmeow.Client
	devices DeviceStore
	media   *http.Client
	printQR bool
	handle  service.EventHandler
	log     zerolog.Logger

	qrCtx  context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

var _ service.Connection = (*Connection)(nil)

// Connect membuka websocket ke WhatsApp. Untuk device yang belum pairing,
// channel QR disiapkan dulu supaya kode pertama tidak terlewat.
func (c *Connection) Connect(ctx context.Context) error {
	if c.client.Store.ID == nil {
		qrChan, err := c.client.GetQRChannel(c.qrCtx)
		if err != nil {
			return fmt.Errorf("get qr channel: %w", err)
		}
		go c.watchQR(qrChan)
	}

	if err := c.client.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

func (c *Connection) watchQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for item := range qrChan {
		switch item.Event {
		case "code":
			if c.printQR {
				fmt.Fprintf(os.Stdout, "Scan QR untuk %s:\n", c.key)
				qrterminal.GenerateHalfBlock(item.Code, qrterminal.L, os.Stdout)
			}
			c.handle(service.Event{Kind: service.EventQR, QR: item.Code})

		case "success":
			c.log.Info().Msg("pairing success")

		case "timeout":
			c.handle(service.Event{Kind: service.EventClose, Reason: service.CloseTransient, Err: errQRTimeout})

		default:
			// err-* dari proses pairing
			err := item.Error
			if err == nil {
				err = fmt.Errorf("qr channel: %s", item.Event)
			}
			c.handle(service.Event{Kind: service.EventClose, Reason: service.CloseTransient, Err: err})
		}
	}
}

func (c *Connection) onEvent(raw any) {
	evt, ok := translateEvent(raw)
	if !ok {
		return
	}
	c.handle(evt)
}

func (c *Connection) Send(ctx context.Context, recipient string, content service.Content) error {
	jid, err := types.ParseJID(recipient)
	if err != nil {
		return fmt.Errorf("parse recipient %q: %w", recipient, err)
	}

	msg, err := buildMessage(ctx, content, c.client, c.media)
	if err != nil {
		return err
	}

	resp, err := c.client.SendMessage(ctx, jid, msg)
	if err != nil {
		return err
	}
	c.log.Debug().Str("message_id", resp.ID).Str("recipient", recipient).Msg("message accepted by server")
	return nil
}

// Identity mengembalikan nomor HP dari JID device, tanpa suffix device.
func (c *Connection) Identity() string {
	if c.client.Store == nil || c.client.Store.ID == nil {
		return ""
	}
	return helper.ExtractPhoneFromJID(c.client.Store.ID.String())
}

// PersistCredentials mencatat device yang baru pairing ke credential store.
// Key material sendiri sudah disimpan whatsmeow ke sqlstore.
func (c *Connection) PersistCredentials(ctx context.Context) error {
	return c.devices.Bind(ctx, c.key, c.client.Store)
}

func (c *Connection) Logout(ctx context.Context) error {
	if c.client.Store.ID == nil {
		return nil
	}
	return c.client.Logout(ctx)
}

func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.client.RemoveEventHandlers()
		c.client.Disconnect()
	})
}
