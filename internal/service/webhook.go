package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const SignatureHeader = "X-Gateway-Signature"

// WebhookPayload adalah body yang dikirim ke consumer eksternal.
type WebhookPayload struct {
	SessionID string `json:"session_id"`
	From      string `json:"from"`
	Name      string `json:"name"`
	Message   string `json:"message"`
}

// WebhookForwarder meneruskan pesan masuk ke satu URL yang dikonfigurasi.
// Gagal kirim hanya di-log; tidak ada retry dan tidak ada antrian.
type WebhookForwarder struct {
	url    string
	secret string
	client *http.Client
	log    zerolog.Logger

	// done dipanggil setelah satu pengiriman selesai (dipakai test).
	done func(WebhookPayload, error)
}

func NewWebhookForwarder(url, secret string, timeout time.Duration, log zerolog.Logger) *WebhookForwarder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookForwarder{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// ExtractText memilih teks terbaik dari pesan masuk: teks biasa, extended
// text, rowId pilihan list, lalu id tombol. Kosong berarti pesan di-drop.
func ExtractText(msg InboundMessage) string {
	for _, candidate := range []string{
		msg.Conversation,
		msg.ExtendedText,
		msg.SelectedRowID,
		msg.SelectedButtonID,
	} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// Forward tidak pernah blocking: request dikirim di goroutine sendiri.
func (w *WebhookForwarder) Forward(sessionID string, msg InboundMessage) {
	if w.url == "" || msg.FromSelf {
		return
	}
	text := ExtractText(msg)
	if text == "" {
		return
	}

	name := msg.DisplayName
	if name == "" {
		name = "Unknown"
	}
	payload := WebhookPayload{
		SessionID: sessionID,
		From:      msg.SenderID,
		Name:      name,
		Message:   text,
	}

	w.log.Info().Str("session_id", sessionID).Str("from", msg.SenderID).Msg("incoming message")
	go func() {
		err := w.deliver(context.Background(), payload)
		if err != nil {
			w.log.Error().Err(err).Str("session_id", sessionID).Msg("webhook not delivered")
		}
		if w.done != nil {
			w.done(payload, err)
		}
	}()
}

func (w *WebhookForwarder) deliver(ctx context.Context, payload WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: marshal: %w", ErrWebhookDelivery, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: new request: %w", ErrWebhookDelivery, err)
	}
	req.Header.Set("Content-Type", "application/json")

	if w.secret != "" {
		mac := hmac.New(sha256.New, []byte(w.secret))
		mac.Write(body)
		req.Header.Set(SignatureHeader, hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWebhookDelivery, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d: %s", ErrWebhookDelivery, resp.StatusCode, respBody)
	}

	w.log.Debug().
		Str("session_id", payload.SessionID).
		Int("status", resp.StatusCode).
		Str("response", string(respBody)).
		Msg("webhook delivered")
	return nil
}
