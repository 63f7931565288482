package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"gowa-gateway/internal/model"
	"gowa-gateway/internal/service"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 256
)

// Client merepresentasikan satu koneksi WebSocket ke FE.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// goroutine write membaca dari sini dan mengirim ke conn
	send chan WsEvent
}

// Hub menyimpan semua client aktif dan menangani broadcast event.
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan WsEvent
	done       chan struct{}

	mu  sync.RWMutex
	log zerolog.Logger
}

var _ service.StatusPublisher = (*Hub)(nil)

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan WsEvent, sendBuffer),
		done:       make(chan struct{}),
		log:        log.With().Str("component", "ws").Logger(),
	}
}

// Run harus dijalankan di goroutine terpisah sampai ctx selesai.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- event:
				default:
					// buffer client penuh, putuskan
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish tidak pernah blocking; event dibuang kalau antrian broadcast penuh.
func (h *Hub) Publish(event WsEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case h.broadcast <- event:
	default:
		h.log.Warn().Str("event", event.Event).Msg("broadcast queue full, dropping event")
	}
}

// PublishStatus meneruskan perubahan status session ke semua client. QR baru
// dikirim juga sebagai event QR_GENERATED terpisah.
func (h *Hub) PublishStatus(change service.StatusChange) {
	data := SessionStatusData{SessionID: change.SessionID, Status: string(change.Status)}
	if change.Phone != "" {
		phone := change.Phone
		data.Phone = &phone
	}
	h.Publish(WsEvent{Event: EventSessionStatusChanged, Timestamp: change.At, Data: data})

	if change.Status == model.StatusScanNeeded && change.QR != "" {
		h.Publish(WsEvent{
			Event:     EventQRGenerated,
			Timestamp: change.At,
			Data:      QRGeneratedData{SessionID: change.SessionID, QR: change.QR},
		})
	}
}

// NewClient tidak menjalankan goroutine read/write; itu tugas handler WS.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan WsEvent, sendBuffer),
	}
}

// WritePump mengirim event dari channel send ke koneksi WS, plus ping berkala.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			payload, err := json.Marshal(event)
			if err != nil {
				c.hub.log.Error().Err(err).Msg("failed to marshal event")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.hub.log.Debug().Err(err).Msg("failed to write message")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump hanya menjaga koneksi hidup; pesan dari client dibuang.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug().Err(err).Msg("ws read error")
			}
			return
		}
	}
}
