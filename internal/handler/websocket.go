package handler

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"gowa-gateway/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// /ws terbuka untuk semua origin; akses dibatasi JWT kalau diaktifkan
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocketHandler meng-handle koneksi WS di route /ws
func WebSocketHandler(hub *ws.Hub) echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			c.Logger().Errorf("ws upgrade error: %v", err)
			return nil
		}

		client := ws.NewClient(hub, conn)
		hub.Register(client)

		go client.WritePump()
		go client.ReadPump()

		return nil
	}
}
