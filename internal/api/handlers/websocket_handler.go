package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	ws "github.com/isdelr/feedhub/internal/websocket"
	"github.com/rs/zerolog/hlog"
)

// WebSocketHandler upgrades HTTP connections and attaches them to the hub.
type WebSocketHandler struct {
	hub *ws.Hub
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(hub *ws.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Browsers are already limited by the CORS policy on the REST routes.
		return true
	},
}

// Serve handles the WebSocket connection request.
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}

	client := ws.NewClient(conn)
	if err := h.hub.Register(client); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("Hub refused websocket client")
		conn.Close()
		return
	}
	hlog.FromRequest(r).Debug().Str("remote", r.RemoteAddr).Msg("Websocket client connected")

	go client.WritePump()
	go client.ReadPump(h.hub)
}
