package websocket

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewHandler accepts connections from any origin; access is decided by
// the token the caller presents before JoinRoom.
func NewHandler(hub *Hub, logger zerolog.Logger) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// JoinRoom upgrades the request and adds the connection to roomID.
func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request, roomID, userID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the request.
		h.logger.Debug().Err(err).Str("room", roomID).Msg("websocket upgrade failed")
		return
	}

	cl := &WSClient{
		Conn:    conn,
		Message: make(chan *WSMessage, 16),
		ID:      uuid.NewString(),
		UserID:  userID,
		RoomID:  roomID,
		logger:  h.logger,
		done:    make(chan struct{}),
	}

	if !h.hub.register(cl) {
		conn.Close()
		return
	}

	go cl.keepAlive()
	go cl.writeMessage()
	go cl.readMessage(h.hub)
}
