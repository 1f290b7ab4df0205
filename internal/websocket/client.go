package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
	readLimit    = 4096
)

// WSClient is one connection in a conversation room. Rooms are
// server-to-client only; inbound frames are read and dropped.
type WSClient struct {
	Conn     *websocket.Conn
	Message  chan *WSMessage
	ID       string
	UserID   string
	RoomID   string
	logger   zerolog.Logger
	done     chan struct{}
	mu       sync.Mutex
	isClosed bool
}

func (cl *WSClient) keepAlive() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cl.done:
			return
		case <-ticker.C:
			cl.mu.Lock()
			if cl.isClosed {
				cl.mu.Unlock()
				return
			}
			err := cl.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			cl.mu.Unlock()

			if err != nil {
				cl.logger.Debug().Err(err).Str("client", cl.ID).Msg("ping failed")
				return
			}
		}
	}
}

func (cl *WSClient) writeMessage() {
	defer func() {
		cl.mu.Lock()
		cl.isClosed = true
		cl.Conn.Close()
		cl.mu.Unlock()
	}()

	for {
		select {
		case <-cl.done:
			return
		case msg, ok := <-cl.Message:
			cl.mu.Lock()
			if cl.isClosed {
				cl.mu.Unlock()
				return
			}
			if !ok {
				_ = cl.Conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
				cl.mu.Unlock()
				return
			}
			_ = cl.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := cl.Conn.WriteJSON(msg)
			cl.mu.Unlock()

			if err != nil {
				cl.logger.Debug().Err(err).Str("client", cl.ID).Msg("write failed")
				return
			}
		}
	}
}

func (cl *WSClient) readMessage(hub *Hub) {
	defer func() {
		if r := recover(); r != nil {
			cl.logger.Error().Interface("panic", r).Str("client", cl.ID).Msg("recovered in websocket reader")
		}

		close(cl.done)
		hub.unregister(cl)
		cl.logger.Debug().Str("client", cl.ID).Str("room", cl.RoomID).Msg("client disconnected")
	}()

	cl.Conn.SetReadLimit(readLimit)

	for {
		if _, _, err := cl.Conn.ReadMessage(); err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) &&
				(closeErr.Code == websocket.CloseNormalClosure ||
					closeErr.Code == websocket.CloseGoingAway ||
					closeErr.Code == websocket.CloseNoStatusReceived) {
				return
			}
			cl.logger.Debug().Err(err).Str("client", cl.ID).Msg("read failed")
			return
		}
	}
}
