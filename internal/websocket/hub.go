package websocket

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// Hub owns every room. Rooms are created when the first client registers
// and removed with their Redis subscription when the last one leaves.
type Hub struct {
	Rooms      map[string]*Room
	Register   chan *WSClient
	Unregister chan *WSClient
	Broadcast  chan *WSMessage

	redisClient *redis.Client
	logger      zerolog.Logger
	done        chan struct{}
}

// NewHub builds a hub. With a nil redisClient rooms only receive messages
// broadcast in process.
func NewHub(redisClient *redis.Client, logger zerolog.Logger) *Hub {
	return &Hub{
		Rooms:       make(map[string]*Room),
		Register:    make(chan *WSClient),
		Unregister:  make(chan *WSClient),
		Broadcast:   make(chan *WSMessage),
		redisClient: redisClient,
		logger:      logger,
		done:        make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for id, room := range h.Rooms {
				h.closeRoom(id, room)
			}
			return

		case client := <-h.Register:
			room, ok := h.Rooms[client.RoomID]
			if !ok {
				room = h.openRoom(ctx, client.RoomID)
			}
			room.Clients[client.ID] = client
			incConnections()

		case client := <-h.Unregister:
			room, ok := h.Rooms[client.RoomID]
			if !ok {
				continue
			}
			if _, ok := room.Clients[client.ID]; ok {
				delete(room.Clients, client.ID)
				close(client.Message)
				decConnections()
			}
			if len(room.Clients) == 0 {
				h.closeRoom(client.RoomID, room)
			}

		case message := <-h.Broadcast:
			room, ok := h.Rooms[message.RoomID]
			if !ok {
				continue
			}
			delivered := 0
			for _, client := range room.Clients {
				select {
				case client.Message <- message:
					delivered++
				default:
					// slow consumer
					close(client.Message)
					delete(room.Clients, client.ID)
					decConnections()
				}
			}
			if delivered > 0 {
				addDelivered(delivered)
			}
		}
	}
}

func (h *Hub) openRoom(ctx context.Context, id string) *Room {
	roomCtx, cancel := context.WithCancel(ctx)
	room := &Room{
		Id:      id,
		Clients: make(map[string]*WSClient),
		cancel:  cancel,
	}
	h.Rooms[id] = room
	setRooms(len(h.Rooms))

	if h.redisClient != nil {
		go h.subscribeToRoomChannel(roomCtx, id)
	}
	return room
}

func (h *Hub) closeRoom(id string, room *Room) {
	for clientID, client := range room.Clients {
		close(client.Message)
		delete(room.Clients, clientID)
		decConnections()
	}
	room.cancel()
	delete(h.Rooms, id)
	setRooms(len(h.Rooms))
}

func (h *Hub) subscribeToRoomChannel(ctx context.Context, roomID string) {
	subscriber := h.redisClient.Subscribe(ctx, roomID)
	defer subscriber.Close()

	h.logger.Debug().Str("room", roomID).Msg("subscribed to redis channel")
	ch := subscriber.Channel()
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug().Str("room", roomID).Msg("unsubscribed from redis channel")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if !h.send(ctx, &WSMessage{
				Content:   msg.Payload,
				RoomID:    roomID,
				Timestamp: time.Now().Unix(),
			}) {
				return
			}
		}
	}
}

// send hands a message to Run unless ctx ends or the hub has stopped.
func (h *Hub) send(ctx context.Context, msg *WSMessage) bool {
	select {
	case h.Broadcast <- msg:
		return true
	case <-ctx.Done():
		return false
	case <-h.done:
		return false
	}
}

func (h *Hub) register(client *WSClient) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregister(client *WSClient) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}
