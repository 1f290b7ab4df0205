package websocket

import "context"

type Room struct {
	Id      string               `json:"id"`
	Clients map[string]*WSClient `json:"clients"`
	cancel  context.CancelFunc
}

type WSMessage struct {
	Content   string `json:"content"`
	RoomID    string `json:"roomId"`
	Timestamp int64  `json:"timestamp"`
}

// ConversationRoom is the room and Redis channel of a conversation.
func ConversationRoom(conversationID string) string {
	return "conversation:" + conversationID
}
