package websocket

import (
	"encoding/json"
	"time"

	"github.com/ammar1510/clientdesk/internal/models"
)

// Inbound events
const (
	EventMessageSend       = "message:send"
	EventJoinConversation  = "join:conversation"
	EventLeaveConversation = "leave:conversation"
	EventMessageRead       = "message:read"
	EventTypingStart       = "typing:start"
	EventTypingStop        = "typing:stop"
	EventGetOnline         = "users:get-online"
)

// Outbound events
const (
	EventUserOnline          = "user:online"
	EventUserOffline         = "user:offline"
	EventMessageNew          = "message:new"
	EventMessageSent         = "message:sent"
	EventMessageError        = "message:error"
	EventMessageNotification = "message:notification"
	EventConversationJoined  = "conversation:joined"
	EventConversationLeft    = "conversation:left"
	EventMarkedRead          = "message:marked-read"
	EventReadReceipt         = "message:read-receipt"
	EventUserTyping          = "typing:user-typing"
	EventUserStopped         = "typing:user-stopped"
	EventOnlineList          = "users:online-list"
)

// previewLength caps the content excerpt carried by message:notification
const previewLength = 100

// Envelope is a frame on the wire, in both directions
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

type SendPayload struct {
	ReceiverID  string             `json:"receiverId"`
	Content     string             `json:"content"`
	MessageType models.MessageType `json:"messageType"`
	FileName    string             `json:"fileName"`
	FileURL     string             `json:"fileUrl"`
	TempID      string             `json:"tempId"`
}

type ConversationPayload struct {
	ConversationID string `json:"conversationId"`
}

type ReadPayload struct {
	ConversationID string   `json:"conversationId,omitempty"`
	MessageIDs     []string `json:"messageIds,omitempty"`
}

type UserPayload struct {
	UserID string `json:"userId"`
}

type SentPayload struct {
	TempID  string          `json:"tempId"`
	Message *models.Message `json:"message"`
}

type ErrorPayload struct {
	TempID  string `json:"tempId,omitempty"`
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

type NotificationPayload struct {
	ConversationID string    `json:"conversationId"`
	MessageID      string    `json:"messageId"`
	SenderID       string    `json:"senderId"`
	SenderName     string    `json:"senderName"`
	Preview        string    `json:"preview"`
	CreatedAt      time.Time `json:"createdAt"`
}

type MarkedReadPayload struct {
	ConversationID string `json:"conversationId,omitempty"`
	ModifiedCount  int64  `json:"modifiedCount"`
}

type ReadReceiptPayload struct {
	ConversationID string    `json:"conversationId"`
	ReaderID       string    `json:"readerId"`
	Count          int64     `json:"count"`
	ReadAt         time.Time `json:"readAt"`
}

type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	Name           string `json:"name"`
}

type OnlineListPayload struct {
	Users []string `json:"users"`
}

// UserRoom is the private room every connection of a user joins
func UserRoom(userID string) string {
	return "user:" + userID
}

// ConversationRoom is the room of a conversation's open views
func ConversationRoom(conversationID string) string {
	return "conversation:" + conversationID
}

func preview(content string) string {
	r := []rune(content)
	if len(r) <= previewLength {
		return content
	}
	return string(r[:previewLength]) + "..."
}
