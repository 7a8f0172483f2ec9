package models

import (
	"time"
)

// MessageType is the kind of payload a message carries
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeFile  MessageType = "file"
	MessageTypeImage MessageType = "image"
)

// MaxContentLength is the upper bound on message content, in characters
const MaxContentLength = 1000

// Valid reports whether t is a known message type
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeFile, MessageTypeImage:
		return true
	}
	return false
}

// Message represents a direct message between two users. Only Read and ReadAt
// change after creation.
type Message struct {
	ID             string      `json:"id" bson:"_id"`
	SenderID       string      `json:"senderId" bson:"senderId"`
	ReceiverID     string      `json:"receiverId" bson:"receiverId"`
	Content        string      `json:"content" bson:"content"`
	MessageType    MessageType `json:"messageType" bson:"messageType"`
	FileName       string      `json:"fileName,omitempty" bson:"fileName,omitempty"`
	FileURL        string      `json:"fileUrl,omitempty" bson:"fileUrl,omitempty"`
	ConversationID string      `json:"conversationId" bson:"conversationId"`
	Read           bool        `json:"read" bson:"read"`
	ReadAt         *time.Time  `json:"readAt" bson:"readAt"`
	CreatedAt      time.Time   `json:"createdAt" bson:"createdAt"`
}

// FileRef is the optional attachment of a file or image message
type FileRef struct {
	FileName string `json:"fileName"`
	FileURL  string `json:"fileUrl"`
}

// MessageRequest is the structure for message creation requests
type MessageRequest struct {
	ReceiverID  string      `json:"receiverId" binding:"required"`
	Content     string      `json:"content"`
	MessageType MessageType `json:"messageType"`
	FileName    string      `json:"fileName"`
	FileURL     string      `json:"fileUrl"`
}

// MarkReadRequest selects the messages to mark read: a whole conversation or a set of ids
type MarkReadRequest struct {
	ConversationID string   `json:"conversationId"`
	MessageIDs     []string `json:"messageIds"`
}

// ConversationSummary is one row of a user's conversation list. It is derived
// from messages, never stored.
type ConversationSummary struct {
	ConversationID string        `json:"conversationId"`
	LastMessage    *Message      `json:"lastMessage"`
	UnreadCount    int64         `json:"unreadCount"`
	OtherUser      *UserResponse `json:"otherUser"`
}
