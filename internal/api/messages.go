package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ammar1510/clientdesk/internal/messaging"
	"github.com/ammar1510/clientdesk/internal/models"
)

// MessagePusher fans message and read-state changes made over REST out to
// live connections
type MessagePusher interface {
	PushMessage(msg *models.Message, senderName string)
	PushReadReceipt(conversationID, readerID string, count int64)
}

// MessageHandler handles message-related routes
type MessageHandler struct {
	messages *messaging.Service
	pusher   MessagePusher
}

// NewMessageHandler creates a new message handler. pusher may be nil.
func NewMessageHandler(messages *messaging.Service, pusher MessagePusher) *MessageHandler {
	return &MessageHandler{messages: messages, pusher: pusher}
}

// Register mounts the message routes on rg
func (h *MessageHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/conversations", h.GetConversations)
	rg.GET("/conversation/:conversationId", h.GetConversation)
	rg.GET("/conversation/user/:otherUserId", h.GetConversationWithUser)
	rg.POST("/send", h.SendMessage)
	rg.PATCH("/mark-read", h.MarkRead)
	rg.GET("/unread-count", h.GetUnreadCount)
	rg.GET("/users", h.GetUsers)
}

// pageParams reads ?page=&limit=; bad values fall back to the defaults
func pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(messaging.DefaultPageSize)))
	if err != nil {
		limit = messaging.DefaultPageSize
	}
	return page, limit
}

// GetConversations lists the caller's conversations, most recent first
func (h *MessageHandler) GetConversations(c *gin.Context) {
	summaries, err := h.messages.ListConversationsForUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, summaries)
}

// GetConversation returns one page of a conversation and marks it read
func (h *MessageHandler) GetConversation(c *gin.Context) {
	page, limit := pageParams(c)
	result, err := h.messages.ListByConversation(c.Request.Context(), c.Param("conversationId"), currentUserID(c), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	h.pushReceipt(result.ConversationID, currentUserID(c), result.MarkedRead)
	respond(c, http.StatusOK, result.Messages)
}

// GetConversationWithUser is GetConversation addressed by the other participant
func (h *MessageHandler) GetConversationWithUser(c *gin.Context) {
	page, limit := pageParams(c)
	result, err := h.messages.ListWithUser(c.Request.Context(), currentUserID(c), c.Param("otherUserId"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	h.pushReceipt(result.ConversationID, currentUserID(c), result.MarkedRead)
	respond(c, http.StatusOK, result.Messages)
}

func (h *MessageHandler) pushReceipt(conversationID, readerID string, count int64) {
	if h.pusher != nil && count > 0 {
		h.pusher.PushReadReceipt(conversationID, readerID, count)
	}
}

// SendMessage stores a message and pushes it to the receiver if connected
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req models.MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	var file *models.FileRef
	if req.FileURL != "" || req.FileName != "" {
		file = &models.FileRef{FileName: req.FileName, FileURL: req.FileURL}
	}

	msg, err := h.messages.Append(c.Request.Context(), currentUserID(c), req.ReceiverID, req.Content, req.MessageType, file)
	if err != nil {
		respondError(c, err)
		return
	}

	if h.pusher != nil {
		h.pusher.PushMessage(msg, currentName(c))
	}
	respond(c, http.StatusCreated, msg)
}

// MarkRead marks a conversation or a set of messages read
func (h *MessageHandler) MarkRead(c *gin.Context) {
	var req models.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	counts, err := h.messages.MarkRead(c.Request.Context(), messaging.ReadSelector{
		ConversationID: req.ConversationID,
		MessageIDs:     req.MessageIDs,
	}, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	for conversationID, n := range counts {
		h.pushReceipt(conversationID, currentUserID(c), n)
	}
	respond(c, http.StatusOK, gin.H{"modifiedCount": counts.Total()})
}

// GetUnreadCount returns how many messages await the caller
func (h *MessageHandler) GetUnreadCount(c *gin.Context) {
	n, err := h.messages.UnreadCountFor(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"unreadCount": n})
}

// GetUsers lists who the caller may message
func (h *MessageHandler) GetUsers(c *gin.Context) {
	users, err := h.messages.Partners(c.Request.Context(), currentUserID(c), currentRole(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, users)
}
