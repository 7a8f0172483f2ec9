// Package messaging holds the message store rules: validation, conversation
// identity, participant checks, read state and unread counts. Persistence is
// delegated to a database.DBInterface.
package messaging

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ammar1510/clientdesk/internal/conversation"
	"github.com/ammar1510/clientdesk/internal/database"
	"github.com/ammar1510/clientdesk/internal/logger"
	"github.com/ammar1510/clientdesk/internal/models"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

var log = logger.New("messaging")

// ReadSelector picks the messages MarkRead acts on. MessageIDs wins when both
// are set; ConversationID then further restricts the ids.
type ReadSelector struct {
	ConversationID string
	MessageIDs     []string
}

// Page is one page of a conversation. MarkedRead counts the messages the view
// itself marked read.
type Page struct {
	ConversationID string
	Messages       []*models.Message
	MarkedRead     int64
}

// Service is the message store
type Service struct {
	db    database.DBInterface
	clock *Clock
}

// NewService creates a message store over db
func NewService(db database.DBInterface) *Service {
	return &Service{db: db, clock: NewClock()}
}

func validUserID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Append validates and persists a new message from senderID to receiverID.
func (s *Service) Append(ctx context.Context, senderID, receiverID, content string, msgType models.MessageType, file *models.FileRef) (*models.Message, error) {
	if msgType == "" {
		msgType = models.MessageTypeText
	}
	if !msgType.Valid() {
		return nil, ErrInvalidMessageType
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrContentEmpty
	}
	if utf8.RuneCountInString(content) > models.MaxContentLength {
		return nil, ErrContentTooLong
	}
	if msgType != models.MessageTypeText && (file == nil || file.FileURL == "") {
		return nil, ErrFileURLRequired
	}
	if !validUserID(senderID) || !validUserID(receiverID) {
		return nil, ErrInvalidUserID
	}
	if senderID == receiverID {
		return nil, ErrSelfMessage
	}

	if _, err := s.db.GetUserByID(ctx, receiverID); err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return nil, ErrReceiverNotFound
		}
		return nil, err
	}

	msg := &models.Message{
		ID:             uuid.NewString(),
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
		MessageType:    msgType,
		ConversationID: conversation.Derive(senderID, receiverID),
		Read:           false,
		CreatedAt:      s.clock.Next(),
	}
	if file != nil && msgType != models.MessageTypeText {
		msg.FileName = file.FileName
		msg.FileURL = file.FileURL
	}

	if err := s.db.InsertMessage(ctx, msg); err != nil {
		log.Error("Failed to persist message from %s to %s: %v", senderID, receiverID, err)
		return nil, err
	}

	log.Debug("Stored message %s in conversation %s", msg.ID, msg.ConversationID)
	return msg, nil
}

func normalizePage(page, pageSize int) (int64, int64) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return int64(page-1) * int64(pageSize), int64(pageSize)
}

// ListByConversation returns one page of a conversation, oldest-first. Page 1
// holds the newest messages. Viewing a conversation reads it: every unread
// message addressed to the requester that existed when the call started is
// marked read before the page is fetched.
func (s *Service) ListByConversation(ctx context.Context, conversationID, requesterID string, page, pageSize int) (*Page, error) {
	if _, _, ok := conversation.Participants(conversationID); !ok {
		return nil, ErrInvalidConversation
	}
	if !conversation.Includes(conversationID, requesterID) {
		return nil, ErrNotParticipant
	}

	cutoff := s.clock.Next()
	counts, err := s.db.MarkRead(ctx, database.ReadFilter{
		ReaderID:       requesterID,
		ConversationID: conversationID,
		Before:         &cutoff,
	}, cutoff)
	if err != nil {
		return nil, err
	}
	marked := counts.Total()
	if marked > 0 {
		log.Debug("Marked %d messages read for %s in %s", marked, requesterID, conversationID)
	}

	skip, limit := normalizePage(page, pageSize)
	messages, err := s.db.GetConversationMessages(ctx, conversationID, skip, limit)
	if err != nil {
		return nil, err
	}
	return &Page{ConversationID: conversationID, Messages: messages, MarkedRead: marked}, nil
}

// ListWithUser is ListByConversation with the conversation derived from the
// other participant. A conversation without messages yields an empty page.
func (s *Service) ListWithUser(ctx context.Context, requesterID, otherUserID string, page, pageSize int) (*Page, error) {
	if !validUserID(otherUserID) {
		return nil, ErrInvalidUserID
	}
	if otherUserID == requesterID {
		return nil, ErrSelfMessage
	}
	if _, err := s.db.GetUserByID(ctx, otherUserID); err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return nil, ErrParticipantNotFound
		}
		return nil, err
	}

	return s.ListByConversation(ctx, conversation.Derive(requesterID, otherUserID), requesterID, page, pageSize)
}

// ListConversationsForUser summarises every conversation userID takes part
// in, most recent first.
func (s *Service) ListConversationsForUser(ctx context.Context, userID string) ([]*models.ConversationSummary, error) {
	stats, err := s.db.GetConversationStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	otherIDs := make([]string, 0, len(stats))
	for _, st := range stats {
		if other, ok := conversation.Other(st.ConversationID, userID); ok {
			otherIDs = append(otherIDs, other)
		}
	}

	users, err := s.db.GetUsersByIDs(ctx, otherIDs)
	if err != nil {
		return nil, err
	}

	summaries := make([]*models.ConversationSummary, 0, len(stats))
	for _, st := range stats {
		other, _ := conversation.Other(st.ConversationID, userID)
		otherUser := users[other].Public()
		if otherUser == nil {
			otherUser = &models.UserResponse{ID: other}
		}
		summaries = append(summaries, &models.ConversationSummary{
			ConversationID: st.ConversationID,
			LastMessage:    st.LastMessage,
			UnreadCount:    st.UnreadCount,
			OtherUser:      otherUser,
		})
	}
	return summaries, nil
}

// MarkRead marks the selected unread messages addressed to readerID as read
// and returns how many changed in each conversation.
func (s *Service) MarkRead(ctx context.Context, sel ReadSelector, readerID string) (database.ReadCounts, error) {
	if sel.ConversationID == "" && len(sel.MessageIDs) == 0 {
		return nil, ErrMissingSelector
	}

	filter := database.ReadFilter{ReaderID: readerID}
	if sel.ConversationID != "" {
		if _, _, ok := conversation.Participants(sel.ConversationID); !ok {
			return nil, ErrInvalidConversation
		}
		if !conversation.Includes(sel.ConversationID, readerID) {
			return nil, ErrNotParticipant
		}
		filter.ConversationID = sel.ConversationID
	}
	for _, id := range sel.MessageIDs {
		if _, err := uuid.Parse(id); err != nil {
			return nil, ErrInvalidMessageID
		}
	}
	filter.MessageIDs = sel.MessageIDs

	return s.db.MarkRead(ctx, filter, s.clock.Next())
}

// UnreadCountFor is the number of unread messages addressed to userID
func (s *Service) UnreadCountFor(ctx context.Context, userID string) (int64, error) {
	return s.db.CountUnread(ctx, userID)
}

// Partners lists the users someone with the given role may message: admins
// see clients, clients see admins.
func (s *Service) Partners(ctx context.Context, userID string, role models.Role) ([]*models.UserResponse, error) {
	if !role.Valid() {
		role = models.RoleClient
	}
	users, err := s.db.GetUsersByRole(ctx, role.Counterpart())
	if err != nil {
		return nil, err
	}

	out := make([]*models.UserResponse, 0, len(users))
	for _, u := range users {
		if u.ID == userID {
			continue
		}
		out = append(out, u.Public())
	}
	return out, nil
}

// User resolves a user id, for callers that need a display name
func (s *Service) User(ctx context.Context, userID string) (*models.User, error) {
	return s.db.GetUserByID(ctx, userID)
}

// Seen stamps userID's lastSeen, e.g. when their socket closes
func (s *Service) Seen(ctx context.Context, userID string) error {
	return s.db.UpdateLastSeen(ctx, userID)
}
