package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ammar1510/clientdesk/internal/conversation"
	"github.com/ammar1510/clientdesk/internal/database"
	"github.com/ammar1510/clientdesk/internal/messaging"
	"github.com/ammar1510/clientdesk/internal/models"
)

type pushedReceipt struct {
	conversationID string
	readerID       string
	count          int64
}

type recordingPusher struct {
	messages []*models.Message
	names    []string
	receipts []pushedReceipt
}

func (p *recordingPusher) PushMessage(msg *models.Message, senderName string) {
	p.messages = append(p.messages, msg)
	p.names = append(p.names, senderName)
}

func (p *recordingPusher) PushReadReceipt(conversationID, readerID string, count int64) {
	p.receipts = append(p.receipts, pushedReceipt{conversationID, readerID, count})
}

// mockStore is a MemoryDB whose unread count is scripted
type mockStore struct {
	*database.MemoryDB
	mock.Mock
}

func (m *mockStore) CountUnread(ctx context.Context, userID string) (int64, error) {
	args := m.Called(userID)
	return args.Get(0).(int64), args.Error(1)
}

type messagesEnv struct {
	router *gin.Engine
	db     *database.MemoryDB
	svc    *messaging.Service
	pusher *recordingPusher
}

func newMessagesRouter(store database.DBInterface, pusher MessagePusher) (*gin.Engine, *messaging.Service) {
	svc := messaging.NewService(store)
	router := gin.New()
	api := router.Group("/api", AuthMiddleware())
	NewMessageHandler(svc, pusher).Register(api.Group("/messages"))
	return router, svc
}

func setupMessages() *messagesEnv {
	db := database.NewMemoryDB()
	pusher := &recordingPusher{}
	router, svc := newMessagesRouter(db, pusher)
	return &messagesEnv{router: router, db: db, svc: svc, pusher: pusher}
}

func (e *messagesEnv) send(t *testing.T, from, to *models.User, content string) *models.Message {
	msg, err := e.svc.Append(context.Background(), from.ID, to.ID, content, models.MessageTypeText, nil)
	require.NoError(t, err)
	return msg
}

func TestSendMessage(t *testing.T) {
	e := setupMessages()
	alice, aliceToken := createUser(t, e.db, "Alice", models.RoleAdmin)
	bob, _ := createUser(t, e.db, "Bob", models.RoleClient)

	w, env := doRequest(t, e.router, http.MethodPost, "/api/messages/send", aliceToken, models.MessageRequest{
		ReceiverID: bob.ID,
		Content:    "Your invoice is ready",
	})
	require.Equal(t, http.StatusCreated, w.Code, env.Message)
	assert.True(t, env.Success)

	var msg models.Message
	decode(t, env, &msg)
	assert.Equal(t, alice.ID, msg.SenderID)
	assert.Equal(t, bob.ID, msg.ReceiverID)
	assert.Equal(t, models.MessageTypeText, msg.MessageType)
	assert.Equal(t, conversation.Derive(alice.ID, bob.ID), msg.ConversationID)
	assert.False(t, msg.Read)

	require.Len(t, e.pusher.messages, 1)
	assert.Equal(t, msg.ID, e.pusher.messages[0].ID)
	assert.Equal(t, "Alice", e.pusher.names[0])
}

func TestSendMessageErrors(t *testing.T) {
	e := setupMessages()
	alice, aliceToken := createUser(t, e.db, "Alice", models.RoleAdmin)
	bob, _ := createUser(t, e.db, "Bob", models.RoleClient)

	tests := []struct {
		name       string
		req        interface{}
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "empty content",
			req:        models.MessageRequest{ReceiverID: bob.ID, Content: ""},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "message content is required",
		},
		{
			name:       "missing receiver",
			req:        map[string]string{"content": "hi"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown receiver",
			req:        models.MessageRequest{ReceiverID: uuid.NewString(), Content: "hi"},
			wantStatus: http.StatusNotFound,
			wantMsg:    "receiver not found",
		},
		{
			name:       "self message",
			req:        models.MessageRequest{ReceiverID: alice.ID, Content: "hi"},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "cannot send a message to yourself",
		},
		{
			name:       "file without url",
			req:        models.MessageRequest{ReceiverID: bob.ID, Content: "contract.pdf", MessageType: models.MessageTypeFile},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := doRequest(t, e.router, http.MethodPost, "/api/messages/send", aliceToken, tt.req)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.False(t, env.Success)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, env.Message)
			}
		})
	}
	assert.Empty(t, e.pusher.messages)
}

func TestGetConversationMarksRead(t *testing.T) {
	e := setupMessages()
	alice, aliceToken := createUser(t, e.db, "Alice", models.RoleAdmin)
	bob, bobToken := createUser(t, e.db, "Bob", models.RoleClient)
	_, carolToken := createUser(t, e.db, "Carol", models.RoleClient)

	first := e.send(t, alice, bob, "first")
	second := e.send(t, alice, bob, "second")
	convID := first.ConversationID

	w, env := doRequest(t, e.router, http.MethodGet, "/api/messages/unread-count", bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"unreadCount":2}`, string(env.Data))

	w, env = doRequest(t, e.router, http.MethodGet, "/api/messages/conversation/"+convID, bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var msgs []models.Message
	decode(t, env, &msgs)
	require.Len(t, msgs, 2)
	assert.Equal(t, first.ID, msgs[0].ID, "oldest first")
	assert.Equal(t, second.ID, msgs[1].ID)
	assert.True(t, msgs[0].Read)
	assert.NotNil(t, msgs[0].ReadAt)

	_, env = doRequest(t, e.router, http.MethodGet, "/api/messages/unread-count", bobToken, nil)
	assert.JSONEq(t, `{"unreadCount":0}`, string(env.Data))
	assert.Equal(t, []pushedReceipt{{convID, bob.ID, 2}}, e.pusher.receipts)

	// a second view changes nothing and pushes nothing
	w, _ = doRequest(t, e.router, http.MethodGet, "/api/messages/conversation/"+convID, bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, e.pusher.receipts, 1)

	// sent messages never count toward the sender
	_, env = doRequest(t, e.router, http.MethodGet, "/api/messages/unread-count", aliceToken, nil)
	assert.JSONEq(t, `{"unreadCount":0}`, string(env.Data))

	w, env = doRequest(t, e.router, http.MethodGet, "/api/messages/conversation/"+convID, carolToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, env.Success)

	w, _ = doRequest(t, e.router, http.MethodGet, "/api/messages/conversation/not-a-conversation", bobToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetConversationPaging(t *testing.T) {
	e := setupMessages()
	alice, aliceToken := createUser(t, e.db, "Alice", models.RoleAdmin)
	bob, _ := createUser(t, e.db, "Bob", models.RoleClient)

	var sent []*models.Message
	for i := 0; i < 5; i++ {
		sent = append(sent, e.send(t, alice, bob, fmt.Sprintf("message %d", i)))
	}
	convID := sent[0].ConversationID

	page := func(n int) []models.Message {
		path := fmt.Sprintf("/api/messages/conversation/%s?page=%d&limit=2", convID, n)
		w, env := doRequest(t, e.router, http.MethodGet, path, aliceToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var msgs []models.Message
		decode(t, env, &msgs)
		return msgs
	}

	p1 := page(1)
	require.Len(t, p1, 2)
	assert.Equal(t, sent[3].ID, p1[0].ID)
	assert.Equal(t, sent[4].ID, p1[1].ID)

	p3 := page(3)
	require.Len(t, p3, 1)
	assert.Equal(t, sent[0].ID, p3[0].ID)

	assert.Empty(t, page(4))
}

func TestGetConversationWithUser(t *testing.T) {
	e := setupMessages()
	alice, aliceToken := createUser(t, e.db, "Alice", models.RoleAdmin)
	bob, bobToken := createUser(t, e.db, "Bob", models.RoleClient)

	w, env := doRequest(t, e.router, http.MethodGet, "/api/messages/conversation/user/"+bob.ID, aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(env.Data), "no messages yet is an empty list")

	e.send(t, alice, bob, "hello")
	w, env = doRequest(t, e.router, http.MethodGet, "/api/messages/conversation/user/"+alice.ID, bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var msgs []models.Message
	decode(t, env, &msgs)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Read)
	assert.Equal(t, []pushedReceipt{{msgs[0].ConversationID, bob.ID, 1}}, e.pusher.receipts)

	w, _ = doRequest(t, e.router, http.MethodGet, "/api/messages/conversation/user/"+uuid.NewString(), aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doRequest(t, e.router, http.MethodGet, "/api/messages/conversation/user/not-a-uuid", aliceToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetConversations(t *testing.T) {
	e := setupMessages()
	alice, aliceToken := createUser(t, e.db, "Alice", models.RoleAdmin)
	bob, _ := createUser(t, e.db, "Bob", models.RoleClient)
	carol, _ := createUser(t, e.db, "Carol", models.RoleClient)

	e.send(t, bob, alice, "from bob")
	e.send(t, carol, alice, "from carol 1")
	latest := e.send(t, carol, alice, "from carol 2")

	w, env := doRequest(t, e.router, http.MethodGet, "/api/messages/conversations", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var summaries []models.ConversationSummary
	decode(t, env, &summaries)
	require.Len(t, summaries, 2)

	assert.Equal(t, latest.ConversationID, summaries[0].ConversationID, "most recent first")
	assert.Equal(t, latest.ID, summaries[0].LastMessage.ID)
	assert.Equal(t, int64(2), summaries[0].UnreadCount)
	require.NotNil(t, summaries[0].OtherUser)
	assert.Equal(t, carol.ID, summaries[0].OtherUser.ID)
	assert.Equal(t, "Carol", summaries[0].OtherUser.Name)

	assert.Equal(t, bob.ID, summaries[1].OtherUser.ID)
	assert.Equal(t, int64(1), summaries[1].UnreadCount)
}

func TestMarkRead(t *testing.T) {
	e := setupMessages()
	alice, aliceToken := createUser(t, e.db, "Alice", models.RoleAdmin)
	bob, bobToken := createUser(t, e.db, "Bob", models.RoleClient)

	m1 := e.send(t, alice, bob, "one")
	e.send(t, alice, bob, "two")
	e.send(t, alice, bob, "three")

	w, env := doRequest(t, e.router, http.MethodPatch, "/api/messages/mark-read", bobToken, models.MarkReadRequest{MessageIDs: []string{m1.ID}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"modifiedCount":1}`, string(env.Data))

	// only the receiver can read a message
	_, env = doRequest(t, e.router, http.MethodPatch, "/api/messages/mark-read", aliceToken, models.MarkReadRequest{ConversationID: m1.ConversationID})
	assert.JSONEq(t, `{"modifiedCount":0}`, string(env.Data))

	_, env = doRequest(t, e.router, http.MethodPatch, "/api/messages/mark-read", bobToken, models.MarkReadRequest{ConversationID: m1.ConversationID})
	assert.JSONEq(t, `{"modifiedCount":2}`, string(env.Data))

	// nothing changed for alice, so only bob's two reads were pushed
	assert.Equal(t, []pushedReceipt{
		{m1.ConversationID, bob.ID, 1},
		{m1.ConversationID, bob.ID, 2},
	}, e.pusher.receipts)

	w, env = doRequest(t, e.router, http.MethodPatch, "/api/messages/mark-read", bobToken, models.MarkReadRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "either conversationId or messageIds is required", env.Message)
}

func TestGetUsers(t *testing.T) {
	e := setupMessages()
	alice, aliceToken := createUser(t, e.db, "Alice", models.RoleAdmin)
	_, bobToken := createUser(t, e.db, "Bob", models.RoleClient)
	createUser(t, e.db, "Carol", models.RoleClient)
	createUser(t, e.db, "Zed", models.RoleAdmin)

	_, env := doRequest(t, e.router, http.MethodGet, "/api/messages/users", aliceToken, nil)
	var partners []models.UserResponse
	decode(t, env, &partners)
	require.Len(t, partners, 2)
	for _, p := range partners {
		assert.Equal(t, models.RoleClient, p.Role)
	}

	_, env = doRequest(t, e.router, http.MethodGet, "/api/messages/users", bobToken, nil)
	partners = nil
	decode(t, env, &partners)
	require.Len(t, partners, 2)
	assert.Equal(t, alice.ID, partners[0].ID)
}

func TestMessagesRequireAuth(t *testing.T) {
	e := setupMessages()

	w, env := doRequest(t, e.router, http.MethodGet, "/api/messages/conversations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, env.Success)
}

func TestInternalErrorNotLeaked(t *testing.T) {
	store := &mockStore{MemoryDB: database.NewMemoryDB()}
	router, _ := newMessagesRouter(store, nil)
	bob, bobToken := createUser(t, store, "Bob", models.RoleClient)

	store.On("CountUnread", bob.ID).Return(int64(0), errors.New("dial tcp 10.0.0.3:27017: connection refused"))

	w, env := doRequest(t, router, http.MethodGet, "/api/messages/unread-count", bobToken, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "Internal server error", env.Message)
	assert.NotContains(t, w.Body.String(), "10.0.0.3")
	store.AssertExpectations(t)
}
