// Package websocket is the real-time gateway: authenticated socket
// connections, room subscriptions and the event protocol on top of the
// message store and the presence registry.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/ammar1510/clientdesk/internal/apperr"
	"github.com/ammar1510/clientdesk/internal/auth"
	"github.com/ammar1510/clientdesk/internal/conversation"
	"github.com/ammar1510/clientdesk/internal/logger"
	"github.com/ammar1510/clientdesk/internal/messaging"
	"github.com/ammar1510/clientdesk/internal/models"
	"github.com/ammar1510/clientdesk/internal/presence"
	"github.com/ammar1510/clientdesk/internal/ratelimit"
)

var log = logger.New("websocket")

// eventTimeout bounds the store work of a single inbound event
const eventTimeout = 10 * time.Second

// Options configures a Gateway
type Options struct {
	// Limiter caps inbound events per user; nil disables limiting.
	Limiter ratelimit.Limiter
	// AllowedOrigins restricts the handshake Origin; empty or "*" allows any.
	AllowedOrigins []string
}

// Gateway accepts socket connections and routes their events
type Gateway struct {
	hub      *Hub
	presence *presence.Registry
	messages *messaging.Service
	limiter  ratelimit.Limiter
	upgrader websocket.Upgrader

	mu     sync.Mutex
	closed bool
	pumps  sync.WaitGroup
}

func NewGateway(messages *messaging.Service, registry *presence.Registry, opts Options) *Gateway {
	g := &Gateway{
		hub:      NewHub(),
		presence: registry,
		messages: messages,
		limiter:  opts.Limiter,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return g
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			a = strings.TrimSpace(a)
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		log.Warn("Rejected websocket origin %s", origin)
		return false
	}
}

// Hub exposes the subscription table
func (g *Gateway) Hub() *Hub {
	return g.hub
}

// HandleWebSocket authenticates the handshake and upgrades the connection.
// A missing or invalid token is answered with 401 and no upgrade.
func (g *Gateway) HandleWebSocket(c *gin.Context) {
	identity, err := auth.Authenticate(auth.TokenFromRequest(c.Request))
	if err != nil {
		log.Debug("Rejected websocket handshake from %s: %v", c.Request.RemoteAddr, err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"message": apperr.PublicMessage(err),
		})
		return
	}

	if g.isClosed() {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"message": "Server is shutting down",
		})
		return
	}

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("Failed to upgrade connection: %v", err)
		return
	}

	client := newClient(conn, identity.UserID, identity.Name, identity.Role)

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		client.shutdown()
		return
	}
	g.pumps.Add(1)
	g.connect(client)
	g.mu.Unlock()

	go client.writePump()
	go func() {
		defer g.pumps.Done()
		client.readPump(g)
	}()
}

func (g *Gateway) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// Close stops accepting connections, closes every open socket and waits until
// their disconnects have run or ctx expires. http.Server.Shutdown does not
// track hijacked connections, so this has to run alongside it.
func (g *Gateway) Close(ctx context.Context) error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	clients := g.hub.snapshot()
	for _, c := range clients {
		c.shutdown()
	}
	log.Info("Closing %d websocket connections", len(clients))

	done := make(chan struct{})
	go func() {
		g.pumps.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) connect(c *Client) {
	g.hub.add(c)
	g.hub.Subscribe(c, UserRoom(c.UserID))
	g.presence.Register(c.UserID, c)
	g.hub.Broadcast(c, EventUserOnline, UserPayload{UserID: c.UserID})
	log.Info("User %s connected (client %s)", c.UserID, c.ID)
}

func (g *Gateway) disconnect(c *Client) {
	g.hub.remove(c)
	if g.presence.Release(c.UserID, c) {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		if err := g.messages.Seen(ctx, c.UserID); err != nil {
			log.Warn("Failed to update last seen for %s: %v", c.UserID, err)
		}
		cancel()
		g.hub.Broadcast(c, EventUserOffline, UserPayload{UserID: c.UserID})
	}
	c.close()
	log.Info("User %s disconnected (client %s)", c.UserID, c.ID)
}

// sendTempID reads the client's temporary id of a message:send ahead of full
// validation, so every error for that send can carry it back.
func sendTempID(env Envelope) string {
	if env.Event != EventMessageSend || len(env.Data) == 0 {
		return ""
	}
	var p struct {
		TempID string `json:"tempId"`
	}
	_ = json.Unmarshal(env.Data, &p)
	return p.TempID
}

// dispatch handles one inbound event. A panicking handler is reported to the
// client and never takes the connection down.
func (g *Gateway) dispatch(c *Client, env Envelope) {
	tempID := sendTempID(env)

	defer func() {
		if r := recover(); r != nil {
			fail(c, env.Event, tempID, apperr.Internal(errors.Errorf("panic: %v", r)))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	if g.limiter != nil {
		ok, err := g.limiter.Allow(ctx, c.UserID)
		if err != nil {
			log.Warn("Rate limiter unavailable, allowing event: %v", err)
		} else if !ok {
			log.Warn("Rate limit exceeded for user %s", c.UserID)
			c.Emit(EventMessageError, ErrorPayload{TempID: tempID, Event: env.Event, Message: "Rate limit exceeded"})
			return
		}
	}

	log.Debug("Received %s from user %s", env.Event, c.UserID)

	switch env.Event {
	case EventMessageSend:
		g.onSend(ctx, c, env, tempID)
	case EventJoinConversation:
		g.onJoin(c, env)
	case EventLeaveConversation:
		g.onLeave(c, env)
	case EventMessageRead:
		g.onRead(ctx, c, env)
	case EventTypingStart:
		g.onTyping(c, env, EventUserTyping)
	case EventTypingStop:
		g.onTyping(c, env, EventUserStopped)
	case EventGetOnline:
		c.Emit(EventOnlineList, OnlineListPayload{Users: g.presence.ListOnline()})
	default:
		c.Emit(EventMessageError, ErrorPayload{Event: env.Event, Message: "Unknown event"})
	}
}

func decode(c *Client, env Envelope, tempID string, v interface{}) bool {
	if len(env.Data) == 0 {
		return true
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		c.Emit(EventMessageError, ErrorPayload{TempID: tempID, Event: env.Event, Message: "Invalid message format"})
		return false
	}
	return true
}

// fail reports err to c alone
func fail(c *Client, event, tempID string, err error) {
	if apperr.CodeOf(err) == apperr.CodeInternal {
		log.Error("%s from %s failed: %v", event, c.UserID, err)
	}
	c.Emit(EventMessageError, ErrorPayload{TempID: tempID, Event: event, Message: apperr.PublicMessage(err)})
}

func (g *Gateway) onSend(ctx context.Context, c *Client, env Envelope, tempID string) {
	p := SendPayload{TempID: tempID}
	if !decode(c, env, tempID, &p) {
		return
	}

	var file *models.FileRef
	if p.FileURL != "" || p.FileName != "" {
		file = &models.FileRef{FileName: p.FileName, FileURL: p.FileURL}
	}

	msg, err := g.messages.Append(ctx, c.UserID, p.ReceiverID, p.Content, p.MessageType, file)
	if err != nil {
		fail(c, env.Event, p.TempID, err)
		return
	}

	g.deliver(msg, c.Name, c)
	c.Emit(EventMessageSent, SentPayload{TempID: p.TempID, Message: msg})
}

// PushMessage fans a message persisted outside the socket out to its
// receiver, the way a socket send would.
func (g *Gateway) PushMessage(msg *models.Message, senderName string) {
	g.deliver(msg, senderName, nil)
}

func (g *Gateway) deliver(msg *models.Message, senderName string, except *Client) {
	convRoom := ConversationRoom(msg.ConversationID)
	receiverRoom := UserRoom(msg.ReceiverID)

	if g.presence.IsOnline(msg.ReceiverID) {
		g.hub.SubscribeMembers(receiverRoom, convRoom)
	}

	n := g.hub.Emit([]string{convRoom, receiverRoom}, except, EventMessageNew, msg)
	g.hub.Emit([]string{receiverRoom}, except, EventMessageNotification, NotificationPayload{
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
		SenderID:       msg.SenderID,
		SenderName:     senderName,
		Preview:        preview(msg.Content),
		CreatedAt:      msg.CreatedAt,
	})
	log.Debug("Delivered message %s to %d connections", msg.ID, n)
}

// conversationFor validates p and the membership of c
func conversationFor(c *Client, env Envelope, p *ConversationPayload) bool {
	if !decode(c, env, "", p) {
		return false
	}
	if _, _, ok := conversation.Participants(p.ConversationID); !ok {
		fail(c, env.Event, "", messaging.ErrInvalidConversation)
		return false
	}
	if !conversation.Includes(p.ConversationID, c.UserID) {
		fail(c, env.Event, "", messaging.ErrNotParticipant)
		return false
	}
	return true
}

func (g *Gateway) onJoin(c *Client, env Envelope) {
	var p ConversationPayload
	if !conversationFor(c, env, &p) {
		return
	}
	g.hub.Subscribe(c, ConversationRoom(p.ConversationID))
	c.Emit(EventConversationJoined, p)
}

func (g *Gateway) onLeave(c *Client, env Envelope) {
	var p ConversationPayload
	if !conversationFor(c, env, &p) {
		return
	}
	g.hub.Unsubscribe(c, ConversationRoom(p.ConversationID))
	c.Emit(EventConversationLeft, p)
}

func (g *Gateway) onRead(ctx context.Context, c *Client, env Envelope) {
	var p ReadPayload
	if !decode(c, env, "", &p) {
		return
	}

	counts, err := g.messages.MarkRead(ctx, messaging.ReadSelector{
		ConversationID: p.ConversationID,
		MessageIDs:     p.MessageIDs,
	}, c.UserID)
	if err != nil {
		fail(c, env.Event, "", err)
		return
	}

	c.Emit(EventMarkedRead, MarkedReadPayload{ConversationID: p.ConversationID, ModifiedCount: counts.Total()})

	for conversationID, n := range counts {
		g.receipt(conversationID, c.UserID, n, c)
	}
}

// PushReadReceipt tells the other participant of conversationID that readerID
// read count of their messages outside the socket.
func (g *Gateway) PushReadReceipt(conversationID, readerID string, count int64) {
	g.receipt(conversationID, readerID, count, nil)
}

func (g *Gateway) receipt(conversationID, readerID string, count int64, except *Client) {
	if count <= 0 {
		return
	}
	other, ok := conversation.Other(conversationID, readerID)
	if !ok {
		return
	}
	g.hub.Emit([]string{ConversationRoom(conversationID), UserRoom(other)}, except, EventReadReceipt, ReadReceiptPayload{
		ConversationID: conversationID,
		ReaderID:       readerID,
		Count:          count,
		ReadAt:         time.Now().UTC(),
	})
}

func (g *Gateway) onTyping(c *Client, env Envelope, out string) {
	var p ConversationPayload
	if !conversationFor(c, env, &p) {
		return
	}
	g.hub.Emit([]string{ConversationRoom(p.ConversationID)}, c, out, TypingPayload{
		ConversationID: p.ConversationID,
		UserID:         c.UserID,
		Name:           c.Name,
	})
}
