// Package notify pushes domain events (invoice created, payment received, and
// so on) to the user they concern, if that user is connected right now.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ammar1510/clientdesk/internal/apperr"
	"github.com/ammar1510/clientdesk/internal/logger"
	"github.com/ammar1510/clientdesk/internal/presence"
)

// EventNotification is the socket event a notification arrives as
const EventNotification = "notification:new"

var log = logger.New("notify")

// Delivery is what happened to a published event
type Delivery string

const (
	Delivered      Delivery = "delivered"
	DroppedOffline Delivery = "dropped_offline"
)

var (
	ErrUserRequired = apperr.Validation("userId is required")
	ErrTypeRequired = apperr.Validation("type is required")
)

// Event is a notification raised by another module
type Event struct {
	UserID  string                 `json:"userId" binding:"required"`
	Type    string                 `json:"type" binding:"required"`
	Title   string                 `json:"title"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// Notification is the payload of a notification:new event
type Notification struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// Bridge delivers events over live connections only. There is no queue: an
// event for an offline user is dropped and reported as DroppedOffline.
type Bridge struct {
	presence *presence.Registry
}

func NewBridge(registry *presence.Registry) *Bridge {
	return &Bridge{presence: registry}
}

// Publish pushes ev to its user's connection
func (b *Bridge) Publish(ctx context.Context, ev Event) (Delivery, error) {
	if ev.UserID == "" {
		return "", ErrUserRequired
	}
	if ev.Type == "" {
		return "", ErrTypeRequired
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	handle, ok := b.presence.Lookup(ev.UserID)
	if !ok {
		log.Debug("User %s offline, dropping %s notification", ev.UserID, ev.Type)
		return DroppedOffline, nil
	}

	n := Notification{
		ID:        uuid.NewString(),
		Type:      ev.Type,
		Title:     ev.Title,
		Message:   ev.Message,
		Data:      ev.Data,
		CreatedAt: time.Now().UTC(),
	}
	if !handle.Emit(EventNotification, n) {
		log.Warn("Connection of %s refused %s notification", ev.UserID, ev.Type)
		return DroppedOffline, nil
	}

	log.Debug("Delivered %s notification to %s", ev.Type, ev.UserID)
	return Delivered, nil
}
