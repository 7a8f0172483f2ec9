package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ammar1510/clientdesk/internal/notify"
)

// Publisher raises a notification for a single user
type Publisher interface {
	Publish(ctx context.Context, ev notify.Event) (notify.Delivery, error)
}

// NotificationHandler lets other modules (invoices, payments, calendar)
// notify a user over the socket channel.
type NotificationHandler struct {
	publisher Publisher
}

func NewNotificationHandler(publisher Publisher) *NotificationHandler {
	return &NotificationHandler{publisher: publisher}
}

// Publish handles POST /api/notifications. Delivery is best effort; the
// response says whether the user was reached.
func (h *NotificationHandler) Publish(c *gin.Context) {
	var ev notify.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		respondMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	delivery, err := h.publisher.Publish(c.Request.Context(), ev)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusAccepted, gin.H{"delivery": delivery})
}
