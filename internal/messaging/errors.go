package messaging

import (
	"fmt"

	"github.com/ammar1510/clientdesk/internal/apperr"
	"github.com/ammar1510/clientdesk/internal/models"
)

var (
	ErrContentEmpty        = apperr.Validation("message content is required")
	ErrContentTooLong      = apperr.Validation(fmt.Sprintf("message content cannot exceed %d characters", models.MaxContentLength))
	ErrInvalidMessageType  = apperr.Validation("message type must be one of text, file, image")
	ErrFileURLRequired     = apperr.Validation("fileUrl is required for file and image messages")
	ErrSelfMessage         = apperr.Validation("cannot send a message to yourself")
	ErrInvalidUserID       = apperr.Validation("invalid user ID")
	ErrInvalidMessageID    = apperr.Validation("invalid message ID")
	ErrInvalidConversation = apperr.Validation("invalid conversation ID")
	ErrMissingSelector     = apperr.Validation("either conversationId or messageIds is required")
	ErrReceiverNotFound    = apperr.NotFound("receiver not found")
	ErrParticipantNotFound = apperr.NotFound("user not found")
	ErrNotParticipant      = apperr.Forbidden("you are not a participant of this conversation")
)
