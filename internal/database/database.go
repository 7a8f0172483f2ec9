package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ammar1510/clientdesk/internal/apperr"
	"github.com/ammar1510/clientdesk/internal/models"
)

var (
	ErrUserNotFound      = apperr.NotFound("user not found")
	ErrUserAlreadyExists = apperr.Conflict("user already exists")
)

// ReadFilter selects the messages a bulk read update may touch. Only unread
// messages addressed to ReaderID are ever matched.
type ReadFilter struct {
	ReaderID       string
	ConversationID string
	MessageIDs     []string
	// Before, when set, excludes messages created after it
	Before *time.Time
}

// ReadCounts is what a bulk read update changed, keyed by conversation id
type ReadCounts map[string]int64

// Total is the number of messages changed
func (rc ReadCounts) Total() int64 {
	var n int64
	for _, c := range rc {
		n += c
	}
	return n
}

// ConversationStat is the per-conversation aggregate behind the conversation list
type ConversationStat struct {
	ConversationID string
	LastMessage    *models.Message
	UnreadCount    int64
}

type DBInterface interface {
	// User methods
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
	GetUsersByRole(ctx context.Context, role models.Role) ([]*models.User, error)
	UpdateLastSeen(ctx context.Context, userID string) error

	// Message methods
	InsertMessage(ctx context.Context, msg *models.Message) error
	// GetConversationMessages pages from the newest message backwards and
	// returns the page oldest-first.
	GetConversationMessages(ctx context.Context, conversationID string, skip, limit int64) ([]*models.Message, error)
	// MarkRead bulk-updates the matching messages and returns how many changed
	// in each conversation.
	MarkRead(ctx context.Context, filter ReadFilter, readAt time.Time) (ReadCounts, error)
	// GetConversationStats returns one entry per conversation of userID, most recent first.
	GetConversationStats(ctx context.Context, userID string) ([]*ConversationStat, error)
	CountUnread(ctx context.Context, userID string) (int64, error)

	// Common methods
	Ping(ctx context.Context) error
	Close() error
}

type DatabaseType string

const (
	PostgreSQL DatabaseType = "postgres"
	Mongo      DatabaseType = "mongo"
	Memory     DatabaseType = "memory"
)

// Options carries the store specific connection settings
type Options struct {
	URL          string
	DatabaseName string
}

func NewDatabase(ctx context.Context, dbType DatabaseType, opts Options) (DBInterface, error) {
	switch dbType {
	case PostgreSQL:
		return NewPostgresDB(ctx, opts.URL)
	case Mongo:
		return NewMongoDB(ctx, opts.URL, opts.DatabaseName)
	case Memory:
		return NewMemoryDB(), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
}
