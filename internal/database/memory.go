package database

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ammar1510/clientdesk/internal/models"
)

// MemoryDB keeps users and messages in process memory. It backs DB_TYPE=memory
// and the package tests of everything above the store.
type MemoryDB struct {
	mu       sync.RWMutex
	users    map[string]*models.User
	messages []*models.Message
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{users: make(map[string]*models.User)}
}

func copyUser(u *models.User) *models.User {
	c := *u
	return &c
}

func copyMessage(m *models.Message) *models.Message {
	c := *m
	if m.ReadAt != nil {
		t := *m.ReadAt
		c.ReadAt = &t
	}
	return &c
}

func (db *MemoryDB) CreateUser(ctx context.Context, user *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.users[user.ID]; ok {
		return ErrUserAlreadyExists
	}
	for _, u := range db.users {
		if strings.EqualFold(u.Email, user.Email) {
			return ErrUserAlreadyExists
		}
	}
	db.users[user.ID] = copyUser(user)
	return nil
}

func (db *MemoryDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, u := range db.users {
		if strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, ErrUserNotFound
}

func (db *MemoryDB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	u, ok := db.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(u), nil
}

func (db *MemoryDB) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make(map[string]*models.User, len(ids))
	for _, id := range ids {
		if u, ok := db.users[id]; ok {
			out[id] = copyUser(u)
		}
	}
	return out, nil
}

func (db *MemoryDB) GetUsersByRole(ctx context.Context, role models.Role) ([]*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var users []*models.User
	for _, u := range db.users {
		if u.Role == role {
			users = append(users, copyUser(u))
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func (db *MemoryDB) UpdateLastSeen(ctx context.Context, userID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	u, ok := db.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.LastSeen = time.Now().UTC()
	return nil
}

func (db *MemoryDB) InsertMessage(ctx context.Context, msg *models.Message) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.messages = append(db.messages, copyMessage(msg))
	return nil
}

// newer orders messages by creation time, ties broken by id
func newer(a, b *models.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func (db *MemoryDB) GetConversationMessages(ctx context.Context, conversationID string, skip, limit int64) ([]*models.Message, error) {
	db.mu.RLock()
	var matched []*models.Message
	for _, m := range db.messages {
		if m.ConversationID == conversationID {
			matched = append(matched, copyMessage(m))
		}
	}
	db.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return newer(matched[i], matched[j]) })

	if skip >= int64(len(matched)) {
		return []*models.Message{}, nil
	}
	end := int64(len(matched))
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	page := matched[skip:end]

	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, nil
}

func (f ReadFilter) matches(m *models.Message) bool {
	if m.Read || m.ReceiverID != f.ReaderID {
		return false
	}
	if f.ConversationID != "" && m.ConversationID != f.ConversationID {
		return false
	}
	if f.Before != nil && m.CreatedAt.After(*f.Before) {
		return false
	}
	if len(f.MessageIDs) > 0 {
		for _, id := range f.MessageIDs {
			if id == m.ID {
				return true
			}
		}
		return false
	}
	return true
}

func (db *MemoryDB) MarkRead(ctx context.Context, filter ReadFilter, readAt time.Time) (ReadCounts, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	counts := ReadCounts{}
	for _, m := range db.messages {
		if filter.matches(m) {
			t := readAt
			m.Read = true
			m.ReadAt = &t
			counts[m.ConversationID]++
		}
	}
	return counts, nil
}

func (db *MemoryDB) GetConversationStats(ctx context.Context, userID string) ([]*ConversationStat, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	byID := make(map[string]*ConversationStat)
	for _, m := range db.messages {
		if m.SenderID != userID && m.ReceiverID != userID {
			continue
		}
		s, ok := byID[m.ConversationID]
		if !ok {
			s = &ConversationStat{ConversationID: m.ConversationID}
			byID[m.ConversationID] = s
		}
		if s.LastMessage == nil || newer(m, s.LastMessage) {
			s.LastMessage = m
		}
		if m.ReceiverID == userID && !m.Read {
			s.UnreadCount++
		}
	}

	stats := make([]*ConversationStat, 0, len(byID))
	for _, s := range byID {
		s.LastMessage = copyMessage(s.LastMessage)
		stats = append(stats, s)
	}
	sort.Slice(stats, func(i, j int) bool { return newer(stats[i].LastMessage, stats[j].LastMessage) })
	return stats, nil
}

func (db *MemoryDB) CountUnread(ctx context.Context, userID string) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var n int64
	for _, m := range db.messages {
		if m.ReceiverID == userID && !m.Read {
			n++
		}
	}
	return n, nil
}

func (db *MemoryDB) Ping(ctx context.Context) error { return nil }

func (db *MemoryDB) Close() error { return nil }
