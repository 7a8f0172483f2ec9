package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammar1510/clientdesk/internal/conversation"
	"github.com/ammar1510/clientdesk/internal/models"
)

// storeContract exercises behaviour every DBInterface implementation shares.
// Timestamps are whole milliseconds so that the document store, which keeps
// millisecond precision, compares equal.
func storeContract(t *testing.T, db DBInterface) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	newUser := func(name string, role models.Role) *models.User {
		u := &models.User{
			ID:           uuid.NewString(),
			Name:         name,
			Email:        uuid.NewString() + "@example.com",
			PasswordHash: "hash",
			Role:         role,
			CreatedAt:    base,
			LastSeen:     base,
		}
		require.NoError(t, db.CreateUser(ctx, u))
		return u
	}

	admin := newUser("Alice Admin", models.RoleAdmin)
	bob := newUser("Bob Client", models.RoleClient)
	carol := newUser("Carol Client", models.RoleClient)

	seq := 0
	send := func(from, to *models.User, content string) *models.Message {
		seq++
		m := &models.Message{
			ID:             uuid.NewString(),
			SenderID:       from.ID,
			ReceiverID:     to.ID,
			Content:        content,
			MessageType:    models.MessageTypeText,
			ConversationID: conversation.Derive(from.ID, to.ID),
			CreatedAt:      base.Add(time.Duration(seq) * time.Millisecond),
		}
		require.NoError(t, db.InsertMessage(ctx, m))
		return m
	}

	t.Run("users", func(t *testing.T) {
		got, err := db.GetUserByID(ctx, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, bob.Name, got.Name)

		got, err = db.GetUserByEmail(ctx, admin.Email)
		require.NoError(t, err)
		assert.Equal(t, admin.ID, got.ID)

		_, err = db.GetUserByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, ErrUserNotFound)

		dup := *bob
		dup.ID = uuid.NewString()
		assert.ErrorIs(t, db.CreateUser(ctx, &dup), ErrUserAlreadyExists)

		clients, err := db.GetUsersByRole(ctx, models.RoleClient)
		require.NoError(t, err)
		var ids []string
		for _, c := range clients {
			ids = append(ids, c.ID)
		}
		assert.Contains(t, ids, bob.ID)
		assert.Contains(t, ids, carol.ID)
		assert.NotContains(t, ids, admin.ID)

		byID, err := db.GetUsersByIDs(ctx, []string{admin.ID, carol.ID, uuid.NewString()})
		require.NoError(t, err)
		assert.Len(t, byID, 2)

		assert.NoError(t, db.UpdateLastSeen(ctx, bob.ID))
		assert.ErrorIs(t, db.UpdateLastSeen(ctx, uuid.NewString()), ErrUserNotFound)
	})

	m1 := send(admin, bob, "one")
	m2 := send(bob, admin, "two")
	m3 := send(admin, bob, "three")
	m4 := send(admin, carol, "hello carol")
	abConv := conversation.Derive(admin.ID, bob.ID)

	t.Run("messages are paged newest first and returned oldest first", func(t *testing.T) {
		all, err := db.GetConversationMessages(ctx, abConv, 0, 50)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{m1.ID, m2.ID, m3.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

		latest, err := db.GetConversationMessages(ctx, abConv, 0, 2)
		require.NoError(t, err)
		require.Len(t, latest, 2)
		assert.Equal(t, m2.ID, latest[0].ID)
		assert.Equal(t, m3.ID, latest[1].ID)

		older, err := db.GetConversationMessages(ctx, abConv, 2, 2)
		require.NoError(t, err)
		require.Len(t, older, 1)
		assert.Equal(t, m1.ID, older[0].ID)

		empty, err := db.GetConversationMessages(ctx, conversation.Derive(bob.ID, carol.ID), 0, 50)
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)
	})

	t.Run("conversation stats", func(t *testing.T) {
		stats, err := db.GetConversationStats(ctx, admin.ID)
		require.NoError(t, err)
		require.Len(t, stats, 2)
		assert.Equal(t, conversation.Derive(admin.ID, carol.ID), stats[0].ConversationID)
		assert.Equal(t, m4.ID, stats[0].LastMessage.ID)
		assert.Equal(t, int64(0), stats[0].UnreadCount)
		assert.Equal(t, abConv, stats[1].ConversationID)
		assert.Equal(t, m3.ID, stats[1].LastMessage.ID)
		assert.Equal(t, int64(1), stats[1].UnreadCount)

		stats, err = db.GetConversationStats(ctx, bob.ID)
		require.NoError(t, err)
		require.Len(t, stats, 1)
		assert.Equal(t, int64(2), stats[0].UnreadCount)
	})

	t.Run("mark read by conversation respects the cutoff", func(t *testing.T) {
		n, err := db.CountUnread(ctx, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		cutoff := m1.CreatedAt
		readAt := base.Add(time.Minute)
		changed, err := db.MarkRead(ctx, ReadFilter{ReaderID: bob.ID, ConversationID: abConv, Before: &cutoff}, readAt)
		require.NoError(t, err)
		assert.Equal(t, ReadCounts{abConv: 1}, changed)

		changed, err = db.MarkRead(ctx, ReadFilter{ReaderID: bob.ID, ConversationID: abConv}, readAt)
		require.NoError(t, err)
		assert.Equal(t, ReadCounts{abConv: 1}, changed)

		// already read: nothing left to change
		changed, err = db.MarkRead(ctx, ReadFilter{ReaderID: bob.ID, ConversationID: abConv}, readAt)
		require.NoError(t, err)
		assert.Empty(t, changed)
		assert.Equal(t, int64(0), changed.Total())

		msgs, err := db.GetConversationMessages(ctx, abConv, 0, 50)
		require.NoError(t, err)
		for _, m := range msgs {
			if m.ReceiverID == bob.ID {
				assert.True(t, m.Read)
				require.NotNil(t, m.ReadAt)
				assert.True(t, readAt.Equal(*m.ReadAt))
			} else {
				assert.False(t, m.Read, "messages addressed to the other participant stay unread")
				assert.Nil(t, m.ReadAt)
			}
		}
	})

	t.Run("mark read by ids only touches the reader's messages", func(t *testing.T) {
		changed, err := db.MarkRead(ctx, ReadFilter{ReaderID: bob.ID, MessageIDs: []string{m4.ID, m2.ID}}, base)
		require.NoError(t, err)
		assert.Equal(t, int64(0), changed.Total())

		changed, err = db.MarkRead(ctx, ReadFilter{ReaderID: carol.ID, MessageIDs: []string{m4.ID}}, base)
		require.NoError(t, err)
		assert.Equal(t, ReadCounts{m4.ConversationID: 1}, changed)

		n, err := db.CountUnread(ctx, carol.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)

		n, err = db.CountUnread(ctx, admin.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}
