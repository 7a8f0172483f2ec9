package database

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq" // PostgreSQL driver
	"github.com/pkg/errors"

	"github.com/ammar1510/clientdesk/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            UUID PRIMARY KEY,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	avatar        TEXT NOT NULL DEFAULT '',
	role          TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	last_seen     TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id              UUID PRIMARY KEY,
	sender_id       UUID NOT NULL REFERENCES users(id),
	receiver_id     UUID NOT NULL REFERENCES users(id),
	content         TEXT NOT NULL,
	message_type    TEXT NOT NULL,
	file_name       TEXT NOT NULL DEFAULT '',
	file_url        TEXT NOT NULL DEFAULT '',
	conversation_id TEXT NOT NULL,
	is_read         BOOLEAN NOT NULL DEFAULT FALSE,
	read_at         TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id, created_at);
CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages (receiver_id, is_read);
`

const (
	userColumns    = `id, name, email, password_hash, avatar, role, created_at, last_seen`
	messageColumns = `id, sender_id, receiver_id, content, message_type, file_name, file_url, conversation_id, is_read, read_at, created_at`
)

// uniqueViolation is the Postgres error code for a duplicate key
const uniqueViolation = "23505"

type PostgresDB struct {
	*sql.DB
}

func NewPostgresDB(ctx context.Context, connStr string) (*PostgresDB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	pg := &PostgresDB{db}
	if err := pg.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return pg, nil
}

// EnsureSchema creates the tables and indexes when they are missing
func (db *PostgresDB) EnsureSchema(ctx context.Context) error {
	_, err := db.ExecContext(ctx, schema)
	return errors.Wrap(err, "postgres.EnsureSchema")
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var role string
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash,
		&user.Avatar, &role, &user.CreatedAt, &user.LastSeen)
	if err != nil {
		return nil, err
	}
	user.Role = models.Role(role)
	return &user, nil
}

func scanMessage(row rowScanner) (*models.Message, error) {
	var msg models.Message
	var messageType string
	var readAt sql.NullTime

	err := row.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &messageType,
		&msg.FileName, &msg.FileURL, &msg.ConversationID, &msg.Read, &readAt, &msg.CreatedAt)
	if err != nil {
		return nil, err
	}
	msg.MessageType = models.MessageType(messageType)
	if readAt.Valid {
		t := readAt.Time
		msg.ReadAt = &t
	}
	return &msg, nil
}

func (db *PostgresDB) CreateUser(ctx context.Context, user *models.User) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.ID, user.Name, strings.ToLower(user.Email), user.PasswordHash,
		user.Avatar, string(user.Role), user.CreatedAt, user.LastSeen,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return ErrUserAlreadyExists
	}
	return errors.Wrap(err, "postgres.CreateUser")
}

func (db *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email)))
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "postgres.GetUserByEmail")
	}
	return user, nil
}

func (db *PostgresDB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	user, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "postgres.GetUserByID")
	}
	return user, nil
}

func (db *PostgresDB) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	out := make(map[string]*models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ANY($1::uuid[])`, pq.Array(ids))
	if err != nil {
		return nil, errors.Wrap(err, "postgres.GetUsersByIDs")
	}
	defer rows.Close()

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, "postgres.GetUsersByIDs.Scan")
		}
		out[user.ID] = user
	}
	return out, errors.Wrap(rows.Err(), "postgres.GetUsersByIDs.Rows")
}

func (db *PostgresDB) GetUsersByRole(ctx context.Context, role models.Role) ([]*models.User, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE role = $1 ORDER BY name`, string(role))
	if err != nil {
		return nil, errors.Wrap(err, "postgres.GetUsersByRole")
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, "postgres.GetUsersByRole.Scan")
		}
		users = append(users, user)
	}
	return users, errors.Wrap(rows.Err(), "postgres.GetUsersByRole.Rows")
}

func (db *PostgresDB) UpdateLastSeen(ctx context.Context, userID string) error {
	result, err := db.ExecContext(ctx, "UPDATE users SET last_seen = $1 WHERE id = $2",
		time.Now().UTC(), userID)
	if err != nil {
		return errors.Wrap(err, "postgres.UpdateLastSeen")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "postgres.UpdateLastSeen.RowsAffected")
	}

	if rowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (db *PostgresDB) InsertMessage(ctx context.Context, msg *models.Message) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO messages (`+messageColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		msg.ID, msg.SenderID, msg.ReceiverID, msg.Content, string(msg.MessageType),
		msg.FileName, msg.FileURL, msg.ConversationID, msg.Read, msg.ReadAt, msg.CreatedAt,
	)
	return errors.Wrap(err, "postgres.InsertMessage")
}

func (db *PostgresDB) GetConversationMessages(ctx context.Context, conversationID string, skip, limit int64) ([]*models.Message, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		OFFSET $2 LIMIT $3`,
		conversationID, skip, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "postgres.GetConversationMessages")
	}
	defer rows.Close()

	messages := []*models.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, errors.Wrap(err, "postgres.GetConversationMessages.Scan")
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "postgres.GetConversationMessages.Rows")
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (db *PostgresDB) MarkRead(ctx context.Context, filter ReadFilter, readAt time.Time) (ReadCounts, error) {
	query := `UPDATE messages SET is_read = TRUE, read_at = $1 WHERE receiver_id = $2 AND is_read = FALSE`
	args := []interface{}{readAt, filter.ReaderID}

	if filter.ConversationID != "" {
		args = append(args, filter.ConversationID)
		query += ` AND conversation_id = $3`
	}
	if len(filter.MessageIDs) > 0 {
		args = append(args, pq.Array(filter.MessageIDs))
		query += ` AND id = ANY(` + placeholder(len(args)) + `::uuid[])`
	}
	if filter.Before != nil {
		args = append(args, *filter.Before)
		query += ` AND created_at <= ` + placeholder(len(args))
	}

	query += ` RETURNING conversation_id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "postgres.MarkRead")
	}
	defer rows.Close()

	counts := ReadCounts{}
	for rows.Next() {
		var conversationID string
		if err := rows.Scan(&conversationID); err != nil {
			return nil, errors.Wrap(err, "postgres.MarkRead.Scan")
		}
		counts[conversationID]++
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "postgres.MarkRead.Rows")
	}
	return counts, nil
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func (db *PostgresDB) GetConversationStats(ctx context.Context, userID string) ([]*ConversationStat, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+prefixed("m", messageColumns)+`, COALESCE(u.unread, 0)
		FROM (
			SELECT DISTINCT ON (conversation_id) `+messageColumns+`
			FROM messages
			WHERE sender_id = $1 OR receiver_id = $1
			ORDER BY conversation_id, created_at DESC, id DESC
		) m
		LEFT JOIN (
			SELECT conversation_id, COUNT(*) AS unread
			FROM messages
			WHERE receiver_id = $1 AND is_read = FALSE
			GROUP BY conversation_id
		) u ON u.conversation_id = m.conversation_id
		ORDER BY m.created_at DESC`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "postgres.GetConversationStats")
	}
	defer rows.Close()

	var stats []*ConversationStat
	for rows.Next() {
		var msg models.Message
		var messageType string
		var readAt sql.NullTime
		var unread int64

		err := rows.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &messageType,
			&msg.FileName, &msg.FileURL, &msg.ConversationID, &msg.Read, &readAt, &msg.CreatedAt, &unread)
		if err != nil {
			return nil, errors.Wrap(err, "postgres.GetConversationStats.Scan")
		}
		msg.MessageType = models.MessageType(messageType)
		if readAt.Valid {
			t := readAt.Time
			msg.ReadAt = &t
		}
		stats = append(stats, &ConversationStat{
			ConversationID: msg.ConversationID,
			LastMessage:    &msg,
			UnreadCount:    unread,
		})
	}
	return stats, errors.Wrap(rows.Err(), "postgres.GetConversationStats.Rows")
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}

func (db *PostgresDB) CountUnread(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND is_read = FALSE`, userID).Scan(&n)
	return n, errors.Wrap(err, "postgres.CountUnread")
}

func (db *PostgresDB) Ping(ctx context.Context) error {
	return db.DB.PingContext(ctx)
}

func (db *PostgresDB) Close() error {
	return db.DB.Close()
}
