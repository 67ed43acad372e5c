package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
	"github.com/ponyo877/lounge/server/domain"
)

const sqliteDriverName = "sqlite3_with_go_func"

var registerOnce sync.Once

func regex(re, s string) (bool, error) {
	return regexp.MatchString(re, s)
}

// OpenSQLite opens dsn with a driver that provides the REGEXP operator.
func OpenSQLite(dsn string) (*sql.DB, error) {
	registerOnce.Do(func() {
		sql.Register(sqliteDriverName,
			&sqlite3.SQLiteDriver{
				ConnectHook: func(conn *sqlite3.SQLiteConn) error {
					return conn.RegisterFunc("regexp", regex, true)
				},
			})
	})
	if dsn == "" {
		dsn = "./lounge.db"
	}
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db %s: %w", dsn, err)
	}
	if dsn == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id              TEXT PRIMARY KEY,
	user_a          TEXT NOT NULL,
	user_b          TEXT NOT NULL,
	last_message    TEXT NOT NULL DEFAULT '',
	last_message_at DATETIME,
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL,
	UNIQUE (user_a, user_b)
);
CREATE INDEX IF NOT EXISTS conversations_user_b ON conversations (user_b);
CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations (id),
	sender_id       TEXT NOT NULL,
	content         TEXT NOT NULL,
	status          TEXT NOT NULL,
	created_at      DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_conversation ON messages (conversation_id, created_at);
`

type Repository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (r *Repository) FindOrCreateConversation(ctx context.Context, userA, userB string) (domain.Conversation, error) {
	pair := domain.SortedPair(userA, userB)
	now := r.now().UTC()
	query := `INSERT INTO conversations (id, user_a, user_b, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_a, user_b) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, ulid.Make().String(), pair[0], pair[1], now, now); err != nil {
		return domain.Conversation{}, fmt.Errorf("failed to insert conversation %s/%s: %w", pair[0], pair[1], err)
	}

	row := r.db.QueryRowContext(ctx, `SELECT id, user_a, user_b, last_message, last_message_at, created_at, updated_at
		FROM conversations WHERE user_a = ? AND user_b = ?`, pair[0], pair[1])
	return scanConversation(row)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(s scanner) (domain.Conversation, error) {
	var (
		c             domain.Conversation
		lastMessageAt sql.NullTime
	)
	if err := s.Scan(&c.ID, &c.Participants[0], &c.Participants[1], &c.LastMessage, &lastMessageAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Conversation{}, ErrNotFound
		}
		return domain.Conversation{}, fmt.Errorf("failed to scan conversation: %w", err)
	}
	if lastMessageAt.Valid {
		t := lastMessageAt.Time
		c.LastMessageAt = &t
	}
	return c, nil
}

func (r *Repository) AppendPersistedMessage(ctx context.Context, conversationID, senderID, text string) (domain.PersistedMessage, error) {
	msg := domain.PersistedMessage{
		ID:             ulid.Make().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		Status:         domain.MessageStatusSent,
		CreatedAt:      r.now().UTC(),
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.PersistedMessage{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, "UPDATE conversations SET last_message = ?, last_message_at = ?, updated_at = ? WHERE id = ?",
		text, msg.CreatedAt, msg.CreatedAt, conversationID)
	if err != nil {
		return domain.PersistedMessage{}, fmt.Errorf("failed to update conversation %s: %w", conversationID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return domain.PersistedMessage{}, fmt.Errorf("failed to update conversation %s: %w", conversationID, err)
	} else if n == 0 {
		return domain.PersistedMessage{}, fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}

	query := "INSERT INTO messages (id, conversation_id, sender_id, content, status, created_at) VALUES (?, ?, ?, ?, ?, ?)"
	if _, err := tx.ExecContext(ctx, query, msg.ID, conversationID, senderID, text, msg.Status, msg.CreatedAt); err != nil {
		return domain.PersistedMessage{}, fmt.Errorf("failed to insert message for conversation %s: %w", conversationID, err)
	}
	if err := tx.Commit(); err != nil {
		return domain.PersistedMessage{}, fmt.Errorf("failed to commit message for conversation %s: %w", conversationID, err)
	}
	return msg, nil
}

func (r *Repository) ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	query := `SELECT id, user_a, user_b, last_message, last_message_at, created_at, updated_at
		FROM conversations WHERE user_a = ? OR user_b = ? ORDER BY updated_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations for %s: %w", userID, err)
	}
	defer rows.Close()

	conversations := []domain.Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over conversations for %s: %w", userID, err)
	}
	return conversations, nil
}

func (r *Repository) ListMessages(ctx context.Context, conversationID string) ([]domain.PersistedMessage, error) {
	query := "SELECT id, sender_id, content, status, created_at FROM messages WHERE conversation_id = ? ORDER BY created_at, id"
	return r.queryMessages(ctx, conversationID, query, conversationID)
}

// SearchMessages returns the messages of the conversation whose text
// matches pattern.
func (r *Repository) SearchMessages(ctx context.Context, conversationID, pattern string) ([]domain.PersistedMessage, error) {
	if _, err := regexp.Compile(pattern); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPattern, err)
	}
	query := "SELECT id, sender_id, content, status, created_at FROM messages WHERE conversation_id = ? AND content REGEXP ? ORDER BY created_at, id"
	return r.queryMessages(ctx, conversationID, query, conversationID, pattern)
}

func (r *Repository) queryMessages(ctx context.Context, conversationID, query string, args ...any) ([]domain.PersistedMessage, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages for conversation %s: %w", conversationID, err)
	}
	defer rows.Close()

	messages := []domain.PersistedMessage{}
	for rows.Next() {
		m := domain.PersistedMessage{ConversationID: conversationID}
		if err := rows.Scan(&m.ID, &m.SenderID, &m.Text, &m.Status, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message content: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over messages for conversation %s: %w", conversationID, err)
	}
	return messages, nil
}
