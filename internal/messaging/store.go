package messaging

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Message sender roles in a conversation transcript.
const (
	SenderClient    = "client"
	SenderAssistant = "assistant"
)

// Message is one line of a WhatsApp conversation.
type Message struct {
	ID          uuid.UUID `json:"id"`
	PhoneNumber string    `json:"phone_number"`
	Body        string    `json:"body"`
	Sender      string    `json:"sender"`
	ReceivedAt  time.Time `json:"received_at"`
}

// Conversation summarizes the latest exchange with one client.
type Conversation struct {
	PhoneNumber string    `json:"phone_number"`
	LastBody    string    `json:"last_body"`
	LastAt      time.Time `json:"last_at"`
	Messages    int       `json:"messages"`
}

// TranscriptStore persists conversation transcripts.
type TranscriptStore interface {
	// Append records one message on a client's transcript.
	Append(ctx context.Context, msg *Message) error
	// History returns the last limit messages for a phone number in
	// chronological order.
	History(ctx context.Context, phone string, limit int) ([]Message, error)
	// ListConversations returns one summary row per client, most recent first.
	ListConversations(ctx context.Context, limit int) ([]Conversation, error)
}

// Querier abstracts the pgx query interface for testing.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresTranscriptStore keeps transcripts in the messages table.
type PostgresTranscriptStore struct {
	db Querier
}

func NewPostgresTranscriptStore(db Querier) *PostgresTranscriptStore {
	return &PostgresTranscriptStore{db: db}
}

var _ TranscriptStore = (*PostgresTranscriptStore)(nil)

func (s *PostgresTranscriptStore) Append(ctx context.Context, msg *Message) error {
	if msg.Sender != SenderClient && msg.Sender != SenderAssistant {
		return fmt.Errorf("messaging: invalid sender %q", msg.Sender)
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO messages (id, phone_number, body, sender, received_at)
		VALUES ($1, $2, $3, $4, $5)`,
		msg.ID, msg.PhoneNumber, msg.Body, msg.Sender, msg.ReceivedAt)
	if err != nil {
		return fmt.Errorf("messaging: append message: %w", err)
	}
	return nil
}

func (s *PostgresTranscriptStore) History(ctx context.Context, phone string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 10
	}
	// Newest N first, then flipped to chronological order.
	rows, err := s.db.Query(ctx, `
		SELECT id, phone_number, body, sender, received_at
		FROM messages
		WHERE phone_number = $1
		ORDER BY received_at DESC
		LIMIT $2`, phone, limit)
	if err != nil {
		return nil, fmt.Errorf("messaging: load history: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.PhoneNumber, &m.Body, &m.Sender, &m.ReceivedAt); err != nil {
			return nil, fmt.Errorf("messaging: scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *PostgresTranscriptStore) ListConversations(ctx context.Context, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT ON (phone_number)
			phone_number, body, received_at,
			COUNT(*) OVER (PARTITION BY phone_number) AS total
		FROM messages
		ORDER BY phone_number, received_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("messaging: list conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.PhoneNumber, &c.LastBody, &c.LastAt, &c.Messages); err != nil {
			return nil, fmt.Errorf("messaging: scan conversation: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastAt.After(out[j].LastAt) })
	return out, nil
}

// MemoryTranscriptStore is the in-memory TranscriptStore used in tests and
// DB-less development mode.
type MemoryTranscriptStore struct {
	mu   sync.RWMutex
	msgs []Message
}

func NewMemoryTranscriptStore() *MemoryTranscriptStore {
	return &MemoryTranscriptStore{}
}

var _ TranscriptStore = (*MemoryTranscriptStore)(nil)

func (s *MemoryTranscriptStore) Append(ctx context.Context, msg *Message) error {
	if msg.Sender != SenderClient && msg.Sender != SenderAssistant {
		return errors.New("messaging: invalid sender " + msg.Sender)
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now().UTC()
	}
	s.mu.Lock()
	s.msgs = append(s.msgs, *msg)
	s.mu.Unlock()
	return nil
}

func (s *MemoryTranscriptStore) History(ctx context.Context, phone string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 10
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []Message
	for _, m := range s.msgs {
		if m.PhoneNumber == phone {
			all = append(all, m)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ReceivedAt.Before(all[j].ReceivedAt) })
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (s *MemoryTranscriptStore) ListConversations(ctx context.Context, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	byPhone := make(map[string]*Conversation)
	for _, m := range s.msgs {
		c, ok := byPhone[m.PhoneNumber]
		if !ok {
			c = &Conversation{PhoneNumber: m.PhoneNumber}
			byPhone[m.PhoneNumber] = c
		}
		c.Messages++
		if m.ReceivedAt.After(c.LastAt) {
			c.LastAt = m.ReceivedAt
			c.LastBody = m.Body
		}
	}
	out := make([]Conversation, 0, len(byPhone))
	for _, c := range byPhone {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastAt.After(out[j].LastAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
