package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fiscora/retrieval-engine/internal/core/domain"
)

// TopicStore persists per-conversation topic keywords. Callers always
// write back a full new value; there is no partial update.
type TopicStore struct {
	db *sql.DB
}

func NewTopicStore(db *sql.DB) *TopicStore {
	return &TopicStore{db: db}
}

func (s *TopicStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS conversation_topics (
    conversation_id TEXT PRIMARY KEY,
    keywords        JSONB NOT NULL,
    created_at_turn INT NOT NULL,
    updated_at      TIMESTAMPTZ NOT NULL
)
`)
	if err != nil {
		return fmt.Errorf("ensure conversation_topics schema: %w", err)
	}
	return nil
}

// Load returns a zero TopicContext when nothing is stored. A stored value
// that no longer decodes as a keyword list comes back as
// domain.ErrTopicContextCorrupted so the engine can reset and re-extract.
func (s *TopicStore) Load(ctx context.Context, conversationID string) (domain.TopicContext, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT keywords, created_at_turn
FROM conversation_topics
WHERE conversation_id = $1
`, conversationID)

	var (
		rawKeywords []byte
		createdAt   int
	)
	if err := row.Scan(&rawKeywords, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TopicContext{ConversationID: conversationID}, nil
		}
		return domain.TopicContext{}, fmt.Errorf("load topic: %w", err)
	}

	var keywords []string
	if err := json.Unmarshal(rawKeywords, &keywords); err != nil {
		return domain.TopicContext{}, domain.WrapError(domain.ErrTopicContextCorrupted, "load topic", err)
	}
	return domain.TopicContext{
		ConversationID: conversationID,
		Keywords:       keywords,
		CreatedAtTurn:  createdAt,
	}, nil
}

func (s *TopicStore) Save(ctx context.Context, topic domain.TopicContext) error {
	keywords, err := json.Marshal(topic.Keywords)
	if err != nil {
		return fmt.Errorf("marshal topic keywords: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO conversation_topics (conversation_id, keywords, created_at_turn, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (conversation_id) DO UPDATE
SET keywords = EXCLUDED.keywords,
    created_at_turn = EXCLUDED.created_at_turn,
    updated_at = EXCLUDED.updated_at
`, topic.ConversationID, keywords, topic.CreatedAtTurn, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save topic: %w", err)
	}
	return nil
}
