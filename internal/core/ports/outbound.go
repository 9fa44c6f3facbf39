package ports

import (
	"context"
	"time"

	"github.com/fiscora/retrieval-engine/internal/core/domain"
)

// RetrievalBackend is one independent search signal over the corpus or the
// open web. Implementations must honor ctx cancellation; the coordinator
// bounds every call with a per-backend timeout.
type RetrievalBackend interface {
	Kind() domain.BackendKind
	Search(ctx context.Context, query domain.Query, limit int) ([]domain.Candidate, error)
}

// Embedder produces vectors for query variants.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// HydeGenerator writes a short hypothetical answer document for a query.
// The document is embedded and searched in place of the raw question.
type HydeGenerator interface {
	GenerateHypotheticalDocument(ctx context.Context, query string) (string, error)
}

// KeywordExtractor scores keywords statistically, without a stop-word list.
// Importance is lower-is-more-important.
type KeywordExtractor interface {
	Extract(text string, maxKeywords int) []domain.Keyword
}

// TopicStore persists per-conversation topic state. Load returns a zero
// TopicContext (not an error) when nothing is stored yet; a corrupted
// stored value surfaces as domain.ErrTopicContextCorrupted.
type TopicStore interface {
	Load(ctx context.Context, conversationID string) (domain.TopicContext, error)
	Save(ctx context.Context, topic domain.TopicContext) error
}

// Cache is a content-addressable store with TTL. Get reports a corrupted
// entry identically to a miss and never returns an error for either.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Purge(ctx context.Context) error
}

// EpochProvider exposes the coarse corpus version counter used for cache
// key derivation.
type EpochProvider interface {
	Current() uint64
}
