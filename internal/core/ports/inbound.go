package ports

import (
	"context"

	"github.com/fiscora/retrieval-engine/internal/core/domain"
)

// RetrieveRequest is one retrieval turn for one conversation.
type RetrieveRequest struct {
	Query          string
	ConversationID string
	TurnIndex      int
	TopK           int
}

// RetrievalResult is the ranked outcome of one turn, together with the
// conversation state the caller must persist for the next turn.
type RetrievalResult struct {
	Results  []domain.FusedResult
	Topic    domain.TopicContext
	Degraded bool
}

// PassageRetriever is the inbound contract for the retrieval fusion engine.
type PassageRetriever interface {
	Retrieve(ctx context.Context, req RetrieveRequest) (*RetrievalResult, error)
}

// CacheKeyInputs are the stable, low-cardinality inputs the cache key is
// derived from. Retrieval output never participates.
type CacheKeyInputs struct {
	NormalizedQuery string
	ModelID         string
	Temperature     float64
	CorpusEpoch     uint64
	TemplateVersion string
}

// CacheKeyDeriver builds a reproducible key for the retrieval+generation unit.
type CacheKeyDeriver interface {
	DeriveCacheKey(in CacheKeyInputs) string
}
