package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/fiscora/retrieval-engine/internal/core/domain"
	"github.com/fiscora/retrieval-engine/internal/core/ports"
)

const maxQueryKeywords = 8

// variantBuilder turns the raw question into the per-backend query
// variants. The embedding calls made here are the engine's embedding
// health probe: a failure trips the fallback policy, a success recovers it.
type variantBuilder struct {
	extractor ports.KeywordExtractor
	embedder  ports.Embedder
	hyde      ports.HydeGenerator
	fallback  *FallbackPolicy
	logger    *slog.Logger
}

// build returns the query for this turn plus the topic fragment this step
// can contribute. The caller merges the fragment through the reducer; an
// empty fragment never clears anything downstream.
func (b *variantBuilder) build(
	ctx context.Context,
	req ports.RetrieveRequest,
	topic domain.TopicContext,
) (domain.Query, domain.TopicContext) {
	raw := strings.TrimSpace(req.Query)
	query := domain.Query{
		Raw:            raw,
		LexicalQuery:   normalizeLexical(raw),
		VectorQuery:    raw,
		ConversationID: req.ConversationID,
		TurnIndex:      req.TurnIndex,
	}

	keywords := b.extractor.Extract(raw, maxQueryKeywords)
	query.EntityQuery = joinKeywords(keywords)
	query.SemanticExpansions = expansionsFromTopic(topic, keywords)

	fragment := domain.TopicContext{ConversationID: req.ConversationID, CreatedAtTurn: req.TurnIndex}
	for _, kw := range keywords {
		fragment.Keywords = append(fragment.Keywords, kw.Keyword)
	}
	if len(fragment.Keywords) > domain.MaxTopicKeywords {
		fragment.Keywords = fragment.Keywords[:domain.MaxTopicKeywords]
	}

	vector, err := b.embedder.EmbedQuery(ctx, query.VectorQuery)
	if err != nil {
		if b.fallback.RecordEmbeddingFailure() {
			b.logger.Warn("fallback_degraded",
				"conversation_id", req.ConversationID,
				"error", err,
			)
		}
		return query, fragment
	}
	if b.fallback.RecordEmbeddingSuccess() {
		b.logger.Info("fallback_recovered", "conversation_id", req.ConversationID)
	}
	query.QueryVector = vector

	hydeText, err := b.hyde.GenerateHypotheticalDocument(ctx, raw)
	if err != nil {
		b.logger.Warn("hyde_generation_failed",
			"conversation_id", req.ConversationID,
			"error", err,
		)
		return query, fragment
	}
	hydeVector, err := b.embedder.EmbedQuery(ctx, hydeText)
	if err != nil {
		b.logger.Warn("hyde_embedding_failed",
			"conversation_id", req.ConversationID,
			"error", err,
		)
		return query, fragment
	}
	query.HydeVector = hydeVector

	return query, fragment
}

func normalizeLexical(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}

func joinKeywords(keywords []domain.Keyword) string {
	parts := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		parts = append(parts, kw.Keyword)
	}
	return strings.Join(parts, " ")
}

// expansionsFromTopic adds persisted topic keywords the current question
// does not mention, so follow-up turns keep searching the established
// subject.
func expansionsFromTopic(topic domain.TopicContext, queryKeywords []domain.Keyword) []string {
	if topic.Empty() {
		return nil
	}
	seen := make(map[string]struct{}, len(queryKeywords))
	for _, kw := range queryKeywords {
		seen[strings.ToLower(kw.Keyword)] = struct{}{}
	}

	var out []string
	for _, keyword := range topic.Keywords {
		if _, ok := seen[strings.ToLower(keyword)]; ok {
			continue
		}
		out = append(out, keyword)
	}
	return out
}
