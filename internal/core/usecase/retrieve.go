package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fiscora/retrieval-engine/internal/core/domain"
	"github.com/fiscora/retrieval-engine/internal/core/ports"
)

const (
	defaultTopK           = 10
	defaultCandidateLimit = 30
	defaultGlobalTimeout  = 5 * time.Second
)

// EngineMetrics is the narrow recorder the engine reports into; the
// concrete Prometheus implementation lives in observability/metrics.
type EngineMetrics interface {
	ObserveRetrieve(duration time.Duration, degraded bool, err error)
	ObserveFanOut(duration time.Duration, dispatched, failed int)
}

// RetrieveUseCase is the hybrid multi-signal retrieval fusion engine: it
// fans out over the enabled backends, normalizes and fuses their scores,
// holds the result set on topic, and reports degraded mode to the caller.
type RetrieveUseCase struct {
	extractor   ports.KeywordExtractor
	topicStore  ports.TopicStore
	backends    map[domain.BackendKind]ports.RetrievalBackend
	coordinator *FanOutCoordinator
	fallback    *FallbackPolicy
	variants    *variantBuilder

	fusion         FusionConfig
	candidateLimit int
	globalTimeout  time.Duration

	logger  *slog.Logger
	metrics EngineMetrics
}

type RetrieveOptions struct {
	Fusion            FusionConfig
	CandidateLimit    int
	GlobalTimeout     time.Duration
	PerBackendTimeout time.Duration
	Metrics           EngineMetrics
}

func NewRetrieveUseCase(
	extractor ports.KeywordExtractor,
	embedder ports.Embedder,
	hyde ports.HydeGenerator,
	topicStore ports.TopicStore,
	backends []ports.RetrievalBackend,
	opts RetrieveOptions,
	logger *slog.Logger,
) (*RetrieveUseCase, error) {
	if err := opts.Fusion.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	byKind := make(map[domain.BackendKind]ports.RetrievalBackend, len(backends))
	for _, backend := range backends {
		if _, dup := byKind[backend.Kind()]; dup {
			return nil, fmt.Errorf("duplicate backend registered: %s", backend.Kind())
		}
		byKind[backend.Kind()] = backend
	}

	candidateLimit := opts.CandidateLimit
	if candidateLimit <= 0 {
		candidateLimit = defaultCandidateLimit
	}
	globalTimeout := opts.GlobalTimeout
	if globalTimeout <= 0 {
		globalTimeout = defaultGlobalTimeout
	}

	fallback := NewFallbackPolicy()
	return &RetrieveUseCase{
		extractor:   extractor,
		topicStore:  topicStore,
		backends:    byKind,
		coordinator: NewFanOutCoordinator(opts.PerBackendTimeout),
		fallback:    fallback,
		variants: &variantBuilder{
			extractor: extractor,
			embedder:  embedder,
			hyde:      hyde,
			fallback:  fallback,
			logger:    logger,
		},
		fusion:         opts.Fusion,
		candidateLimit: candidateLimit,
		globalTimeout:  globalTimeout,
		logger:         logger,
		metrics:        opts.Metrics,
	}, nil
}

func (uc *RetrieveUseCase) Retrieve(ctx context.Context, req ports.RetrieveRequest) (*ports.RetrievalResult, error) {
	started := time.Now()
	result, err := uc.retrieve(ctx, req)
	if uc.metrics != nil {
		degraded := result != nil && result.Degraded
		uc.metrics.ObserveRetrieve(time.Since(started), degraded, err)
	}
	return result, err
}

func (uc *RetrieveUseCase) retrieve(ctx context.Context, req ports.RetrieveRequest) (*ports.RetrievalResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", errors.New("empty query"))
	}
	topK := req.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	topic := uc.loadTopic(ctx, req)

	query, fragment := uc.variants.build(ctx, req, topic)
	topic = domain.MergeTopicContext(topic, fragment)
	uc.persistTopicIfNew(ctx, topic, fragment)

	enabled := uc.enabledBackends(query)
	if len(enabled) == 0 {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "retrieve", errors.New("no backends enabled"))
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, uc.globalTimeout)
	defer cancel()

	fanOutStart := time.Now()
	results, failures := uc.coordinator.Dispatch(dispatchCtx, query, enabled, uc.candidateLimit)
	if uc.metrics != nil {
		uc.metrics.ObserveFanOut(time.Since(fanOutStart), len(enabled), len(failures))
	}
	uc.logDispatch(req.ConversationID, results, failures)

	if len(results) == 0 {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "retrieve", joinBackendErrors(failures))
	}

	degraded := uc.noteSemanticFailures(failures)

	normalizeAll(results)
	weights := effectiveWeights(uc.fusion, backendKinds(enabled))
	fused := fuseCandidates(results, weights)
	fused = filterByRelevance(fused, topic, queryKeywordList(query))
	ranked := selectTopK(fused, topK, uc.fusion.ReservedWebSlots)

	return &ports.RetrievalResult{
		Results:  ranked,
		Topic:    topic,
		Degraded: degraded,
	}, nil
}

// DeriveCacheKey exposes the stable cache key scheme to callers of the
// engine; see DeriveCacheKey in cachekey.go for the exclusion rules.
func (uc *RetrieveUseCase) DeriveCacheKey(in ports.CacheKeyInputs) string {
	return DeriveCacheKey(in)
}

// loadTopic reads the persisted topic for this conversation. A corrupted
// stored value is logged and treated as absent, never surfaced.
func (uc *RetrieveUseCase) loadTopic(ctx context.Context, req ports.RetrieveRequest) domain.TopicContext {
	stored, err := uc.topicStore.Load(ctx, req.ConversationID)
	if err != nil {
		level := slog.LevelWarn
		if domain.IsKind(err, domain.ErrTopicContextCorrupted) {
			level = slog.LevelError
		}
		uc.logger.Log(ctx, level, "topic_load_failed",
			"conversation_id", req.ConversationID,
			"error", err,
		)
		return domain.TopicContext{ConversationID: req.ConversationID}
	}
	stored.ConversationID = req.ConversationID
	return stored
}

// persistTopicIfNew saves the topic only on the turn that established it.
// Later turns reuse the stored value untouched.
func (uc *RetrieveUseCase) persistTopicIfNew(ctx context.Context, topic, fragment domain.TopicContext) {
	if topic.Empty() || topic.CreatedAtTurn != fragment.CreatedAtTurn {
		return
	}
	if err := uc.topicStore.Save(ctx, topic); err != nil {
		uc.logger.Warn("topic_save_failed",
			"conversation_id", topic.ConversationID,
			"error", err,
		)
	}
}

// enabledBackends resolves the dispatch set for this turn. Degraded mode
// restricts it to the lexical and authority signals; the vector and HyDE
// backends additionally require their query vectors to exist.
func (uc *RetrieveUseCase) enabledBackends(query domain.Query) []ports.RetrievalBackend {
	degraded := uc.fallback.Degraded()

	out := make([]ports.RetrievalBackend, 0, len(uc.backends))
	for _, kind := range domain.AllBackends {
		backend, ok := uc.backends[kind]
		if !ok {
			continue
		}
		switch kind {
		case domain.BackendVector:
			if degraded || len(query.QueryVector) == 0 {
				continue
			}
		case domain.BackendHyde:
			if degraded || len(query.HydeVector) == 0 {
				continue
			}
		case domain.BackendWeb:
			if degraded {
				continue
			}
		}
		out = append(out, backend)
	}
	return out
}

// noteSemanticFailures flags the response as reduced-recall when a semantic
// backend failed this turn and arms degraded mode for the next one.
func (uc *RetrieveUseCase) noteSemanticFailures(failures map[domain.BackendKind]error) bool {
	if uc.fallback.Degraded() {
		return true
	}
	if _, ok := failures[domain.BackendVector]; ok {
		uc.fallback.RecordEmbeddingFailure()
		return true
	}
	if _, ok := failures[domain.BackendHyde]; ok {
		return true
	}
	return false
}

func (uc *RetrieveUseCase) logDispatch(
	conversationID string,
	results map[domain.BackendKind][]domain.Candidate,
	failures map[domain.BackendKind]error,
) {
	for kind, err := range failures {
		uc.logger.Warn("backend_dispatch_failed",
			"conversation_id", conversationID,
			"backend", string(kind),
			"error", err,
		)
	}
	if uc.logger.Enabled(context.Background(), slog.LevelDebug) {
		for kind, candidates := range results {
			uc.logger.Debug("backend_dispatch_ok",
				"conversation_id", conversationID,
				"backend", string(kind),
				"candidates", len(candidates),
			)
		}
	}
}

func backendKinds(backends []ports.RetrievalBackend) []domain.BackendKind {
	out := make([]domain.BackendKind, 0, len(backends))
	for _, backend := range backends {
		out = append(out, backend.Kind())
	}
	return out
}

func queryKeywordList(query domain.Query) []string {
	if query.EntityQuery == "" {
		return nil
	}
	return strings.Fields(query.EntityQuery)
}

func joinBackendErrors(failures map[domain.BackendKind]error) error {
	errs := make([]error, 0, len(failures))
	for _, kind := range domain.AllBackends {
		if err, ok := failures[kind]; ok {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return errors.New("no backends produced candidates")
	}
	return errors.Join(errs...)
}
