// Package bootstrap assembles the retrieval engine: backends, stores,
// cache, epoch bus and the use case, all from one Config.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/fiscora/retrieval-engine/internal/config"
	"github.com/fiscora/retrieval-engine/internal/core/domain"
	"github.com/fiscora/retrieval-engine/internal/core/ports"
	"github.com/fiscora/retrieval-engine/internal/core/usecase"
	neo4jbackend "github.com/fiscora/retrieval-engine/internal/infrastructure/backend/neo4j"
	"github.com/fiscora/retrieval-engine/internal/infrastructure/backend/qdrant"
	"github.com/fiscora/retrieval-engine/internal/infrastructure/backend/web"
	badgercache "github.com/fiscora/retrieval-engine/internal/infrastructure/cache/badger"
	"github.com/fiscora/retrieval-engine/internal/infrastructure/epoch"
	"github.com/fiscora/retrieval-engine/internal/infrastructure/keywords"
	"github.com/fiscora/retrieval-engine/internal/infrastructure/llm/ollama"
	natsbus "github.com/fiscora/retrieval-engine/internal/infrastructure/queue/nats"
	"github.com/fiscora/retrieval-engine/internal/infrastructure/repository/postgres"
	"github.com/fiscora/retrieval-engine/internal/infrastructure/resilience"
	"github.com/fiscora/retrieval-engine/internal/observability/metrics"
)

const ServiceName = "retrieval-engine"

type App struct {
	Config config.Config

	Retriever ports.PassageRetriever
	KeyDFn    ports.CacheKeyDeriver
	Cache     ports.Cache
	Epochs    *epoch.Counter
	Bus       *natsbus.Bus
	Metrics   *metrics.RetrievalMetrics

	logger  *slog.Logger
	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	executor := resilience.NewExecutor(resilience.DefaultConfig())

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	topicStore := postgres.NewTopicStore(db)
	if err := topicStore.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure topic schema: %w", err)
	}
	lexical := postgres.NewLexicalBackend(db, cfg.PostgresTextConfig)

	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""))
	if err != nil {
		return nil, fmt.Errorf("open neo4j: %w", err)
	}
	authority := neo4jbackend.NewAuthorityBackend(driver, cfg.Neo4jDatabase, cfg.Neo4jFulltextIndex)

	qdrantClient := qdrant.NewClient(cfg.QdrantURL, cfg.QdrantCollection)
	backends := []ports.RetrievalBackend{
		lexical,
		qdrant.NewVectorBackend(qdrantClient),
		qdrant.NewHydeBackend(qdrantClient),
		authority,
	}
	if cfg.WebSearchEnabled {
		backends = append(backends, web.NewSearcher(cfg.WebSearchURL, web.Options{
			RequestsPerSecond: cfg.WebSearchRPS,
			Burst:             cfg.WebSearchBurst,
		}))
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	embedder := ollama.NewEmbedder(ollamaClient)
	hyde := ollama.NewHydeGenerator(ollamaClient)

	extractor := keywords.New(keywords.Weights{
		Casing:     cfg.Fusion.KeywordWeights.Casing,
		Position:   cfg.Fusion.KeywordWeights.Position,
		Frequency:  cfg.Fusion.KeywordWeights.Frequency,
		Dispersion: cfg.Fusion.KeywordWeights.Dispersion,
	})

	retrievalMetrics := metrics.NewRetrievalMetrics(ServiceName)

	uc, err := usecase.NewRetrieveUseCase(
		extractor,
		embedder,
		hyde,
		topicStore,
		backends,
		usecase.RetrieveOptions{
			Fusion:            fusionConfig(cfg.Fusion),
			CandidateLimit:    cfg.CandidateLimit,
			GlobalTimeout:     time.Duration(cfg.GlobalTimeoutMS) * time.Millisecond,
			PerBackendTimeout: time.Duration(cfg.PerBackendTimeoutMS) * time.Millisecond,
			Metrics:           retrievalMetrics.EngineRecorder(ServiceName),
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("build retrieve use case: %w", err)
	}

	cache, err := badgercache.Open(cfg.CachePath, logger)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	epochs := epoch.NewCounter(cfg.CorpusEpochSeed)
	retrievalMetrics.SetCorpusEpoch(epochs.Current())

	bus, err := natsbus.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsbus.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect epoch bus: %w", err)
	}

	return &App{
		Config:    cfg,
		Retriever: uc,
		KeyDFn:    uc,
		Cache:     cache,
		Epochs:    epochs,
		Bus:       bus,
		Metrics:   retrievalMetrics,
		logger:    logger,
		closeFn: func() {
			bus.Close()
			_ = cache.Close()
			_ = driver.Close(context.Background())
			_ = db.Close()
		},
	}, nil
}

// WatchCorpusUpdates blocks until ctx is done, advancing the epoch and
// purging the cache for every corpus update event.
func (a *App) WatchCorpusUpdates(ctx context.Context) error {
	return a.Bus.SubscribeCorpusUpdated(ctx, func(handlerCtx context.Context, batchID string) error {
		next := a.Epochs.Advance()
		a.Metrics.SetCorpusEpoch(next)
		if err := a.Cache.Purge(handlerCtx); err != nil {
			return fmt.Errorf("purge cache for epoch %d: %w", next, err)
		}
		a.logger.Info("corpus_epoch_advanced", "epoch", next, "batch_id", batchID)
		return nil
	})
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func fusionConfig(file config.FusionFile) usecase.FusionConfig {
	weights := make(map[domain.BackendKind]float64, len(file.Weights))
	for name, weight := range file.Weights {
		weights[domain.BackendKind(name)] = weight
	}
	return usecase.FusionConfig{
		Weights:          weights,
		ReservedWebSlots: file.ReservedWebSlots,
	}
}
