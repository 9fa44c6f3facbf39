package usecase

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/fiscora/retrieval-engine/internal/core/domain"
	"github.com/fiscora/retrieval-engine/internal/core/ports"
)

type extractorFake struct {
	keywords []string
}

func (f *extractorFake) Extract(_ string, maxKeywords int) []domain.Keyword {
	out := make([]domain.Keyword, 0, len(f.keywords))
	for i, kw := range f.keywords {
		if i >= maxKeywords {
			break
		}
		out = append(out, domain.Keyword{Keyword: kw, Importance: float64(i)})
	}
	return out
}

type embedderFake struct {
	err   error
	calls int
}

func (f *embedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type hydeFake struct {
	err error
}

func (f *hydeFake) GenerateHypotheticalDocument(context.Context, string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "documento ipotetico sulla rottamazione quinquies", nil
}

type topicStoreFake struct {
	stored  map[string]domain.TopicContext
	loadErr error
	saves   int
}

func newTopicStoreFake() *topicStoreFake {
	return &topicStoreFake{stored: make(map[string]domain.TopicContext)}
}

func (f *topicStoreFake) Load(_ context.Context, conversationID string) (domain.TopicContext, error) {
	if f.loadErr != nil {
		return domain.TopicContext{}, f.loadErr
	}
	return f.stored[conversationID], nil
}

func (f *topicStoreFake) Save(_ context.Context, topic domain.TopicContext) error {
	f.saves++
	f.stored[topic.ConversationID] = topic
	return nil
}

func corpusCandidates(prefix string, n int) []domain.Candidate {
	out := make([]domain.Candidate, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Candidate{
			ID:       prefix + "-" + string(rune('a'+i)),
			Text:     "testo sulla rottamazione delle cartelle",
			Metadata: domain.CandidateMetadata{DocumentID: "doc-" + prefix},
		})
	}
	return out
}

func testFusion() FusionConfig {
	return FusionConfig{
		Weights: map[domain.BackendKind]float64{
			domain.BackendLexical:   0.3,
			domain.BackendVector:    0.3,
			domain.BackendHyde:      0.2,
			domain.BackendAuthority: 0.1,
			domain.BackendWeb:       0.1,
		},
		ReservedWebSlots: 2,
	}
}

func newEngine(
	t *testing.T,
	embedder ports.Embedder,
	store ports.TopicStore,
	backends ...ports.RetrievalBackend,
) *RetrieveUseCase {
	t.Helper()
	uc, err := NewRetrieveUseCase(
		&extractorFake{keywords: []string{"rottamazione", "quinquies"}},
		embedder,
		&hydeFake{},
		store,
		backends,
		RetrieveOptions{Fusion: testFusion()},
		slog.Default(),
	)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return uc
}

func TestRetrieveEmptyQueryRejected(t *testing.T) {
	uc := newEngine(t, &embedderFake{}, newTopicStoreFake(),
		&backendFake{kind: domain.BackendLexical})

	_, err := uc.Retrieve(context.Background(), ports.RetrieveRequest{Query: "   ", ConversationID: "c1"})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestRetrieveDegradedOnVectorFailureStillReturnsResults(t *testing.T) {
	lexical := &backendFake{kind: domain.BackendLexical, candidates: corpusCandidates("lex", 3)}
	vector := &backendFake{kind: domain.BackendVector, err: errors.New("embedding upstream down")}
	uc := newEngine(t, &embedderFake{}, newTopicStoreFake(), lexical, vector)

	result, err := uc.Retrieve(context.Background(), ports.RetrieveRequest{
		Query:          "rottamazione quinquies requisiti",
		ConversationID: "c1",
		TurnIndex:      1,
		TopK:           10,
	})
	if err != nil {
		t.Fatalf("vector failure must not fail the call: %v", err)
	}
	if len(result.Results) == 0 {
		t.Fatal("expected ranked results from the surviving backends")
	}
	if !result.Degraded {
		t.Fatal("response must be tagged reduced-recall")
	}
}

func TestRetrieveAllBackendsFailed(t *testing.T) {
	lexical := &backendFake{kind: domain.BackendLexical, err: errors.New("pg down")}
	vector := &backendFake{kind: domain.BackendVector, err: errors.New("qdrant down")}
	uc := newEngine(t, &embedderFake{}, newTopicStoreFake(), lexical, vector)

	result, err := uc.Retrieve(context.Background(), ports.RetrieveRequest{
		Query:          "rottamazione quinquies",
		ConversationID: "c1",
		TurnIndex:      1,
	})
	if !domain.IsKind(err, domain.ErrRetrievalUnavailable) {
		t.Fatalf("expected retrieval unavailable, got %v", err)
	}
	if result != nil {
		t.Fatal("no partial success value on total failure")
	}
}

func TestRetrieveEmbeddingFailureSkipsSemanticBackends(t *testing.T) {
	lexical := &backendFake{kind: domain.BackendLexical, candidates: corpusCandidates("lex", 2)}
	vector := &backendFake{kind: domain.BackendVector, candidates: corpusCandidates("vec", 2)}
	embedder := &embedderFake{err: errors.New("embed service 503")}
	uc := newEngine(t, embedder, newTopicStoreFake(), lexical, vector)

	result, err := uc.Retrieve(context.Background(), ports.RetrieveRequest{
		Query:          "rottamazione quinquies",
		ConversationID: "c1",
		TurnIndex:      1,
	})
	if err != nil {
		t.Fatalf("degraded call must still succeed: %v", err)
	}
	if vector.calls != 0 {
		t.Fatal("vector backend must not be dispatched without a query vector")
	}
	if !result.Degraded {
		t.Fatal("embedding failure must mark the response degraded")
	}
}

func TestRetrieveRecoversAfterEmbeddingSuccess(t *testing.T) {
	lexical := &backendFake{kind: domain.BackendLexical, candidates: corpusCandidates("lex", 2)}
	vector := &backendFake{kind: domain.BackendVector, candidates: corpusCandidates("vec", 2)}
	embedder := &embedderFake{err: errors.New("embed service 503")}
	uc := newEngine(t, embedder, newTopicStoreFake(), lexical, vector)

	if _, err := uc.Retrieve(context.Background(), ports.RetrieveRequest{
		Query: "rottamazione quinquies", ConversationID: "c1", TurnIndex: 1,
	}); err != nil {
		t.Fatalf("first turn: %v", err)
	}

	// Embedding service comes back: the very next call must recover.
	embedder.err = nil
	result, err := uc.Retrieve(context.Background(), ports.RetrieveRequest{
		Query: "rottamazione quinquies", ConversationID: "c1", TurnIndex: 2,
	})
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if result.Degraded {
		t.Fatal("successful embedding call must restore normal mode without manual reset")
	}
	if vector.calls == 0 {
		t.Fatal("vector backend must be dispatched again after recovery")
	}
}

func TestRetrieveTopicContinuityAcrossTurns(t *testing.T) {
	store := newTopicStoreFake()
	lexical := &backendFake{kind: domain.BackendLexical, candidates: corpusCandidates("lex", 2)}

	extractor := &extractorFake{keywords: []string{"rottamazione", "quinquies"}}
	uc, err := NewRetrieveUseCase(extractor, &embedderFake{}, &hydeFake{}, store,
		[]ports.RetrievalBackend{lexical}, RetrieveOptions{Fusion: testFusion()}, slog.Default())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	if _, err := uc.Retrieve(context.Background(), ports.RetrieveRequest{
		Query: "come funziona la rottamazione quinquies", ConversationID: "c1", TurnIndex: 1,
	}); err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	if store.saves != 1 {
		t.Fatalf("turn 1 must persist the topic once, saves=%d", store.saves)
	}

	// Later turns extract a different keyword set; the stored topic wins.
	extractor.keywords = []string{"cartelle"}
	var last *ports.RetrievalResult
	for turn := 2; turn <= 5; turn++ {
		last, err = uc.Retrieve(context.Background(), ports.RetrieveRequest{
			Query: "e per le cartelle già rottamate?", ConversationID: "c1", TurnIndex: turn,
		})
		if err != nil {
			t.Fatalf("turn %d: %v", turn, err)
		}
	}

	if store.saves != 1 {
		t.Fatalf("later turns must not overwrite the stored topic, saves=%d", store.saves)
	}
	got := last.Topic.Keywords
	if len(got) != 2 || got[0] != "rottamazione" || got[1] != "quinquies" {
		t.Fatalf("topic drifted by turn 5: %v", got)
	}
}

func TestRetrieveCorruptedTopicResetsAndReextracts(t *testing.T) {
	store := newTopicStoreFake()
	store.loadErr = domain.WrapError(domain.ErrTopicContextCorrupted, "load topic", errors.New("not a list"))
	lexical := &backendFake{kind: domain.BackendLexical, candidates: corpusCandidates("lex", 2)}
	uc := newEngine(t, &embedderFake{}, store, lexical)

	result, err := uc.Retrieve(context.Background(), ports.RetrieveRequest{
		Query: "rottamazione quinquies", ConversationID: "c1", TurnIndex: 3,
	})
	if err != nil {
		t.Fatalf("corrupted topic must never be fatal: %v", err)
	}
	if result.Topic.Empty() {
		t.Fatal("topic must be re-extracted after a corrupted load")
	}
}

func TestRetrieveReservedWebSlots(t *testing.T) {
	lexical := &backendFake{kind: domain.BackendLexical, candidates: corpusCandidates("lex", 12)}
	var webCandidates []domain.Candidate
	for i := 0; i < 3; i++ {
		webCandidates = append(webCandidates, domain.Candidate{
			ID:   "https://example.it/rottamazione-" + string(rune('a'+i)),
			Text: "rottamazione quinquies spiegata",
			Metadata: domain.CandidateMetadata{
				IsWebResult:  true,
				DocumentType: domain.DocTypeWebPage,
			},
		})
	}
	web := &backendFake{kind: domain.BackendWeb, candidates: webCandidates}
	uc := newEngine(t, &embedderFake{}, newTopicStoreFake(), lexical, web)

	result, err := uc.Retrieve(context.Background(), ports.RetrieveRequest{
		Query: "rottamazione quinquies", ConversationID: "c1", TurnIndex: 1, TopK: 10,
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(result.Results) != 10 {
		t.Fatalf("expected 10 results, got %d", len(result.Results))
	}
	webCount := 0
	for _, r := range result.Results {
		if r.Candidate.Metadata.IsWebResult {
			webCount++
		}
	}
	if webCount != 2 {
		t.Fatalf("expected exactly 2 web results in the top-K, got %d", webCount)
	}
}
