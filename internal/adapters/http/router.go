// Package httpadapter exposes the retrieval engine over a small JSON API.
// The adapter owns the response cache: the engine itself stays cache-free
// so that cache policy can change without touching ranking semantics.
package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/fiscora/retrieval-engine/internal/core/ports"
)

type CacheLookupRecorder interface {
	RecordCacheLookup(service string, hit bool)
}

type Router struct {
	retriever  ports.PassageRetriever
	keyDeriver ports.CacheKeyDeriver
	cache      ports.Cache
	epochs     ports.EpochProvider

	service         string
	modelID         string
	temperature     float64
	templateVersion string
	cacheTTL        time.Duration

	metricsHandler http.Handler
	cacheRecorder  CacheLookupRecorder

	rateLimitRPS   float64
	rateLimitBurst int
	maxInFlight    int
	defaultTopK    int
}

type RouterOptions struct {
	Service         string
	ModelID         string
	Temperature     float64
	TemplateVersion string
	CacheTTL        time.Duration

	Cache      ports.Cache
	Epochs     ports.EpochProvider
	KeyDeriver ports.CacheKeyDeriver

	MetricsHandler http.Handler
	CacheRecorder  CacheLookupRecorder

	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
	DefaultTopK    int
}

func NewRouter(retriever ports.PassageRetriever, options RouterOptions) *Router {
	return &Router{
		retriever:       retriever,
		keyDeriver:      options.KeyDeriver,
		cache:           options.Cache,
		epochs:          options.Epochs,
		service:         options.Service,
		modelID:         options.ModelID,
		temperature:     options.Temperature,
		templateVersion: options.TemplateVersion,
		cacheTTL:        options.CacheTTL,
		metricsHandler:  options.MetricsHandler,
		cacheRecorder:   options.CacheRecorder,
		rateLimitRPS:    options.RateLimitRPS,
		rateLimitBurst:  options.RateLimitBurst,
		maxInFlight:     options.MaxInFlight,
		defaultTopK:     options.DefaultTopK,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/retrieve", rt.retrieve)
	if rt.metricsHandler != nil {
		mux.Handle("/metrics", rt.metricsHandler)
	}

	var handler http.Handler = mux
	if rt.maxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.maxInFlight, 50*time.Millisecond)
	}
	if rt.rateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type retrieveRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id"`
	TurnIndex      int    `json:"turn_index"`
	TopK           int    `json:"top_k"`
}

type retrieveResponse struct {
	Results       []resultPayload `json:"results"`
	TopicKeywords []string        `json:"topic_keywords"`
	Degraded      bool            `json:"degraded"`
	CacheKey      string          `json:"cache_key"`
}

type resultPayload struct {
	ID             string  `json:"id"`
	Rank           int     `json:"rank"`
	Score          float64 `json:"score"`
	Text           string  `json:"text"`
	DocumentID     string  `json:"document_id,omitempty"`
	Title          string  `json:"title,omitempty"`
	AuthorityClass int     `json:"authority_class"`
	DocumentType   string  `json:"document_type,omitempty"`
	URL            string  `json:"url,omitempty"`
	WebResult      bool    `json:"web_result"`
	Backend        string  `json:"backend"`
}

func (rt *Router) retrieve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}
	if req.TopK <= 0 {
		req.TopK = rt.defaultTopK
	}

	cacheKey := rt.deriveKey(req.Query)
	if cached, ok := rt.cacheLookup(r, cacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", "hit")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(cached)
		return
	}

	result, err := rt.retriever.Retrieve(r.Context(), ports.RetrieveRequest{
		Query:          req.Query,
		ConversationID: req.ConversationID,
		TurnIndex:      req.TurnIndex,
		TopK:           req.TopK,
	})
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	response := buildRetrieveResponse(result, cacheKey)
	body, err := json.Marshal(response)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "encode response"})
		return
	}

	// Degraded responses are not cached: they would keep serving the
	// reduced result set after the embedding service recovers.
	if rt.cache != nil && cacheKey != "" && !result.Degraded {
		_ = rt.cache.Set(r.Context(), cacheKey, body, rt.cacheTTL)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "miss")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (rt *Router) deriveKey(query string) string {
	if rt.keyDeriver == nil || rt.epochs == nil {
		return ""
	}
	return rt.keyDeriver.DeriveCacheKey(ports.CacheKeyInputs{
		NormalizedQuery: query,
		ModelID:         rt.modelID,
		Temperature:     rt.temperature,
		CorpusEpoch:     rt.epochs.Current(),
		TemplateVersion: rt.templateVersion,
	})
}

func (rt *Router) cacheLookup(r *http.Request, cacheKey string) ([]byte, bool) {
	if rt.cache == nil || cacheKey == "" {
		return nil, false
	}
	cached, ok := rt.cache.Get(r.Context(), cacheKey)
	if rt.cacheRecorder != nil {
		rt.cacheRecorder.RecordCacheLookup(rt.service, ok)
	}
	return cached, ok
}

func buildRetrieveResponse(result *ports.RetrievalResult, cacheKey string) retrieveResponse {
	response := retrieveResponse{
		Results:       make([]resultPayload, 0, len(result.Results)),
		TopicKeywords: append([]string(nil), result.Topic.Keywords...),
		Degraded:      result.Degraded,
		CacheKey:      cacheKey,
	}
	for _, fused := range result.Results {
		response.Results = append(response.Results, resultPayload{
			ID:             fused.Candidate.ID,
			Rank:           fused.Rank,
			Score:          fused.FusedScore,
			Text:           fused.Candidate.Text,
			DocumentID:     fused.Candidate.Metadata.DocumentID,
			Title:          fused.Candidate.Metadata.Title,
			AuthorityClass: int(fused.Candidate.Metadata.AuthorityClass),
			DocumentType:   string(fused.Candidate.Metadata.DocumentType),
			URL:            fused.Candidate.Metadata.URL,
			WebResult:      fused.Candidate.Metadata.IsWebResult,
			Backend:        string(fused.Candidate.SourceBackend),
		})
	}
	return response
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
