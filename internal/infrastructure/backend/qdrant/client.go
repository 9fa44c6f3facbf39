// Package qdrant adapts Qdrant's HTTP search API as the semantic retrieval
// backends (vector similarity and hypothetical-document). Indexing is owned
// by the ingestion pipeline; this client only searches.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fiscora/retrieval-engine/internal/core/domain"
)

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
}

func NewClient(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) searchByVector(
	ctx context.Context,
	vector []float32,
	limit int,
	sourceBackend domain.BackendKind,
) ([]domain.Candidate, error) {
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(body)); msg != "" {
			return nil, fmt.Errorf("qdrant search status: %s: %s", resp.Status, msg)
		}
		return nil, fmt.Errorf("qdrant search status: %s", resp.Status)
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]domain.Candidate, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		candidate := domain.Candidate{
			ID:            stringPayload(r.Payload, "chunk_id"),
			SourceBackend: sourceBackend,
			RawScore:      r.Score,
			Text:          stringPayload(r.Payload, "text"),
			Metadata: domain.CandidateMetadata{
				DocumentID:     stringPayload(r.Payload, "doc_id"),
				Title:          stringPayload(r.Payload, "title"),
				AuthorityClass: domain.AuthorityClass(intPayload(r.Payload, "authority_class")),
				DocumentType:   domain.DocumentType(stringPayload(r.Payload, "doc_type")),
			},
		}
		if ts := stringPayload(r.Payload, "published_at"); ts != "" {
			if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
				candidate.Metadata.PublishedAt = parsed.UTC()
			}
		}
		out = append(out, candidate)
	}
	return out, nil
}

func stringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func intPayload(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
