// Package web adapts a metasearch JSON API (SearxNG-compatible) as the
// open-web retrieval backend. The upstream is shared and rate limited, so
// every deployment runs the client behind a token bucket.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/fiscora/retrieval-engine/internal/core/domain"
)

type Searcher struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type Options struct {
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

func NewSearcher(baseURL string, options Options) *Searcher {
	rps := options.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := options.Burst
	if burst <= 0 {
		burst = 2
	}
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Searcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (s *Searcher) Kind() domain.BackendKind { return domain.BackendWeb }

func (s *Searcher) Search(ctx context.Context, query domain.Query, limit int) ([]domain.Candidate, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("web search rate limit: %w", err)
	}

	searchURL := fmt.Sprintf("%s/search?q=%s&format=json",
		s.baseURL, url.QueryEscape(buildWebQuery(query)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create web search request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(body)); msg != "" {
			return nil, fmt.Errorf("web search status: %s: %s", resp.Status, msg)
		}
		return nil, fmt.Errorf("web search status: %s", resp.Status)
	}

	var searchResp struct {
		Results []struct {
			URL         string `json:"url"`
			Title       string `json:"title"`
			Content     string `json:"content"`
			PublishedAt string `json:"publishedDate"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode web search response: %w", err)
	}

	out := make([]domain.Candidate, 0, limit)
	for _, r := range searchResp.Results {
		if len(out) >= limit {
			break
		}
		if r.URL == "" {
			continue
		}
		candidate := domain.Candidate{
			ID:            r.URL,
			SourceBackend: domain.BackendWeb,
			Text:          stripHTML(r.Content),
			Metadata: domain.CandidateMetadata{
				Title:        stripHTML(r.Title),
				URL:          r.URL,
				DocumentType: domain.DocTypeWebPage,
				IsWebResult:  true,
			},
		}
		if r.PublishedAt != "" {
			if parsed, err := time.Parse(time.RFC3339, r.PublishedAt); err == nil {
				candidate.Metadata.PublishedAt = parsed.UTC()
			}
		}
		out = append(out, candidate)
	}
	return out, nil
}

// buildWebQuery prefers the keyword core of the question plus the topic
// expansions; raw conversational phrasing retrieves poorly from web APIs.
func buildWebQuery(query domain.Query) string {
	parts := make([]string, 0, 2+len(query.SemanticExpansions))
	if query.EntityQuery != "" {
		parts = append(parts, query.EntityQuery)
	} else {
		parts = append(parts, query.LexicalQuery)
	}
	parts = append(parts, query.SemanticExpansions...)
	return strings.TrimSpace(strings.Join(parts, " "))
}

// stripHTML flattens snippet markup to plain text; metasearch engines
// return highlighted fragments with embedded tags.
func stripHTML(fragment string) string {
	if !strings.ContainsRune(fragment, '<') {
		return strings.TrimSpace(fragment)
	}

	tokenizer := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt == html.TextToken {
			b.Write(tokenizer.Text())
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
