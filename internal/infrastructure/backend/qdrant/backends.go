package qdrant

import (
	"context"
	"errors"

	"github.com/fiscora/retrieval-engine/internal/core/domain"
)

// VectorBackend searches with the embedded raw query.
type VectorBackend struct {
	client *Client
}

func NewVectorBackend(client *Client) *VectorBackend {
	return &VectorBackend{client: client}
}

func (b *VectorBackend) Kind() domain.BackendKind { return domain.BackendVector }

func (b *VectorBackend) Search(ctx context.Context, query domain.Query, limit int) ([]domain.Candidate, error) {
	if len(query.QueryVector) == 0 {
		return nil, errors.New("vector search: missing query vector")
	}
	return b.client.searchByVector(ctx, query.QueryVector, limit, domain.BackendVector)
}

// HydeBackend searches with the embedding of a model-written hypothetical
// answer document instead of the raw question, which tends to land closer
// to answer-shaped corpus passages.
type HydeBackend struct {
	client *Client
}

func NewHydeBackend(client *Client) *HydeBackend {
	return &HydeBackend{client: client}
}

func (b *HydeBackend) Kind() domain.BackendKind { return domain.BackendHyde }

func (b *HydeBackend) Search(ctx context.Context, query domain.Query, limit int) ([]domain.Candidate, error) {
	if len(query.HydeVector) == 0 {
		return nil, errors.New("hyde search: missing hypothetical document vector")
	}
	return b.client.searchByVector(ctx, query.HydeVector, limit, domain.BackendHyde)
}
