package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/fiscora/retrieval-engine/internal/core/domain"
	"github.com/fiscora/retrieval-engine/internal/core/ports"
)

// FanOutCoordinator issues every enabled backend concurrently, each under
// its own timeout, and assembles the settled result map afterwards. A slow
// or failing backend never blocks or fails the dispatch as a whole.
type FanOutCoordinator struct {
	perBackendTimeout time.Duration
}

func NewFanOutCoordinator(perBackendTimeout time.Duration) *FanOutCoordinator {
	if perBackendTimeout <= 0 {
		perBackendTimeout = 2 * time.Second
	}
	return &FanOutCoordinator{perBackendTimeout: perBackendTimeout}
}

type backendOutcome struct {
	kind       domain.BackendKind
	candidates []domain.Candidate
	err        error
}

// Dispatch runs all backends concurrently. The caller bounds the whole
// dispatch with a deadline on ctx; a backend still running past it is
// cancelled and recorded as a timeout. No goroutine writes shared state:
// each sends its outcome once, and the maps are assembled after all
// outcomes settle.
func (c *FanOutCoordinator) Dispatch(
	ctx context.Context,
	query domain.Query,
	backends []ports.RetrievalBackend,
	limit int,
) (map[domain.BackendKind][]domain.Candidate, map[domain.BackendKind]error) {
	results := make(map[domain.BackendKind][]domain.Candidate, len(backends))
	failures := make(map[domain.BackendKind]error, len(backends))
	if len(backends) == 0 {
		return results, failures
	}

	outcomes := make(chan backendOutcome, len(backends))
	for _, backend := range backends {
		go func(b ports.RetrievalBackend) {
			callCtx, cancel := context.WithTimeout(ctx, c.perBackendTimeout)
			defer cancel()

			candidates, err := b.Search(callCtx, query, limit)
			if err != nil {
				err = classifyDispatchError(b.Kind(), callCtx, err)
			}
			outcomes <- backendOutcome{kind: b.Kind(), candidates: candidates, err: err}
		}(backend)
	}

	for range backends {
		outcome := <-outcomes
		if outcome.err != nil {
			failures[outcome.kind] = outcome.err
			continue
		}
		results[outcome.kind] = outcome.candidates
	}
	return results, failures
}

func classifyDispatchError(kind domain.BackendKind, callCtx context.Context, err error) error {
	op := "dispatch " + string(kind)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return domain.WrapError(domain.ErrBackendTimeout, op, err)
	}
	if domain.IsKind(err, domain.ErrBackendTimeout) || domain.IsKind(err, domain.ErrBackendUnavailable) {
		return err
	}
	return domain.WrapError(domain.ErrBackendUnavailable, op, err)
}
