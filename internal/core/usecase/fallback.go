package usecase

import "sync/atomic"

// FallbackState is the engine's degraded-mode indicator.
type FallbackState int32

const (
	FallbackNormal FallbackState = iota
	FallbackDegraded
)

func (s FallbackState) String() string {
	if s == FallbackDegraded {
		return "degraded"
	}
	return "normal"
}

// FallbackPolicy tracks embedding-path health across calls. Degraded mode
// means the semantic backends (vector, HyDE) are skipped and fusion weights
// are renormalized over the remaining backends. Recovery is automatic: the
// next successful embedding call flips the state back, no manual reset.
type FallbackPolicy struct {
	state atomic.Int32
}

func NewFallbackPolicy() *FallbackPolicy {
	return &FallbackPolicy{}
}

func (p *FallbackPolicy) State() FallbackState {
	return FallbackState(p.state.Load())
}

func (p *FallbackPolicy) Degraded() bool {
	return p.State() == FallbackDegraded
}

// RecordEmbeddingFailure enters degraded mode and reports whether this call
// caused the transition.
func (p *FallbackPolicy) RecordEmbeddingFailure() bool {
	return p.state.Swap(int32(FallbackDegraded)) == int32(FallbackNormal)
}

// RecordEmbeddingSuccess restores normal mode and reports whether this call
// recovered from a degraded state.
func (p *FallbackPolicy) RecordEmbeddingSuccess() bool {
	return p.state.Swap(int32(FallbackNormal)) == int32(FallbackDegraded)
}
