package usecase

import (
	"fmt"
	"math"
	"sort"

	"github.com/fiscora/retrieval-engine/internal/core/domain"
)

// FusionConfig is the weighted-fusion configuration. Weights cover the
// enabled backend set and must sum to 1.0; Validate runs at startup.
type FusionConfig struct {
	Weights          map[domain.BackendKind]float64
	ReservedWebSlots int
}

const weightSumTolerance = 1e-9

func (c FusionConfig) Validate() error {
	if len(c.Weights) == 0 {
		return fmt.Errorf("fusion weights: empty weight vector")
	}
	sum := 0.0
	for kind, w := range c.Weights {
		if !kind.Valid() {
			return fmt.Errorf("fusion weights: unknown backend %q", kind)
		}
		if w < 0 {
			return fmt.Errorf("fusion weights: negative weight for %s", kind)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("fusion weights: sum %.6f, want 1.0", sum)
	}
	if c.ReservedWebSlots < 0 {
		return fmt.Errorf("fusion weights: negative reserved web slots")
	}
	return nil
}

// effectiveWeights renormalizes the configured vector over the backends
// actually dispatched, so degraded-mode fusion still mixes to 1.0.
func effectiveWeights(cfg FusionConfig, enabled []domain.BackendKind) map[domain.BackendKind]float64 {
	out := make(map[domain.BackendKind]float64, len(enabled))
	sum := 0.0
	for _, kind := range enabled {
		if w, ok := cfg.Weights[kind]; ok {
			out[kind] = w
			sum += w
		}
	}
	if sum <= 0 {
		return out
	}
	for kind := range out {
		out[kind] /= sum
	}
	return out
}

// Rank-decay constant for backends whose native score is a position, not a
// calibrated similarity.
const rankDecay = 0.1

// normalizeCandidates maps each backend's native score onto [0,1] in place.
// Raw scores from different backends are never comparable; fusion consumes
// only the normalized value.
func normalizeCandidates(kind domain.BackendKind, candidates []domain.Candidate) {
	switch kind {
	case domain.BackendVector, domain.BackendHyde:
		// Cosine similarity, already near [0,1].
		for i := range candidates {
			candidates[i].NormalizedScore = clamp01(candidates[i].RawScore)
		}
	case domain.BackendLexical, domain.BackendWeb:
		// Position-based decay over the returned order.
		for i := range candidates {
			candidates[i].NormalizedScore = 1.0 / (1.0 + rankDecay*float64(i))
		}
	case domain.BackendAuthority:
		// Fulltext relevance scaled by citation weight, unbounded above.
		for i := range candidates {
			s := candidates[i].RawScore
			if s < 0 {
				s = 0
			}
			candidates[i].NormalizedScore = clamp01(s / (s + 1.0))
		}
	default:
		for i := range candidates {
			candidates[i].NormalizedScore = clamp01(candidates[i].RawScore)
		}
	}
}

// authorityMultiplier scales a candidate by source authority crossed with
// document type. Applied to the normalized score before the weighted sum,
// with the product capped at 1.0.
func authorityMultiplier(class domain.AuthorityClass, docType domain.DocumentType) float64 {
	classBoost := 1.0
	switch class {
	case domain.AuthorityOfficial:
		classBoost = 1.30
	case domain.AuthorityScholarly:
		classBoost = 1.15
	case domain.AuthorityPress:
		classBoost = 1.05
	}

	typeBoost := 1.0
	switch docType {
	case domain.DocTypePrimaryLaw:
		typeBoost = 1.20
	case domain.DocTypeCaseLaw:
		typeBoost = 1.10
	case domain.DocTypeCircular:
		typeBoost = 1.05
	}

	return classBoost * typeBoost
}

type fusedAccumulator struct {
	candidate domain.Candidate
	// Max normalized contribution per backend: duplicate emissions of one
	// id by the same backend never sum.
	perBackend map[domain.BackendKind]float64
}

// normalizeAll runs the per-backend normalization over a settled result map.
func normalizeAll(results map[domain.BackendKind][]domain.Candidate) {
	for kind, candidates := range results {
		normalizeCandidates(kind, candidates)
	}
}

// fuseCandidates merges a settled, already normalized backend map into one
// deduplicated, ordered list. Dedup is chunk-level by id: collapsing at
// document granularity hides distinct passages of one document and is
// deliberately not done here. Across backends the weighted contributions
// for one id sum.
func fuseCandidates(
	results map[domain.BackendKind][]domain.Candidate,
	weights map[domain.BackendKind]float64,
) []domain.FusedResult {
	acc := make(map[string]*fusedAccumulator)

	// Iterate kinds in fixed order so map traversal never influences which
	// duplicate's metadata survives.
	for _, kind := range domain.AllBackends {
		candidates, ok := results[kind]
		if !ok {
			continue
		}
		for _, candidate := range candidates {
			if candidate.ID == "" {
				continue
			}
			boosted := clamp01(candidate.NormalizedScore *
				authorityMultiplier(candidate.Metadata.AuthorityClass, candidate.Metadata.DocumentType))

			entry, seen := acc[candidate.ID]
			if !seen {
				entry = &fusedAccumulator{
					candidate:  candidate,
					perBackend: make(map[domain.BackendKind]float64, 2),
				}
				acc[candidate.ID] = entry
			} else {
				entry.candidate = preferRicherCandidate(entry.candidate, candidate)
			}
			if boosted > entry.perBackend[kind] {
				entry.perBackend[kind] = boosted
			}
		}
	}

	out := make([]domain.FusedResult, 0, len(acc))
	for _, entry := range acc {
		fused := 0.0
		for kind, contribution := range entry.perBackend {
			fused += weights[kind] * contribution
		}
		out = append(out, domain.FusedResult{Candidate: entry.candidate, FusedScore: fused})
	}

	sortFused(out)
	return out
}

// sortFused orders by fused score descending with the stable tie-break:
// authority class descending, then id ascending.
func sortFused(results []domain.FusedResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].FusedScore != results[j].FusedScore {
			return results[i].FusedScore > results[j].FusedScore
		}
		ai, aj := results[i].Candidate.Metadata.AuthorityClass, results[j].Candidate.Metadata.AuthorityClass
		if ai != aj {
			return ai > aj
		}
		return results[i].Candidate.ID < results[j].Candidate.ID
	})
}

// selectTopK applies reserved-slot allocation: the web class is guaranteed
// min(reserved, available) positions, the rest is filled in global fused
// order from the non-web candidates only.
func selectTopK(ranked []domain.FusedResult, topK, reservedWebSlots int) []domain.FusedResult {
	if topK <= 0 {
		return nil
	}

	var web, corpus []domain.FusedResult
	for _, r := range ranked {
		if r.Candidate.Metadata.IsWebResult {
			web = append(web, r)
		} else {
			corpus = append(corpus, r)
		}
	}

	reserved := reservedWebSlots
	if reserved > topK {
		reserved = topK
	}
	if reserved > len(web) {
		reserved = len(web)
	}

	out := make([]domain.FusedResult, 0, topK)
	out = append(out, web[:reserved]...)
	remaining := topK - reserved
	if remaining > len(corpus) {
		remaining = len(corpus)
	}
	out = append(out, corpus[:remaining]...)

	sortFused(out)
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// preferRicherCandidate keeps the entry with the most complete metadata when
// the same chunk id arrives from several backends.
func preferRicherCandidate(current, candidate domain.Candidate) domain.Candidate {
	if current.Text == "" && candidate.Text != "" {
		current.Text = candidate.Text
	}
	if current.Metadata.Title == "" && candidate.Metadata.Title != "" {
		current.Metadata.Title = candidate.Metadata.Title
	}
	if current.Metadata.DocumentID == "" && candidate.Metadata.DocumentID != "" {
		current.Metadata.DocumentID = candidate.Metadata.DocumentID
	}
	if current.Metadata.AuthorityClass == domain.AuthorityUnknown {
		current.Metadata.AuthorityClass = candidate.Metadata.AuthorityClass
	}
	if current.Metadata.DocumentType == "" && candidate.Metadata.DocumentType != "" {
		current.Metadata.DocumentType = candidate.Metadata.DocumentType
	}
	if current.Metadata.PublishedAt.IsZero() && !candidate.Metadata.PublishedAt.IsZero() {
		current.Metadata.PublishedAt = candidate.Metadata.PublishedAt
	}
	return current
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
