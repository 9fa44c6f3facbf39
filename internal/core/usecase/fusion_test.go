package usecase

import (
	"fmt"
	"math"
	"testing"

	"github.com/fiscora/retrieval-engine/internal/core/domain"
)

func TestFusionConfigValidateRejectsBadWeightSum(t *testing.T) {
	cfg := FusionConfig{Weights: map[domain.BackendKind]float64{
		domain.BackendLexical: 0.5,
		domain.BackendVector:  0.4,
	}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for weight sum 0.9")
	}

	cfg.Weights[domain.BackendVector] = 0.5
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestFuseCandidatesWeightedSumScenario(t *testing.T) {
	// lexical 0.8 at weight 0.5 plus vector 0.6 at weight 0.35 must fuse
	// to exactly 0.61.
	results := map[domain.BackendKind][]domain.Candidate{
		domain.BackendLexical: {{ID: "chunk-1", SourceBackend: domain.BackendLexical, NormalizedScore: 0.8}},
		domain.BackendVector:  {{ID: "chunk-1", SourceBackend: domain.BackendVector, NormalizedScore: 0.6}},
	}
	weights := map[domain.BackendKind]float64{
		domain.BackendLexical: 0.5,
		domain.BackendVector:  0.35,
	}

	fused := fuseCandidates(results, weights)
	if len(fused) != 1 {
		t.Fatalf("expected 1 fused candidate, got %d", len(fused))
	}
	if math.Abs(fused[0].FusedScore-0.61) > 1e-12 {
		t.Fatalf("expected fused score 0.61, got %.12f", fused[0].FusedScore)
	}
}

func TestFuseCandidatesDeduplicatesByChunkID(t *testing.T) {
	results := map[domain.BackendKind][]domain.Candidate{
		domain.BackendLexical: {
			{ID: "doc-1:0", NormalizedScore: 0.9, Metadata: domain.CandidateMetadata{DocumentID: "doc-1"}},
			{ID: "doc-1:1", NormalizedScore: 0.8, Metadata: domain.CandidateMetadata{DocumentID: "doc-1"}},
		},
		domain.BackendVector: {
			{ID: "doc-1:0", NormalizedScore: 0.7, Metadata: domain.CandidateMetadata{DocumentID: "doc-1"}},
		},
	}
	weights := map[domain.BackendKind]float64{domain.BackendLexical: 0.5, domain.BackendVector: 0.5}

	fused := fuseCandidates(results, weights)
	// Chunk-level dedup: two chunks of the same document both survive.
	if len(fused) != 2 {
		t.Fatalf("expected 2 fused candidates, got %d", len(fused))
	}
	seen := make(map[string]bool)
	for _, r := range fused {
		if seen[r.Candidate.ID] {
			t.Fatalf("duplicate id in output: %s", r.Candidate.ID)
		}
		seen[r.Candidate.ID] = true
	}
}

func TestFuseCandidatesSameBackendDuplicateTakesMax(t *testing.T) {
	results := map[domain.BackendKind][]domain.Candidate{
		domain.BackendLexical: {
			{ID: "chunk-1", NormalizedScore: 0.4},
			{ID: "chunk-1", NormalizedScore: 0.9},
		},
	}
	weights := map[domain.BackendKind]float64{domain.BackendLexical: 1.0}

	fused := fuseCandidates(results, weights)
	if len(fused) != 1 {
		t.Fatalf("expected 1 fused candidate, got %d", len(fused))
	}
	if math.Abs(fused[0].FusedScore-0.9) > 1e-12 {
		t.Fatalf("duplicate emissions from one backend must take max, got %.4f", fused[0].FusedScore)
	}
}

func TestFuseCandidatesAppliesAuthorityMultiplierBeforeMixing(t *testing.T) {
	results := map[domain.BackendKind][]domain.Candidate{
		domain.BackendLexical: {
			{ID: "official", NormalizedScore: 0.5, Metadata: domain.CandidateMetadata{
				AuthorityClass: domain.AuthorityOfficial,
				DocumentType:   domain.DocTypePrimaryLaw,
			}},
			{ID: "commentary", NormalizedScore: 0.5, Metadata: domain.CandidateMetadata{
				AuthorityClass: domain.AuthorityCommunity,
				DocumentType:   domain.DocTypeCommentary,
			}},
		},
	}
	weights := map[domain.BackendKind]float64{domain.BackendLexical: 1.0}

	fused := fuseCandidates(results, weights)
	if fused[0].Candidate.ID != "official" {
		t.Fatalf("primary law from an official source must outrank commentary, got %s first", fused[0].Candidate.ID)
	}
	if fused[0].FusedScore <= fused[1].FusedScore {
		t.Fatal("authority multiplier did not separate the scores")
	}
}

func TestFuseCandidatesDeterministicTieBreak(t *testing.T) {
	results := map[domain.BackendKind][]domain.Candidate{
		domain.BackendLexical: {
			{ID: "chunk-b", NormalizedScore: 0.5},
			{ID: "chunk-a", NormalizedScore: 0.5},
			{ID: "chunk-c", NormalizedScore: 0.5, Metadata: domain.CandidateMetadata{AuthorityClass: domain.AuthorityOfficial}},
		},
	}
	weights := map[domain.BackendKind]float64{domain.BackendLexical: 1.0}

	for i := 0; i < 10; i++ {
		fused := fuseCandidates(results, weights)
		if fused[0].Candidate.ID != "chunk-c" {
			t.Fatalf("run %d: authority class must break ties first, got %s", i, fused[0].Candidate.ID)
		}
		if fused[1].Candidate.ID != "chunk-a" || fused[2].Candidate.ID != "chunk-b" {
			t.Fatalf("run %d: id ascending tie-break violated: %s, %s", i, fused[1].Candidate.ID, fused[2].Candidate.ID)
		}
	}
}

func TestSelectTopKReservedWebSlots(t *testing.T) {
	var ranked []domain.FusedResult
	for i := 0; i < 15; i++ {
		ranked = append(ranked, domain.FusedResult{
			Candidate:  domain.Candidate{ID: fmt.Sprintf("corpus-%02d", i)},
			FusedScore: 1.0 - float64(i)*0.01,
		})
	}
	// Web candidates score far below the naive top-10.
	for i := 0; i < 3; i++ {
		ranked = append(ranked, domain.FusedResult{
			Candidate: domain.Candidate{
				ID:       fmt.Sprintf("web-%02d", i),
				Metadata: domain.CandidateMetadata{IsWebResult: true},
			},
			FusedScore: 0.1 - float64(i)*0.01,
		})
	}
	sortFused(ranked)

	out := selectTopK(ranked, 10, 2)
	if len(out) != 10 {
		t.Fatalf("expected 10 results, got %d", len(out))
	}
	webCount := 0
	for _, r := range out {
		if r.Candidate.Metadata.IsWebResult {
			webCount++
		}
	}
	if webCount != 2 {
		t.Fatalf("expected exactly 2 reserved web slots, got %d", webCount)
	}
	for i, r := range out {
		if r.Rank != i+1 {
			t.Fatalf("rank must be 1-based and dense, got %d at position %d", r.Rank, i)
		}
	}
}

func TestSelectTopKFewerWebThanReserved(t *testing.T) {
	ranked := []domain.FusedResult{
		{Candidate: domain.Candidate{ID: "corpus-1"}, FusedScore: 0.9},
		{Candidate: domain.Candidate{ID: "web-1", Metadata: domain.CandidateMetadata{IsWebResult: true}}, FusedScore: 0.1},
	}

	out := selectTopK(ranked, 10, 2)
	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}
}

func TestNormalizeCandidatesLexicalRankDecay(t *testing.T) {
	candidates := []domain.Candidate{
		{ID: "a", RawScore: 42.0},
		{ID: "b", RawScore: 17.0},
		{ID: "c", RawScore: 3.0},
	}
	normalizeCandidates(domain.BackendLexical, candidates)

	if candidates[0].NormalizedScore != 1.0 {
		t.Fatalf("first lexical hit must normalize to 1.0, got %.4f", candidates[0].NormalizedScore)
	}
	for i := 1; i < len(candidates); i++ {
		if candidates[i].NormalizedScore >= candidates[i-1].NormalizedScore {
			t.Fatal("lexical normalization must decay with position")
		}
		if candidates[i].NormalizedScore < 0 || candidates[i].NormalizedScore > 1 {
			t.Fatalf("normalized score out of range: %.4f", candidates[i].NormalizedScore)
		}
	}
}

func TestNormalizeCandidatesAuthorityUnboundedScore(t *testing.T) {
	candidates := []domain.Candidate{{ID: "a", RawScore: 250.0}, {ID: "b", RawScore: -3.0}}
	normalizeCandidates(domain.BackendAuthority, candidates)
	if candidates[0].NormalizedScore <= 0 || candidates[0].NormalizedScore > 1 {
		t.Fatalf("authority score must land in (0,1], got %.4f", candidates[0].NormalizedScore)
	}
	if candidates[1].NormalizedScore != 0 {
		t.Fatalf("negative raw score must normalize to 0, got %.4f", candidates[1].NormalizedScore)
	}
}

func TestEffectiveWeightsRenormalizesDegradedSet(t *testing.T) {
	cfg := FusionConfig{Weights: map[domain.BackendKind]float64{
		domain.BackendLexical:   0.3,
		domain.BackendVector:    0.35,
		domain.BackendHyde:      0.25,
		domain.BackendAuthority: 0.1,
	}}

	weights := effectiveWeights(cfg, []domain.BackendKind{domain.BackendLexical, domain.BackendAuthority})
	sum := weights[domain.BackendLexical] + weights[domain.BackendAuthority]
	if math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("renormalized weights must sum to 1.0, got %.6f", sum)
	}
	if weights[domain.BackendLexical] <= weights[domain.BackendAuthority] {
		t.Fatal("relative weight order must be preserved")
	}
}
