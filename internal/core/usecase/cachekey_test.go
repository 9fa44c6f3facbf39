package usecase

import (
	"testing"

	"github.com/fiscora/retrieval-engine/internal/core/ports"
)

func TestDeriveCacheKeyStableAcrossRetrievalVariance(t *testing.T) {
	in := ports.CacheKeyInputs{
		NormalizedQuery: "rottamazione quinquies requisiti",
		ModelID:         "answers-v2",
		Temperature:     0.2,
		CorpusEpoch:     41,
		TemplateVersion: "t3",
	}

	// The retrieved document set is not an input: two runs of the same
	// logical query must produce the identical key regardless of what
	// retrieval returned.
	first := DeriveCacheKey(in)
	second := DeriveCacheKey(in)
	if first != second {
		t.Fatal("identical inputs produced different keys")
	}
	if len(first) != 64 {
		t.Fatalf("expected hex sha-256 key, got %q", first)
	}
}

func TestDeriveCacheKeyChangesWithEachInput(t *testing.T) {
	base := ports.CacheKeyInputs{
		NormalizedQuery: "rottamazione quinquies requisiti",
		ModelID:         "answers-v2",
		Temperature:     0.2,
		CorpusEpoch:     41,
		TemplateVersion: "t3",
	}
	baseKey := DeriveCacheKey(base)

	variants := []ports.CacheKeyInputs{base, base, base, base, base}
	variants[0].NormalizedQuery = "altro quesito"
	variants[1].ModelID = "answers-v3"
	variants[2].Temperature = 0.7
	variants[3].CorpusEpoch = 42
	variants[4].TemplateVersion = "t4"

	for i, v := range variants {
		if DeriveCacheKey(v) == baseKey {
			t.Fatalf("variant %d did not change the key", i)
		}
	}
}

func TestDeriveCacheKeyNormalizesQueryText(t *testing.T) {
	a := DeriveCacheKey(ports.CacheKeyInputs{NormalizedQuery: "  Rottamazione   Quinquies "})
	b := DeriveCacheKey(ports.CacheKeyInputs{NormalizedQuery: "rottamazione quinquies"})
	if a != b {
		t.Fatal("whitespace and casing must not change the key")
	}
}
