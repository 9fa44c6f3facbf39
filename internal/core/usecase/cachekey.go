package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/fiscora/retrieval-engine/internal/core/ports"
)

// cacheKeyVersion is bumped whenever the canonical string layout changes,
// invalidating every previously derived key.
const cacheKeyVersion = "v1"

// DeriveCacheKey hashes only stable, low-cardinality inputs. The retrieved
// chunk set, its order and per-run scores are excluded on purpose: keying
// on any of them collapses the hit rate toward zero because retrieval
// output varies run to run for the same logical query.
func DeriveCacheKey(in ports.CacheKeyInputs) string {
	canonical := strings.Join([]string{
		cacheKeyVersion,
		normalizeForKey(in.NormalizedQuery),
		in.ModelID,
		fmt.Sprintf("%.4f", in.Temperature),
		fmt.Sprintf("%d", in.CorpusEpoch),
		in.TemplateVersion,
	}, "\x1f")

	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

func normalizeForKey(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
