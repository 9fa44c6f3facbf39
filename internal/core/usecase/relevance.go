package usecase

import (
	"strings"

	"github.com/fiscora/retrieval-engine/internal/core/domain"
)

// filterByRelevance drops candidates that have drifted off the established
// conversation subject. Web results are noisier than corpus hits, so once
// the topic holds at least two keywords a web candidate must match every
// topic keyword to survive. Corpus candidates already carry a lexical or
// semantic relevance signal from their backend and only need to match one
// query-level keyword.
func filterByRelevance(
	results []domain.FusedResult,
	topic domain.TopicContext,
	queryKeywords []string,
) []domain.FusedResult {
	strictTopic := len(topic.Keywords) >= 2

	out := results[:0]
	for _, r := range results {
		if r.Candidate.Metadata.IsWebResult {
			if strictTopic && !matchesAllKeywords(r.Candidate, topic.Keywords) {
				continue
			}
		} else if !matchesAnyKeyword(r.Candidate, queryKeywords) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// matchesAllKeywords is the conjunctive bar applied to web candidates.
func matchesAllKeywords(candidate domain.Candidate, keywords []string) bool {
	haystack := candidateHaystack(candidate)
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}
		if !strings.Contains(haystack, keyword) {
			return false
		}
	}
	return true
}

// matchesAnyKeyword is the disjunctive bar applied to corpus candidates.
// An empty keyword list keeps everything.
func matchesAnyKeyword(candidate domain.Candidate, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	haystack := candidateHaystack(candidate)
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}
		if strings.Contains(haystack, keyword) {
			return true
		}
	}
	return false
}

func candidateHaystack(candidate domain.Candidate) string {
	return strings.ToLower(candidate.Text + " " + candidate.Metadata.Title)
}
