// Package keywords implements unsupervised statistical keyword extraction
// in the YAKE family: term frequency, first position, casing and sentence
// dispersion signals, no hand-maintained stop-word list. Importance is
// lower-is-more-important.
package keywords

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/fiscora/retrieval-engine/internal/core/domain"
)

// Weights tunes the relative strength of the statistical signals. The
// exact coefficients are configuration, not algorithm.
type Weights struct {
	Casing     float64 `yaml:"casing"`
	Position   float64 `yaml:"position"`
	Frequency  float64 `yaml:"frequency"`
	Dispersion float64 `yaml:"dispersion"`
}

func DefaultWeights() Weights {
	return Weights{
		Casing:     1.0,
		Position:   1.0,
		Frequency:  1.0,
		Dispersion: 0.8,
	}
}

type Extractor struct {
	weights Weights
}

func New(weights Weights) *Extractor {
	def := DefaultWeights()
	if weights.Casing <= 0 {
		weights.Casing = def.Casing
	}
	if weights.Position <= 0 {
		weights.Position = def.Position
	}
	if weights.Frequency <= 0 {
		weights.Frequency = def.Frequency
	}
	if weights.Dispersion <= 0 {
		weights.Dispersion = def.Dispersion
	}
	return &Extractor{weights: weights}
}

const minTermLength = 3

type termStats struct {
	term          string
	frequency     float64
	uppercased    float64
	firstSentence int
	firstOffset   int
	sentences     map[int]struct{}
}

// Extract scores the terms of text and returns up to maxKeywords of them,
// most important first. Empty or degenerate input yields an empty list,
// never an error.
func (e *Extractor) Extract(text string, maxKeywords int) []domain.Keyword {
	if maxKeywords <= 0 {
		return nil
	}
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	stats := make(map[string]*termStats)
	offset := 0
	for sentenceIdx, sentence := range sentences {
		for wordIdx, word := range splitWords(sentence) {
			term := strings.ToLower(word)
			if !eligibleTerm(term) {
				continue
			}
			entry, ok := stats[term]
			if !ok {
				entry = &termStats{
					term:          term,
					firstSentence: sentenceIdx,
					firstOffset:   offset + wordIdx,
					sentences:     make(map[int]struct{}, 4),
				}
				stats[term] = entry
			}
			entry.frequency++
			entry.sentences[sentenceIdx] = struct{}{}
			// Uppercase-initial occurrences after the sentence start hint
			// at named entities.
			if wordIdx > 0 && startsUpper(word) {
				entry.uppercased++
			}
		}
		offset += len(sentence)
	}
	if len(stats) == 0 {
		return nil
	}

	meanFreq, stdFreq := frequencyMoments(stats)
	scored := make([]domain.Keyword, 0, len(stats))
	order := make(map[string]int, len(stats))
	for term, entry := range stats {
		order[term] = entry.firstOffset
		scored = append(scored, domain.Keyword{
			Keyword:    term,
			Importance: e.score(entry, meanFreq, stdFreq, len(sentences)),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Importance != scored[j].Importance {
			return scored[i].Importance < scored[j].Importance
		}
		return order[scored[i].Keyword] < order[scored[j].Keyword]
	})

	if len(scored) > maxKeywords {
		scored = scored[:maxKeywords]
	}
	return scored
}

// score combines the signals into a lower-is-better importance. Position
// pushes late-appearing terms down; casing, relative frequency and
// sentence dispersion pull salient terms up.
func (e *Extractor) score(entry *termStats, meanFreq, stdFreq float64, sentenceCount int) float64 {
	position := math.Log(3.0 + float64(entry.firstSentence))

	casing := entry.uppercased / (1.0 + math.Log(1.0+entry.frequency))
	frequency := entry.frequency / (meanFreq + stdFreq + 1e-9)
	dispersion := float64(len(entry.sentences)) / float64(sentenceCount)

	salience := e.weights.Casing*casing +
		e.weights.Frequency*frequency +
		e.weights.Dispersion*dispersion

	return (e.weights.Position * position) / (1.0 + salience)
}

func frequencyMoments(stats map[string]*termStats) (mean, std float64) {
	n := float64(len(stats))
	for _, entry := range stats {
		mean += entry.frequency
	}
	mean /= n
	for _, entry := range stats {
		d := entry.frequency - mean
		std += d * d
	}
	std = math.Sqrt(std / n)
	return mean, std
}

// eligibleTerm drops short tokens and tokens without a single letter;
// that removes most function words and all purely numeric or punctuation
// noise without any language-specific list.
func eligibleTerm(term string) bool {
	if len([]rune(term)) < minTermLength {
		return false
	}
	hasLetter := false
	for _, r := range term {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	return hasLetter
}

func startsUpper(word string) bool {
	for _, r := range word {
		return unicode.IsUpper(r)
	}
	return false
}

func splitSentences(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case '.', '!', '?', ';', '\n':
			return true
		}
		return false
	})
	out := fields[:0]
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			out = append(out, f)
		}
	}
	return out
}

func splitWords(sentence string) []string {
	return strings.FieldsFunc(sentence, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
