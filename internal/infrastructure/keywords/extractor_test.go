package keywords

import (
	"strings"
	"testing"
)

func TestExtractEmptyAndDegenerateInput(t *testing.T) {
	e := New(Weights{})

	for _, input := range []string{"", "   ", "...!!!???", "12 34 56 78", "a b c d e"} {
		if got := e.Extract(input, 5); len(got) != 0 {
			t.Fatalf("input %q: expected no keywords, got %v", input, got)
		}
	}
}

func TestExtractRepeatedSalientTermRanksFirst(t *testing.T) {
	text := "La rottamazione quinquies riguarda le cartelle. " +
		"Con la rottamazione si definiscono i carichi pendenti. " +
		"La rottamazione prevede rate e scadenze precise."

	e := New(Weights{})
	keywords := e.Extract(text, 5)
	if len(keywords) == 0 {
		t.Fatal("expected keywords")
	}
	if keywords[0].Keyword != "rottamazione" {
		t.Fatalf("expected the dominant term first, got %q", keywords[0].Keyword)
	}
}

func TestExtractLowerIsMoreImportant(t *testing.T) {
	text := "Rottamazione quinquies delle cartelle esattoriali. " +
		"La rottamazione interessa molti contribuenti italiani."

	e := New(Weights{})
	keywords := e.Extract(text, 10)
	for i := 1; i < len(keywords); i++ {
		if keywords[i].Importance < keywords[i-1].Importance {
			t.Fatal("keywords must be ordered by ascending importance")
		}
	}
}

func TestExtractRespectsMaxKeywords(t *testing.T) {
	text := "alfa beta gamma delta epsilon zeta theta lambda sigma omega."
	e := New(Weights{})
	if got := e.Extract(text, 3); len(got) != 3 {
		t.Fatalf("expected 3 keywords, got %d", len(got))
	}
	if got := e.Extract(text, 0); got != nil {
		t.Fatal("maxKeywords 0 must yield nothing")
	}
}

func TestExtractIgnoresPunctuationAndNumbers(t *testing.T) {
	text := "Scadenza 31/12/2026: versamento della prima rata, importo 1.200,50 euro."
	e := New(Weights{})
	for _, kw := range e.Extract(text, 10) {
		if strings.IndexFunc(kw.Keyword, func(r rune) bool {
			return r >= 'a' && r <= 'z' || r >= 'à' && r <= 'ü'
		}) < 0 {
			t.Fatalf("non-lexical keyword survived: %q", kw.Keyword)
		}
	}
}

func TestExtractLowercasesKeywords(t *testing.T) {
	text := "Il decreto Milleproroghe proroga la scadenza. Il Milleproroghe interviene ogni anno."
	e := New(Weights{})
	for _, kw := range e.Extract(text, 10) {
		if kw.Keyword != strings.ToLower(kw.Keyword) {
			t.Fatalf("keyword not lowercased: %q", kw.Keyword)
		}
	}
}

func TestExtractIsPure(t *testing.T) {
	text := "La rottamazione quinquies riguarda le cartelle esattoriali."
	e := New(Weights{})

	first := e.Extract(text, 5)
	second := e.Extract(text, 5)
	if len(first) != len(second) {
		t.Fatal("extraction must be deterministic")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("run-to-run difference at %d: %v vs %v", i, first[i], second[i])
		}
	}
}
