package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FUSION_CONFIG_PATH", "")
	t.Setenv("RETRIEVE_TOP_K", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TopK != 10 {
		t.Fatalf("expected default top k 10, got %d", cfg.TopK)
	}
	if cfg.NATSSubject != "corpus.updated" {
		t.Fatalf("expected default nats subject, got %q", cfg.NATSSubject)
	}
	if cfg.Fusion.ReservedWebSlots != 2 {
		t.Fatalf("expected default reserved web slots 2, got %d", cfg.Fusion.ReservedWebSlots)
	}
	if cfg.Fusion.Weights["lexical"] != 0.30 {
		t.Fatalf("expected default lexical weight 0.30, got %v", cfg.Fusion.Weights["lexical"])
	}
}

func TestLoadReadsFusionFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fusion.yaml")
	content := `weights:
  lexical: 0.5
  vector: 0.35
  hyde: 0.0
  authority: 0.15
  web: 0.0
reserved_web_slots: 0
keyword_weights:
  casing: 1.0
  position: 1.0
  frequency: 0.5
  dispersion: 0.5
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fusion file: %v", err)
	}
	t.Setenv("FUSION_CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Fusion.Weights["lexical"] != 0.5 || cfg.Fusion.Weights["vector"] != 0.35 {
		t.Fatalf("fusion file not applied: %+v", cfg.Fusion.Weights)
	}
	if cfg.Fusion.ReservedWebSlots != 0 {
		t.Fatalf("expected reserved web slots 0, got %d", cfg.Fusion.ReservedWebSlots)
	}
	if cfg.Fusion.KeywordWeights.Frequency != 0.5 {
		t.Fatalf("keyword weights not applied: %+v", cfg.Fusion.KeywordWeights)
	}
}

func TestLoadRejectsBadWeightSum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fusion.yaml")
	content := `weights:
  lexical: 0.9
  vector: 0.9
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fusion file: %v", err)
	}
	t.Setenv("FUSION_CONFIG_PATH", path)

	if _, err := Load(); err == nil {
		t.Fatal("expected error for weight sum != 1.0")
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("FUSION_CONFIG_PATH", "")
	t.Setenv("RETRIEVE_TOP_K", "7")
	t.Setenv("WEB_SEARCH_ENABLED", "false")
	t.Setenv("CORPUS_EPOCH_SEED", "42")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TopK != 7 {
		t.Fatalf("expected top k override 7, got %d", cfg.TopK)
	}
	if cfg.WebSearchEnabled {
		t.Fatal("expected web search disabled")
	}
	if cfg.CorpusEpochSeed != 42 {
		t.Fatalf("expected epoch seed 42, got %d", cfg.CorpusEpochSeed)
	}
}
