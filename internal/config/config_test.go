package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	vocabPath := filepath.Join(tmpDir, "vocab.txt")
	if err := os.WriteFile(vocabPath, []byte("cat\ndog\n"), 0o644); err != nil {
		t.Fatalf("failed to write vocab file: %v", err)
	}

	t.Setenv("WORDRANK_VOCAB_PATH", vocabPath)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.BackendBindAddr != DefaultBackendBindAddr {
		t.Errorf("expected default bind addr %q, got %q", DefaultBackendBindAddr, cfg.BackendBindAddr)
	}
	if cfg.MeaningfulPoolSize != DefaultMeaningfulPoolSize {
		t.Errorf("expected default pool size %d, got %d", DefaultMeaningfulPoolSize, cfg.MeaningfulPoolSize)
	}
	if cfg.VocabPath != vocabPath {
		t.Errorf("expected vocab path %q from env, got %q", vocabPath, cfg.VocabPath)
	}
	if cfg.HintAuthor != DefaultHintAuthor {
		t.Errorf("expected default hint author %q, got %q", DefaultHintAuthor, cfg.HintAuthor)
	}
}

func TestLoad_MissingVocabPath(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Error("expected error when vocab_path is unset")
	}
}

func TestValidate_NilConfig(t *testing.T) {
	if err := Validate(nil); err != ErrInvalidConfiguration {
		t.Errorf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestValidate_InvalidMemoryLimit(t *testing.T) {
	cfg := &Config{
		VocabPath:          "vocab.txt",
		MeaningfulPoolSize: DefaultMeaningfulPoolSize,
		MemoryLimitBytes:   0,
	}
	if err := Validate(cfg); err != ErrInvalidConfiguration {
		t.Errorf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestValidate_NegativeRankSize(t *testing.T) {
	cfg := &Config{
		VocabPath:          "vocab.txt",
		MeaningfulPoolSize: DefaultMeaningfulPoolSize,
		MemoryLimitBytes:   DefaultMemoryLimitBytes,
		VocabRankSize:      -1,
	}
	if err := Validate(cfg); err != ErrInvalidConfiguration {
		t.Errorf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestLoad_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	vocabPath := filepath.Join(tmpDir, "vocab.txt")
	if err := os.WriteFile(vocabPath, []byte("cat\ndog\n"), 0o644); err != nil {
		t.Fatalf("failed to write vocab file: %v", err)
	}

	cfgPath := filepath.Join(tmpDir, "wordrank.yaml")
	contents := "backend_bind_addr: \":9000\"\nvocab_path: \"" + vocabPath + "\"\nvocab_rank_size: 5000\n"
	if err := os.WriteFile(cfgPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.BackendBindAddr != ":9000" {
		t.Errorf("expected bind addr :9000, got %q", cfg.BackendBindAddr)
	}
	if cfg.VocabRankSize != 5000 {
		t.Errorf("expected vocab rank size 5000, got %d", cfg.VocabRankSize)
	}
}
