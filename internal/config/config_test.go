package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Server.Port != 8750 {
		t.Errorf("expected Port=8750, got %d", cfg.Server.Port)
	}
	if cfg.Analysis.MaxTokenSize != 1000 {
		t.Errorf("expected MaxTokenSize=1000, got %d", cfg.Analysis.MaxTokenSize)
	}
	if cfg.Analysis.FilePattern != "**/*.sas" {
		t.Errorf("expected FilePattern=**/*.sas, got %s", cfg.Analysis.FilePattern)
	}
	if cfg.LLM.Provider != "openai" {
		t.Errorf("expected Provider=openai, got %s", cfg.LLM.Provider)
	}
	if cfg.LLM.Temperature != 0.0 {
		t.Errorf("expected Temperature=0, got %f", cfg.LLM.Temperature)
	}
	if cfg.Runner.LogBuffer != 1000 {
		t.Errorf("expected LogBuffer=1000, got %d", cfg.Runner.LogBuffer)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	// Ensure no env vars interfere
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("AZURE_OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	cfg := DefaultConfig()
	cfg.LLM.Provider = "gemini"
	cfg.LLM.Model = "gemini-2.0-flash"
	cfg.Analysis.Workers = 8

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.LLM.Provider != "gemini" {
		t.Errorf("expected Provider=gemini, got %s", loaded.LLM.Provider)
	}
	if loaded.LLM.Model != "gemini-2.0-flash" {
		t.Errorf("expected Model=gemini-2.0-flash, got %s", loaded.LLM.Model)
	}
	if loaded.Analysis.Workers != 8 {
		t.Errorf("expected Workers=8, got %d", loaded.Analysis.Workers)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("AZURE_OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8750 {
		t.Errorf("expected default Port=8750, got %d", cfg.Server.Port)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("AZURE_OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	partial := []byte("analysis:\n  max_token_size: 250\n")
	if err := os.WriteFile(path, partial, 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Analysis.MaxTokenSize != 250 {
		t.Errorf("expected MaxTokenSize=250, got %d", cfg.Analysis.MaxTokenSize)
	}
	// Untouched sections keep their defaults.
	if cfg.Analysis.Workers != 4 {
		t.Errorf("expected Workers=4, got %d", cfg.Analysis.Workers)
	}
	if cfg.Runner.Command != "python3" {
		t.Errorf("expected Command=python3, got %s", cfg.Runner.Command)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}

	cfg = DefaultConfig()
	cfg.LLM.Provider = "mystery"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for unknown provider")
	}

	cfg = DefaultConfig()
	cfg.Server.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for port 0")
	}

	cfg = DefaultConfig()
	cfg.Analysis.Workers = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for zero workers")
	}

	cfg = DefaultConfig()
	cfg.LLM.Temperature = 3.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for temperature out of range")
	}
}

func TestDurationGetters(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.GetLLMTimeout().Seconds(); got != 120 {
		t.Errorf("expected LLM timeout 120s, got %vs", got)
	}
	if got := cfg.GetRunTimeout().Minutes(); got != 10 {
		t.Errorf("expected run timeout 10m, got %vm", got)
	}

	cfg.LLM.Timeout = "not-a-duration"
	if got := cfg.GetLLMTimeout().Seconds(); got != 120 {
		t.Errorf("expected fallback 120s for bad duration, got %vs", got)
	}
	cfg.Watch.Debounce = ""
	if got := cfg.GetWatchDebounce().Milliseconds(); got != 500 {
		t.Errorf("expected fallback 500ms, got %vms", got)
	}
}
