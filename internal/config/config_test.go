package config

import (
	"os"
	"path/filepath"
	"testing"

	"gridline/internal/model"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "collector.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
db: test.db
areas:
  - FR
  - NL
kinds:
  - day_ahead_price
  - actual_generation
lookback_days: 7
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DB != "test.db" || len(cfg.Areas) != 2 || cfg.LookbackDays != 7 {
		t.Errorf("unexpected config: %+v", cfg)
	}

	kinds, err := cfg.ParseKinds()
	if err != nil {
		t.Fatalf("ParseKinds failed: %v", err)
	}
	if len(kinds) != 2 || kinds[0] != model.KindDayAheadPrice || kinds[1] != model.KindGeneration {
		t.Errorf("kinds = %v", kinds)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DB != "gridline.db" || len(cfg.Areas) != 1 || cfg.LookbackDays != 2 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestParseKindsUnknown(t *testing.T) {
	cfg := Collector{Kinds: []string{"spot_price"}}
	if _, err := cfg.ParseKinds(); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
