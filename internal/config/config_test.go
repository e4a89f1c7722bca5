package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ginjaninja78/fiscal-xml-reader/internal/types"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.InputDir != DefaultInputDir || cfg.OutputDir != DefaultOutputDir {
		t.Errorf("dirs = %q, %q", cfg.InputDir, cfg.OutputDir)
	}
	if cfg.MaxConcurrency != 64 || cfg.OutputFormat != "{uuid}.xlsx" || cfg.Hint != "auto" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Variant() != types.VariantUnknown || !cfg.ErrorLogEnabled() {
		t.Errorf("resolved = %v, %v", cfg.Variant(), cfg.ErrorLogEnabled())
	}
	if cfg.Location().String() != "America/Fortaleza" {
		t.Errorf("Location = %s", cfg.Location())
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
input_dir: /data/xml
max_concurrency: 2
hint: "CT-e"
timezone: UTC
write_error_log: false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.InputDir != "/data/xml" || cfg.OutputDir != DefaultOutputDir {
		t.Errorf("dirs = %q, %q", cfg.InputDir, cfg.OutputDir)
	}
	if cfg.MaxConcurrency != 4 {
		t.Errorf("MaxConcurrency = %d, want clamp to 4", cfg.MaxConcurrency)
	}
	if cfg.Variant() != types.TransportDocument {
		t.Errorf("Variant = %v", cfg.Variant())
	}
	if cfg.ErrorLogEnabled() {
		t.Error("explicit write_error_log: false was overridden")
	}
}

func TestLoadRejects(t *testing.T) {
	tests := map[string]string{
		"bad yaml":     "input_dir: [unclosed",
		"bad hint":     "hint: boleto",
		"bad timezone": "timezone: Mars/Olympus",
		"bad level":    "log_level: chatty",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestValidateAfterOverride(t *testing.T) {
	cfg := Default()
	cfg.Hint = "PrimaryInvoice"
	cfg.MaxConcurrency = 500
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Variant() != types.PrimaryInvoice || cfg.MaxConcurrency != 64 {
		t.Errorf("cfg = %+v", cfg)
	}
}
