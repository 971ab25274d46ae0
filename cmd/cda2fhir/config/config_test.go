package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("CDA2FHIR_DB_URL", "file:cda.db")
	t.Setenv("CDA2FHIR_FAMILIES", "patient,specimen")
	t.Setenv("CDA2FHIR_SAMPLE", "patient=10,mutation=500")
	t.Setenv("CDA2FHIR_BATCH_SIZE", "250")
	t.Setenv("CDA2FHIR_LOG_LEVEL", "debug")

	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DBDriver != "sqlite" || cfg.DBURL != "file:cda.db" {
		t.Errorf("db = %s %s", cfg.DBDriver, cfg.DBURL)
	}
	if cfg.BatchSize != 250 {
		t.Errorf("BatchSize = %d, want 250", cfg.BatchSize)
	}
	if len(cfg.Families) != 2 || cfg.Families[1] != "specimen" {
		t.Errorf("Families = %v", cfg.Families)
	}
	limits, err := cfg.SampleLimits()
	if err != nil {
		t.Fatalf("SampleLimits() error = %v", err)
	}
	if limits["patient"] != 10 || limits["mutation"] != 500 {
		t.Errorf("SampleLimits() = %v", limits)
	}
	if cfg.Level() != zerolog.DebugLevel {
		t.Errorf("Level() = %v", cfg.Level())
	}
	if cfg.Publish() {
		t.Error("Publish() without bucket")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{DBDriver: "postgres", DBURL: "postgres://x", Output: "out", BatchSize: 1, CompoundLimit: 1, LogLevel: "info"}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"missing url", func(c *Config) { c.DBURL = "" }, false},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }, false},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }, false},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, false},
		{"bad sample", func(c *Config) { c.Sample = []string{"patient"} }, false},
		{"negative sample", func(c *Config) { c.Sample = []string{"patient=-1"} }, false},
		{"prefix without bucket", func(c *Config) { c.S3Prefix = "runs" }, false},
		{"bucket", func(c *Config) { c.S3Bucket = "b"; c.S3Prefix = "runs" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() error = %v, want ok %v", err, tt.ok)
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing file: %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("CDA2FHIR_TEST_ONLY=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CDA2FHIR_TEST_ONLY", "")
	os.Unsetenv("CDA2FHIR_TEST_ONLY")
	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile() error = %v", err)
	}
	if got := os.Getenv("CDA2FHIR_TEST_ONLY"); got != "from-file" {
		t.Errorf("CDA2FHIR_TEST_ONLY = %q", got)
	}
}
