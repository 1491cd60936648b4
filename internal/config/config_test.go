package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Defaults().Validate() = %v", err)
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.Filter.MinPrice = 0.99
	cfg.Redis.Addr = ""
	cfg.Pipeline.ArchiveCron = "@daily"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	for _, want := range []string{`unknown mode "trade"`, "filter:", "redis: addr", "archive_cron"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "polybet.toml")
	body := `
mode = "scrape"

[filter]
min_price = 0.7

[pipeline]
scrape_interval = "90s"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("POLYBET_LOG_LEVEL", "debug")
	t.Setenv("POLYBET_SERVER_API_KEYS", "k1, k2 ,")
	t.Setenv("POLYBET_FILTER_MIN_VOLUME", "not-a-number")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Mode != "scrape" || cfg.LogLevel != "debug" {
		t.Errorf("mode/log_level = %q/%q", cfg.Mode, cfg.LogLevel)
	}
	if cfg.Filter.MinPrice != 0.7 || cfg.Filter.MaxPrice != 0.95 {
		t.Errorf("filter = %+v", cfg.Filter)
	}
	if cfg.Filter.MinVolume != 1000 {
		t.Errorf("unparseable override changed MinVolume to %v", cfg.Filter.MinVolume)
	}
	if cfg.Pipeline.ScrapeInterval.Duration != 90*time.Second {
		t.Errorf("ScrapeInterval = %v", cfg.Pipeline.ScrapeInterval.Duration)
	}
	if len(cfg.Server.APIKeys) != 2 || cfg.Server.APIKeys[1] != "k2" {
		t.Errorf("APIKeys = %v", cfg.Server.APIKeys)
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "hunter2"
	cfg.Notify.TelegramToken = "123:abc"
	cfg.Server.APIKeys = []string{"secret"}

	out := RedactedConfig(&cfg)
	if out.Postgres.Password != redacted || out.Notify.TelegramToken != redacted || out.Server.APIKeys[0] != redacted {
		t.Errorf("secrets leaked: %+v", out)
	}
	if out.Redis.Password != "" {
		t.Errorf("empty password became %q", out.Redis.Password)
	}
	if cfg.Postgres.Password != "hunter2" || cfg.Server.APIKeys[0] != "secret" {
		t.Error("RedactedConfig mutated its input")
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "polybet.toml")
	if err := os.WriteFile(path, []byte("[pipeline]\nscrape_intervall = \"1m\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "pipeline.scrape_intervall") {
		t.Errorf("Load() error = %v, want unknown key", err)
	}
}

func TestExampleConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config.example.toml"))
	if err != nil {
		t.Fatalf("Load(config.example.toml) error = %v", err)
	}
	if cfg.Pipeline.ExportRetentionDays != 7 {
		t.Errorf("ExportRetentionDays = %d", cfg.Pipeline.ExportRetentionDays)
	}
}
