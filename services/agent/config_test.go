package agent

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "api: https://prepd.example.com\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.API != "https://prepd.example.com" {
		t.Fatalf("api = %q", cfg.API)
	}
	if cfg.Hostname == "" {
		t.Fatal("hostname default not applied")
	}
	if cfg.CacheDir == "" {
		t.Fatal("cache dir default not applied")
	}
	if cfg.PollInterval != 60*time.Second {
		t.Fatalf("poll interval = %s, want 60s", cfg.PollInterval)
	}
}

func TestLoadConfigExplicitValues(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
api: https://prepd.example.com
token: secret
hostname: ws-42
cache_dir: /var/cache/prepd
poll_interval: 5m
is_lead: true
`))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Hostname != "ws-42" || cfg.Token != "secret" || !cfg.IsLead {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.PollInterval != 5*time.Minute {
		t.Fatalf("poll interval = %s, want 5m", cfg.PollInterval)
	}
}

func TestLoadConfigRequiresAPI(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, "hostname: ws-1\n")); err == nil {
		t.Fatal("expected error for missing api field")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
