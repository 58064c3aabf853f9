package config_test

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sirdesai22/padel-score/internal/config"
)

// clearEnv blanks every variable Parse reads so the host environment cannot
// leak into a case.
func clearEnv(t *testing.T) {
	for _, k := range []string{
		"PORT", "STORE_BACKEND", "POSTGRES_DSN", "ELASTIC_URL", "ALLOWED_ORIGINS",
		"SYNC_INTERVAL", "SYNC_BATCH_SIZE", "DLQ_RETRY_INTERVAL", "SEED_DEMO",
	} {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
}

func TestParseDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "memory")

	cfg, err := config.Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.SyncInterval != time.Second || cfg.SyncBatchSize != 200 || cfg.DLQRetryInterval != 30*time.Second {
		t.Errorf("sync settings = %v %d %v", cfg.SyncInterval, cfg.SyncBatchSize, cfg.DLQRetryInterval)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != "http://localhost:3000" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.SeedDemo {
		t.Error("SeedDemo enabled by default")
	}
	if cfg.SearchSyncEnabled() {
		t.Error("search sync enabled for the memory backend")
	}
}

func TestParsePostgresWithSearch(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("POSTGRES_DSN", "postgres://localhost/padel")
	t.Setenv("ELASTIC_URL", "http://localhost:9200")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example,https://c.example")
	t.Setenv("SYNC_INTERVAL", "250ms")
	t.Setenv("SEED_DEMO", "true")

	cfg, err := config.Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !cfg.SearchSyncEnabled() {
		t.Error("search sync disabled")
	}
	if cfg.SyncInterval != 250*time.Millisecond {
		t.Errorf("SyncInterval = %v, want 250ms", cfg.SyncInterval)
	}
	if len(cfg.AllowedOrigins) != 3 {
		t.Errorf("AllowedOrigins = %v, want 3 entries", cfg.AllowedOrigins)
	}
	if !cfg.SeedDemo {
		t.Error("SeedDemo = false, want true")
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"postgres without dsn", map[string]string{"STORE_BACKEND": "postgres"}, "POSTGRES_DSN"},
		{"memory with elastic", map[string]string{"STORE_BACKEND": "memory", "ELASTIC_URL": "http://es:9200"}, "ELASTIC_URL"},
		{"unknown backend", map[string]string{"STORE_BACKEND": "redis"}, "STORE_BACKEND"},
		{"zero batch", map[string]string{"STORE_BACKEND": "memory", "SYNC_BATCH_SIZE": "0"}, "SYNC_BATCH_SIZE"},
		{"negative retry interval", map[string]string{"STORE_BACKEND": "memory", "DLQ_RETRY_INTERVAL": "-1s"}, "DLQ_RETRY_INTERVAL"},
		{"bad duration", map[string]string{"STORE_BACKEND": "memory", "SYNC_INTERVAL": "soon"}, "parse env"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := config.Parse()
			if err == nil {
				t.Fatal("parse succeeded")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error = %v, want mention of %s", err, tc.want)
			}
		})
	}
}
