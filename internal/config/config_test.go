package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
database:
  host: localhost
  port: 5432
  user: pos
  password: pos
  database: poscore
rabbitmq:
  host: localhost
  port: 5672
  user: guest
  password: guest
backend:
  base_url: http://localhost:8080
  timeout_seconds: 10
kds:
  base_url: ws://localhost:8081
  heartbeat_seconds: 30
  max_reconnects: 5
tender:
  surcharge_rate: "0.015"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database.Host != "localhost" || cfg.Database.Port != 5432 {
		t.Errorf("database config: %+v", cfg.Database)
	}
	if cfg.Backend.BaseURL != "http://localhost:8080" || cfg.Backend.TimeoutSeconds != 10 {
		t.Errorf("backend config: %+v", cfg.Backend)
	}
	if cfg.KDS.MaxReconnects != 5 {
		t.Errorf("kds config: %+v", cfg.KDS)
	}
	if cfg.Tender.SurchargeRate.String() != "0.015" {
		t.Errorf("surcharge rate: got %s", cfg.Tender.SurchargeRate)
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "missing backend url",
			content: `
kds:
  base_url: ws://localhost:8081
`,
		},
		{
			name: "missing kds url",
			content: `
backend:
  base_url: http://localhost:8080
`,
		},
		{
			name: "negative surcharge rate",
			content: `
backend:
  base_url: http://localhost:8080
kds:
  base_url: ws://localhost:8081
tender:
  surcharge_rate: "-0.01"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}
