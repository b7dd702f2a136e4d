package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Turnstile.SiteKey != TestSiteKey {
		t.Errorf("site key fallback = %q", cfg.Turnstile.SiteKey)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != Default().Server.Port && os.Getenv("PORT") == "" {
		t.Errorf("port = %q", cfg.Server.Port)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "site.yaml")
	yaml := `
server:
  port: "9000"
  session_ttl: 30m
turnstile:
  required: true
  site_key: from-file
form:
  timeout: 3s
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SITE_TURNSTILE_SITE_KEY", "from-env")
	t.Setenv("SMTP_USER", "legacy-user")
	t.Setenv("SITE_SMTP_PASS", "secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "9000" && os.Getenv("PORT") == "" {
		t.Errorf("port = %q", cfg.Server.Port)
	}
	if cfg.Server.SessionTTL != 30*time.Minute {
		t.Errorf("session ttl = %v", cfg.Server.SessionTTL)
	}
	if !cfg.Turnstile.Required {
		t.Error("turnstile.required from file lost")
	}
	if cfg.Turnstile.SiteKey != "from-env" {
		t.Errorf("site key = %q, env should win", cfg.Turnstile.SiteKey)
	}
	if cfg.Form.Timeout != 3*time.Second {
		t.Errorf("form timeout = %v", cfg.Form.Timeout)
	}
	if cfg.SMTP.User != "legacy-user" || cfg.SMTP.Pass != "secret" {
		t.Errorf("smtp = %+v", cfg.SMTP)
	}
	if cfg.DB.Path != Default().DB.Path {
		t.Errorf("untouched key lost its default: %q", cfg.DB.Path)
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"SITE_SMTP_HOST":           "smtp.host",
		"SITE_TURNSTILE_SITE_KEY":  "turnstile.site_key",
		"SITE_ADMIN_PASSWORD_HASH": "admin.password_hash",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"mode", func(c *Config) { c.Server.Mode = "fast" }},
		{"port", func(c *Config) { c.Server.Port = "" }},
		{"db", func(c *Config) { c.DB.Path = "" }},
		{"site key", func(c *Config) { c.Turnstile.Required = true; c.Turnstile.SiteKey = "" }},
		{"timeout", func(c *Config) { c.Form.Timeout = 0 }},
		{"ttl", func(c *Config) { c.Server.SessionTTL = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestSMTPEnabled(t *testing.T) {
	cfg := Default()
	if cfg.SMTPEnabled() {
		t.Fatal("smtp should be off without credentials")
	}
	cfg.SMTP.User, cfg.SMTP.Pass, cfg.SMTP.To = "u", "p", "me@x.io"
	if !cfg.SMTPEnabled() {
		t.Fatal("smtp should be on")
	}
}
