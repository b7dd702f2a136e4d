// Package config loads the site configuration: built-in defaults, then an
// optional YAML file, then environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces the environment overrides: SITE_SMTP_HOST -> smtp.host.
const EnvPrefix = "SITE_"

// Cloudflare's documented always-pass Turnstile test keys. They make the
// widget usable outside production without an account.
const (
	TestSiteKey   = "1x00000000000000000000AA"
	TestSecretKey = "1x0000000000000000000000000000000AA"
)

type ServerConfig struct {
	Port         string        `koanf:"port"`
	Mode         string        `koanf:"mode"` // gin mode: debug | release | test
	SessionTTL   time.Duration `koanf:"session_ttl"`
	TrustedProxy []string      `koanf:"trusted_proxy"`
}

type DBConfig struct {
	Path string `koanf:"path"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	File   string `koanf:"file"`
}

type TurnstileConfig struct {
	Required  bool   `koanf:"required"`
	SiteKey   string `koanf:"site_key"`
	SecretKey string `koanf:"secret_key"`
	VerifyURL string `koanf:"verify_url"`
}

type FormConfig struct {
	// Endpoint receives the form-encoded submissions. Empty keeps delivery
	// in process.
	Endpoint string        `koanf:"endpoint"`
	Timeout  time.Duration `koanf:"timeout"`
}

type SMTPConfig struct {
	Host string `koanf:"host"`
	Port string `koanf:"port"`
	User string `koanf:"user"`
	Pass string `koanf:"pass"`
	To   string `koanf:"to"`
}

type AdminConfig struct {
	Username     string `koanf:"username"`
	Password     string `koanf:"password"`
	PasswordHash string `koanf:"password_hash"` // bcrypt, wins over Password
}

// Config is the full site configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	DB        DBConfig        `koanf:"db"`
	Log       LogConfig       `koanf:"log"`
	Turnstile TurnstileConfig `koanf:"turnstile"`
	Form      FormConfig      `koanf:"form"`
	SMTP      SMTPConfig      `koanf:"smtp"`
	Admin     AdminConfig     `koanf:"admin"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", Mode: "release", SessionTTL: 2 * time.Hour},
		DB:     DBConfig{Path: "data/site.db"},
		Log:    LogConfig{Level: "info", Format: "console"},
		Turnstile: TurnstileConfig{
			SiteKey:   TestSiteKey,
			VerifyURL: "https://challenges.cloudflare.com/turnstile/v0/siteverify",
		},
		Form: FormConfig{Timeout: 10 * time.Second},
		SMTP: SMTPConfig{Host: "smtp.gmail.com", Port: "587"},
		Admin: AdminConfig{
			Username: "admin",
		},
	}
}

// legacyEnv maps the plain variable names the site has always read.
var legacyEnv = map[string]string{
	"PORT":               "server.port",
	"GIN_MODE":           "server.mode",
	"SMTP_HOST":          "smtp.host",
	"SMTP_PORT":          "smtp.port",
	"SMTP_USER":          "smtp.user",
	"SMTP_PASS":          "smtp.pass",
	"TO_EMAIL":           "smtp.to",
	"ADMIN_USERNAME":     "admin.username",
	"ADMIN_PASSWORD":     "admin.password",
	"TURNSTILE_SITE_KEY": "turnstile.site_key",
}

// Load reads path (if it exists) over the defaults, then the legacy
// variables, then SITE_* overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		return legacyEnv[s]
	}), nil); err != nil {
		return nil, fmt.Errorf("loading legacy env: %w", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return cfg, nil
}

// envKey turns SITE_TURNSTILE_SITE_KEY into turnstile.site_key: the first
// segment names the section, the rest is the key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

var validModes = map[string]bool{"debug": true, "release": true, "test": true}

// Validate checks the values Load cannot type-check.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if !validModes[c.Server.Mode] {
		return fmt.Errorf("invalid server.mode %q: must be one of debug, release, test", c.Server.Mode)
	}
	if c.Server.SessionTTL <= 0 {
		return fmt.Errorf("server.session_ttl must be positive")
	}
	if c.DB.Path == "" {
		return fmt.Errorf("db.path is required")
	}
	if c.Turnstile.Required && c.Turnstile.SiteKey == "" {
		return fmt.Errorf("turnstile.site_key is required when turnstile.required is set")
	}
	if c.Form.Timeout <= 0 {
		return fmt.Errorf("form.timeout must be positive")
	}
	if c.Admin.Username == "" {
		return fmt.Errorf("admin.username is required")
	}
	return nil
}

// SMTPEnabled reports whether contact notifications can be mailed.
func (c *Config) SMTPEnabled() bool {
	return c.SMTP.User != "" && c.SMTP.Pass != "" && c.SMTP.To != ""
}
