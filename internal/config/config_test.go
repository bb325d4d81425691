package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWritesDefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", FileName)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default config to be written: %v", err)
	}
	s := cfg.Settings
	if s.API.BaseURL != defaultBaseURL {
		t.Fatalf("base url = %q, want %q", s.API.BaseURL, defaultBaseURL)
	}
	if s.API.Timeout != 2*time.Minute {
		t.Fatalf("timeout = %s, want 2m", s.API.Timeout)
	}
	if s.Dashboard.RecentLimit != 5 {
		t.Fatalf("recent limit = %d, want 5", s.Dashboard.RecentLimit)
	}
	if cfg.LogDir() != filepath.Join(dir, "nested", "logs") {
		t.Fatalf("log dir = %q", cfg.LogDir())
	}
}

func TestLoadParsesYamlAndResolvesPaths(t *testing.T) {
	dir := t.TempDir()
	configYAML := strings.TrimSpace(`
version: 1
api:
  base_url: https://content.example.com/api/
  timeout: 30s
  requests_per_second: 2
auth:
  email: " Agent@Example.com "
paths:
  download_dir: images
dashboard:
  recent_limit: 3
logging:
  level: DEBUG
`)
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(configYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	s := cfg.Settings
	if s.API.BaseURL != "https://content.example.com/api" {
		t.Fatalf("base url not trimmed: %q", s.API.BaseURL)
	}
	if s.API.Timeout != 30*time.Second || s.API.RequestsPerSecond != 2 {
		t.Fatalf("api settings not parsed: %+v", s.API)
	}
	if s.Auth.Email != "agent@example.com" {
		t.Fatalf("email not normalized: %q", s.Auth.Email)
	}
	if cfg.DownloadDir() != filepath.Join(dir, "images") {
		t.Fatalf("download dir = %q", cfg.DownloadDir())
	}
	if s.Dashboard.RecentLimit != 3 || s.Logging.Level != "debug" {
		t.Fatalf("unexpected settings: %+v", s)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	if _, err := Load(path); err != nil {
		t.Fatalf("seed config: %v", err)
	}
	t.Setenv("INSURECONTENT_API_URL", "http://127.0.0.1:9999/api")
	t.Setenv("INSURECONTENT_RPS", "0")
	t.Setenv("INSURECONTENT_TOKEN", "abc.def.ghi")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Settings.API.BaseURL != "http://127.0.0.1:9999/api" {
		t.Fatalf("env base url ignored: %q", cfg.Settings.API.BaseURL)
	}
	if cfg.Settings.API.RequestsPerSecond != 0 {
		t.Fatalf("env rps ignored: %v", cfg.Settings.API.RequestsPerSecond)
	}
	if cfg.Settings.Auth.Token != "abc.def.ghi" {
		t.Fatalf("env token ignored: %q", cfg.Settings.Auth.Token)
	}
}

func TestDefaultPathHonorsEnv(t *testing.T) {
	t.Setenv(PathEnv, "/tmp/custom.yaml")
	path, err := DefaultPath()
	if err != nil {
		t.Fatalf("default path: %v", err)
	}
	if path != "/tmp/custom.yaml" {
		t.Fatalf("path = %q", path)
	}
}

func TestValidateRejectsBadURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte("api:\n  base_url: ftp://example.com\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "http or https") {
		t.Fatalf("expected scheme validation error, got %v", err)
	}
}

func TestRememberEmailPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.RememberEmail("agent@example.com"); err != nil {
		t.Fatalf("remember email: %v", err)
	}
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Settings.Auth.Email != "agent@example.com" {
		t.Fatalf("email not persisted: %q", reloaded.Settings.Auth.Email)
	}
}

func TestRememberEmailKeepsEnvAndResolvedPathsOutOfFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	t.Setenv("INSURECONTENT_TOKEN", "env-token")
	t.Setenv("INSURECONTENT_API_URL", "https://env.example.com/api")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.RememberEmail("Agent@Example.com"); err != nil {
		t.Fatalf("remember email: %v", err)
	}
	if cfg.Settings.Auth.Email != "agent@example.com" {
		t.Fatalf("in-memory email not updated: %q", cfg.Settings.Auth.Email)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	text := string(raw)
	for _, leaked := range []string{"env-token", "env.example.com", dir} {
		if strings.Contains(text, leaked) {
			t.Fatalf("config file should not contain %q:\n%s", leaked, text)
		}
	}
	if !strings.Contains(text, "agent@example.com") {
		t.Fatalf("email not written:\n%s", text)
	}
	if !strings.Contains(text, "# Remembered on successful login.") {
		t.Fatalf("comments should survive the rewrite:\n%s", text)
	}

	t.Setenv("INSURECONTENT_TOKEN", "")
	t.Setenv("INSURECONTENT_API_URL", "")
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Settings.Auth.Token != "" {
		t.Fatalf("token leaked into file: %q", reloaded.Settings.Auth.Token)
	}
	if reloaded.Settings.API.BaseURL != defaultBaseURL {
		t.Fatalf("base url leaked into file: %q", reloaded.Settings.API.BaseURL)
	}
	if reloaded.Settings.Auth.Email != "agent@example.com" {
		t.Fatalf("email not persisted: %q", reloaded.Settings.Auth.Email)
	}
}
