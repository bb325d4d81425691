// internal/config/config.go
//
// This package loads the client configuration. Settings live in a YAML file
// (written with commented defaults on first run) and every field can be
// overridden from the environment, which is how the sandbox and CI runs
// point the client somewhere else without touching the file.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

const (
	// AppDir is the directory created under the user's config dir.
	AppDir = "insurecontent"
	// FileName is the config file inside AppDir.
	FileName = "config.yaml"
	// PathEnv overrides the config file location.
	PathEnv = "INSURECONTENT_CONFIG"

	defaultBaseURL     = "http://localhost:5001/api"
	defaultTimeout     = 120 * time.Second
	defaultRPS         = 5.0
	defaultBurst       = 5
	defaultRecentLimit = 5
	defaultLogLevel    = "info"
)

const defaultConfigYAML = `# insurecontent client configuration
version: 1

api:
  # Root of the content API, including the /api prefix.
  base_url: http://localhost:5001/api
  # Schedule generation can take a while; keep this generous.
  timeout: 2m
  # Client-side throttle. Set to 0 to disable.
  requests_per_second: 5
  burst: 5

auth:
  # Remembered on successful login.
  email: ""
  # Optional bearer token sent alongside the session cookie.
  token: ""

paths:
  # Empty values resolve next to this file.
  log_dir: ""
  download_dir: ""

dashboard:
  recent_limit: 5

logging:
  level: info
`

// APIConfig describes how to reach the content API.
type APIConfig struct {
	BaseURL           string        `yaml:"base_url" env:"INSURECONTENT_API_URL"`
	Timeout           time.Duration `yaml:"timeout" env:"INSURECONTENT_API_TIMEOUT"`
	RequestsPerSecond float64       `yaml:"requests_per_second" env:"INSURECONTENT_RPS"`
	Burst             int           `yaml:"burst" env:"INSURECONTENT_BURST"`
}

// AuthConfig holds login conveniences.
type AuthConfig struct {
	Email string `yaml:"email" env:"INSURECONTENT_EMAIL"`
	Token string `yaml:"token" env:"INSURECONTENT_TOKEN"`
}

// PathsConfig locates files the client writes.
type PathsConfig struct {
	LogDir      string `yaml:"log_dir" env:"INSURECONTENT_LOG_DIR"`
	DownloadDir string `yaml:"download_dir" env:"INSURECONTENT_DOWNLOAD_DIR"`
}

// DashboardConfig tunes the dashboard.
type DashboardConfig struct {
	RecentLimit int `yaml:"recent_limit" env:"INSURECONTENT_RECENT_LIMIT"`
}

// LoggingConfig tunes the diagnostics log.
type LoggingConfig struct {
	Level string `yaml:"level" env:"INSURECONTENT_LOG_LEVEL"`
}

// Settings models config.yaml.
type Settings struct {
	Version   int             `yaml:"version"`
	API       APIConfig       `yaml:"api"`
	Auth      AuthConfig      `yaml:"auth"`
	Paths     PathsConfig     `yaml:"paths"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// Config holds the resolved runtime configuration.
type Config struct {
	// Path is the config file that was loaded.
	Path string
	// Dir is the directory holding Path; relative paths resolve against it.
	Dir string

	Settings Settings
}

// DefaultPath returns $INSURECONTENT_CONFIG or the per-user config location.
func DefaultPath() (string, error) {
	if path := strings.TrimSpace(os.Getenv(PathEnv)); path != "" {
		return path, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: locate user config dir: %w", err)
	}
	return filepath.Join(base, AppDir, FileName), nil
}

// Load reads the config at path (DefaultPath when empty), creating it with
// defaults if missing, then applies environment overrides.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		resolved, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = resolved
	}
	path = filepath.Clean(path)
	if err := ensureConfigFile(path); err != nil {
		return nil, err
	}
	cfg := &Config{
		Path:     path,
		Dir:      filepath.Dir(path),
		Settings: defaultSettings(),
	}
	if err := cfg.load(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: read %s: %w", c.Path, err)
		}
		data = nil
	}
	parsed := defaultSettings()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return fmt.Errorf("config: parse %s: %w", c.Path, err)
		}
	}
	if err := cleanenv.ReadEnv(&parsed); err != nil {
		return fmt.Errorf("config: read env: %w", err)
	}
	parsed.applyDefaults()
	parsed.normalize(c.Dir)
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	c.Settings = parsed
	return nil
}

// RememberEmail stores the last successful login email. Only auth.email is
// rewritten in the file; env overrides and resolved paths stay out of it.
func (c *Config) RememberEmail(email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || email == c.Settings.Auth.Email {
		return nil
	}
	if err := c.setFileValue([]string{"auth", "email"}, email); err != nil {
		return err
	}
	c.Settings.Auth.Email = email
	return nil
}

// setFileValue edits one scalar in the YAML document at Path, keeping the
// rest of the file (comments included) as written.
func (c *Config) setFileValue(keys []string, value string) error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: read %s: %w", c.Path, err)
		}
		data = []byte(defaultConfigYAML)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("config: parse %s: %w", c.Path, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	node := doc.Content[0]
	for _, key := range keys {
		node = mappingValue(node, key)
	}
	node.Kind = yaml.ScalarNode
	node.Tag = "!!str"
	node.Value = value
	node.Content = nil

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("config: ensure dir: %w", err)
	}
	if err := os.WriteFile(c.Path, out, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", c.Path, err)
	}
	return nil
}

// mappingValue returns the value node for key, adding the key when absent.
func mappingValue(m *yaml.Node, key string) *yaml.Node {
	if m.Kind != yaml.MappingNode {
		m.Kind = yaml.MappingNode
		m.Tag = "!!map"
		m.Value = ""
		m.Content = nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	k := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
	v := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str"}
	m.Content = append(m.Content, k, v)
	return v
}

// LogDir returns the directory for the activity and diagnostics logs.
func (c *Config) LogDir() string {
	return c.Settings.Paths.LogDir
}

// DownloadDir returns where downloaded images are written.
func (c *Config) DownloadDir() string {
	return c.Settings.Paths.DownloadDir
}

func ensureConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: ensure dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o600); err != nil {
		return fmt.Errorf("config: write default %s: %w", path, err)
	}
	return nil
}

func defaultSettings() Settings {
	return Settings{
		Version: 1,
		API: APIConfig{
			BaseURL:           defaultBaseURL,
			Timeout:           defaultTimeout,
			RequestsPerSecond: defaultRPS,
			Burst:             defaultBurst,
		},
		Dashboard: DashboardConfig{RecentLimit: defaultRecentLimit},
		Logging:   LoggingConfig{Level: defaultLogLevel},
	}
}

func (s *Settings) applyDefaults() {
	if s.Version == 0 {
		s.Version = 1
	}
	if strings.TrimSpace(s.API.BaseURL) == "" {
		s.API.BaseURL = defaultBaseURL
	}
	if s.API.Timeout <= 0 {
		s.API.Timeout = defaultTimeout
	}
	if s.API.Burst <= 0 {
		s.API.Burst = defaultBurst
	}
	if s.Dashboard.RecentLimit <= 0 {
		s.Dashboard.RecentLimit = defaultRecentLimit
	}
	if strings.TrimSpace(s.Logging.Level) == "" {
		s.Logging.Level = defaultLogLevel
	}
}

func (s *Settings) normalize(base string) {
	s.API.BaseURL = strings.TrimRight(strings.TrimSpace(s.API.BaseURL), "/")
	s.Auth.Email = strings.ToLower(strings.TrimSpace(s.Auth.Email))
	s.Auth.Token = strings.TrimSpace(s.Auth.Token)
	s.Paths.LogDir = resolvePath(base, s.Paths.LogDir, "logs")
	s.Paths.DownloadDir = resolvePath(base, s.Paths.DownloadDir, "downloads")
	s.Logging.Level = strings.ToLower(strings.TrimSpace(s.Logging.Level))
}

func (s *Settings) validate() error {
	if s.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	parsed, err := url.Parse(s.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("api.base_url must use http or https")
	}
	if parsed.Host == "" {
		return fmt.Errorf("api.base_url must include a host")
	}
	if s.API.RequestsPerSecond < 0 {
		return fmt.Errorf("api.requests_per_second must be >= 0")
	}
	switch s.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	return nil
}

func resolvePath(base, candidate, fallback string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return filepath.Join(base, fallback)
	}
	if strings.HasPrefix(trimmed, "~"+string(filepath.Separator)) {
		if home, err := os.UserHomeDir(); err == nil {
			trimmed = filepath.Join(home, trimmed[2:])
		}
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}
