// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/eyeq-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete eyeq configuration.
type Config struct {
	Backend BackendConfig `toml:"backend" json:"backend"`
	Storage StorageConfig `toml:"storage" json:"storage"`
	UI      UIConfig      `toml:"ui" json:"ui"`
	Logging LoggingConfig `toml:"logging" json:"logging"`
}

// BackendConfig locates the compliance-analysis service.
type BackendConfig struct {
	// URL is the base URL of the analysis backend
	URL          string `toml:"url" json:"url"`
	AnalyzePath  string `toml:"analyze_path" json:"analyze_path"`
	UploadPath   string `toml:"upload_path" json:"upload_path"`
	FeedbackPath string `toml:"feedback_path" json:"feedback_path"`
	HealthPath   string `toml:"health_path" json:"health_path"`
	// ReviewPath streams a comprehensive review of a whole document
	ReviewPath    string `toml:"review_path" json:"review_path"`
	KnowledgePath string `toml:"knowledge_path" json:"knowledge_path"`

	// SessionID is sent with every analysis request. Empty means each
	// conversation uses its own id, so backend context follows the chat.
	SessionID string `toml:"session_id" json:"session_id"`

	// RequestTimeoutSecs bounds non-streaming requests (upload, feedback, health)
	RequestTimeoutSecs int `toml:"request_timeout_secs" json:"request_timeout_secs"`
	// IdleTimeoutSecs settles a stream as failed when no event arrives in time
	IdleTimeoutSecs int `toml:"idle_timeout_secs" json:"idle_timeout_secs"`
	// MaxRetries applies to non-streaming requests only
	MaxRetries int `toml:"max_retries" json:"max_retries"`
	// RateLimitPerSec caps outbound requests; 0 disables the limiter
	RateLimitPerSec float64 `toml:"rate_limit_per_sec" json:"rate_limit_per_sec"`
}

// StorageConfig selects where conversations are persisted.
type StorageConfig struct {
	// Dir defaults to ~/.eyeq/data
	Dir string `toml:"dir" json:"dir"`
	// Driver is "file" or "sqlite"
	Driver string `toml:"driver" json:"driver"`
}

// UIConfig contains terminal UI preferences.
type UIConfig struct {
	// Theme is "auto", "dark" or "light"; a theme chosen in the TUI is
	// persisted in the store and wins over this value
	Theme          string `toml:"theme" json:"theme"`
	RenderMarkdown bool   `toml:"render_markdown" json:"render_markdown"`
}

// LoggingConfig controls the application log.
type LoggingConfig struct {
	// Level is debug, info, warn or error
	Level string `toml:"level" json:"level"`
	// File defaults to ~/.eyeq/eyeq.log; "-" logs to stderr
	File string `toml:"file" json:"file"`
}

// RequestTimeout returns the non-streaming request timeout.
func (b BackendConfig) RequestTimeout() time.Duration {
	return time.Duration(b.RequestTimeoutSecs) * time.Second
}

// IdleTimeout returns the stream idle timeout.
func (b BackendConfig) IdleTimeout() time.Duration {
	return time.Duration(b.IdleTimeoutSecs) * time.Second
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:                "http://127.0.0.1:5000",
			AnalyzePath:        "/api/analyze",
			UploadPath:         "/api/upload",
			FeedbackPath:       "/api/feedback",
			HealthPath:         "/api/health",
			ReviewPath:         "/api/comprehensive-review",
			KnowledgePath:      "/api/knowledge",
			RequestTimeoutSecs: 60,
			IdleTimeoutSecs:    120,
			MaxRetries:         3,
			RateLimitPerSec:    5,
		},
		Storage: StorageConfig{
			Driver: "file",
		},
		UI: UIConfig{
			Theme:          "auto",
			RenderMarkdown: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the eyeq configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv("EYEQ_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".eyeq"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration. An explicit path wins; otherwise the TOML file,
// then the JSON file, then defaults are used. .env files and environment
// overrides are applied last, then the result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	loadDotEnv()
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ResolvePath returns the file Load would read for path, or "" when only
// defaults apply.
func ResolvePath(path string) string {
	if path != "" {
		return path
	}
	return findConfigFile()
}

// findConfigFile returns the first existing default config file, or "".
func findConfigFile() string {
	for _, fn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		p, err := fn()
		if err != nil {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func loadFile(cfg *Config, path string) error {
	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
		return nil
	}
	if err := LoadTOML(cfg, path); err != nil {
		return fmt.Errorf("failed to load TOML config from %s: %w", path, err)
	}
	return nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// loadDotEnv loads .env from the working directory and the config directory.
// godotenv never overwrites variables that are already set, so the real
// environment wins.
func loadDotEnv() {
	candidates := []string{".env"}
	if dir, err := ConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, ".env"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

// ApplyEnvOverrides applies EYEQ_* environment variables:
//   - EYEQ_BACKEND_URL: overrides backend.url
//   - EYEQ_SESSION_ID: overrides backend.session_id
//   - EYEQ_IDLE_TIMEOUT: overrides backend.idle_timeout_secs
//   - EYEQ_STORAGE_DIR: overrides storage.dir
//   - EYEQ_STORAGE_DRIVER: overrides storage.driver
//   - EYEQ_THEME: overrides ui.theme
//   - EYEQ_LOG_LEVEL: overrides logging.level
//   - EYEQ_LOG_FILE: overrides logging.file
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("EYEQ_BACKEND_URL"); v != "" {
		c.Backend.URL = v
	}
	if v := os.Getenv("EYEQ_SESSION_ID"); v != "" {
		c.Backend.SessionID = v
	}
	if v := os.Getenv("EYEQ_IDLE_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.Backend.IdleTimeoutSecs = secs
		}
	}
	if v := os.Getenv("EYEQ_STORAGE_DIR"); v != "" {
		c.Storage.Dir = v
	}
	if v := os.Getenv("EYEQ_STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("EYEQ_THEME"); v != "" {
		c.UI.Theme = v
	}
	if v := os.Getenv("EYEQ_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("EYEQ_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
}

// SetDefaults fills empty fields from Default and resolves derived paths.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Backend.URL == "" {
		c.Backend.URL = d.Backend.URL
	}
	c.Backend.URL = strings.TrimRight(c.Backend.URL, "/")
	if c.Backend.AnalyzePath == "" {
		c.Backend.AnalyzePath = d.Backend.AnalyzePath
	}
	if c.Backend.UploadPath == "" {
		c.Backend.UploadPath = d.Backend.UploadPath
	}
	if c.Backend.FeedbackPath == "" {
		c.Backend.FeedbackPath = d.Backend.FeedbackPath
	}
	if c.Backend.HealthPath == "" {
		c.Backend.HealthPath = d.Backend.HealthPath
	}
	if c.Backend.ReviewPath == "" {
		c.Backend.ReviewPath = d.Backend.ReviewPath
	}
	if c.Backend.KnowledgePath == "" {
		c.Backend.KnowledgePath = d.Backend.KnowledgePath
	}
	if c.Backend.RequestTimeoutSecs == 0 {
		c.Backend.RequestTimeoutSecs = d.Backend.RequestTimeoutSecs
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = d.Storage.Driver
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}

	if dir, err := ConfigDir(); err == nil {
		if c.Storage.Dir == "" {
			c.Storage.Dir = filepath.Join(dir, "data")
		}
		if c.Logging.File == "" {
			c.Logging.File = filepath.Join(dir, "eyeq.log")
		}
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes cfg to path with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var sb strings.Builder
	sb.WriteString("# eyeq configuration file\n")
	sb.WriteString("# Environment variables (EYEQ_*) override these values.\n\n")

	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFileWithDir(path, []byte(sb.String()), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// String renders the config as TOML.
func (c *Config) String() string {
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(c); err != nil {
		return fmt.Sprintf("<unencodable config: %v>", err)
	}
	return sb.String()
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ErrInvalidTheme is wrapped by validation errors for ui.theme.
var ErrInvalidTheme = errors.New("invalid theme")

// ValidTheme reports whether t is a known theme name.
func ValidTheme(t string) bool {
	switch strings.ToLower(t) {
	case "auto", "dark", "light":
		return true
	}
	return false
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.Backend.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "backend.url",
			Message: fmt.Sprintf("invalid URL '%s', must be http(s)://host[:port]", c.Backend.URL),
		})
	}
	paths := []struct{ field, value string }{
		{"backend.analyze_path", c.Backend.AnalyzePath},
		{"backend.upload_path", c.Backend.UploadPath},
		{"backend.feedback_path", c.Backend.FeedbackPath},
		{"backend.health_path", c.Backend.HealthPath},
		{"backend.review_path", c.Backend.ReviewPath},
		{"backend.knowledge_path", c.Backend.KnowledgePath},
	}
	for _, p := range paths {
		if !strings.HasPrefix(p.value, "/") {
			errs = append(errs, ValidationError{Field: p.field, Message: "must start with '/'"})
		}
	}
	if c.Backend.RequestTimeoutSecs < 0 {
		errs = append(errs, ValidationError{Field: "backend.request_timeout_secs", Message: "must not be negative"})
	}
	if c.Backend.IdleTimeoutSecs < 0 {
		errs = append(errs, ValidationError{Field: "backend.idle_timeout_secs", Message: "must not be negative (0 disables)"})
	}
	if c.Backend.MaxRetries < 0 || c.Backend.MaxRetries > 10 {
		errs = append(errs, ValidationError{Field: "backend.max_retries", Message: "must be between 0 and 10"})
	}
	if c.Backend.RateLimitPerSec < 0 {
		errs = append(errs, ValidationError{Field: "backend.rate_limit_per_sec", Message: "must not be negative"})
	}

	switch strings.ToLower(c.Storage.Driver) {
	case "file", "sqlite":
	default:
		errs = append(errs, ValidationError{
			Field:   "storage.driver",
			Message: fmt.Sprintf("invalid driver '%s', must be one of: file, sqlite", c.Storage.Driver),
		})
	}

	if !ValidTheme(c.UI.Theme) {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("%v '%s', must be one of: auto, dark, light", ErrInvalidTheme, c.UI.Theme),
		})
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
