// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/Andre-cardia/c4marketing-sub000/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete c4route configuration.
type Config struct {
	Routing   RoutingConfig   `toml:"routing" json:"routing"`
	Reasoner  ReasonerConfig  `toml:"reasoner" json:"reasoner"`
	Embedding EmbeddingConfig `toml:"embedding" json:"embedding"`
	Store     StoreConfig     `toml:"store" json:"store"`
	Retrieval RetrievalConfig `toml:"retrieval" json:"retrieval"`
	Log       LogConfig       `toml:"log" json:"log"`
}

// RoutingConfig controls the hybrid router.
type RoutingConfig struct {
	// ReasoningEnabled turns the model-backed reasoner on. Hard gates and the
	// heuristic classifier always run.
	ReasoningEnabled bool `toml:"reasoning_enabled" json:"reasoning_enabled"`
	// ConfidenceThreshold is the minimum reasoner confidence accepted (inclusive)
	ConfidenceThreshold float64 `toml:"confidence_threshold" json:"confidence_threshold"`
	// ReasonerTimeout bounds one reasoner call, e.g. "8s"
	ReasonerTimeout time.Duration `toml:"reasoner_timeout" json:"reasoner_timeout"`
	// ReasonerRPS and ReasonerBurst bound reasoner calls across tenants
	ReasonerRPS   float64 `toml:"reasoner_rps" json:"reasoner_rps"`
	ReasonerBurst int     `toml:"reasoner_burst" json:"reasoner_burst"`
	// TenantRPS and TenantBurst bound reasoner calls per tenant
	TenantRPS   float64 `toml:"tenant_rps" json:"tenant_rps"`
	TenantBurst int     `toml:"tenant_burst" json:"tenant_burst"`
}

// ReasonerConfig selects the model behind the reasoner.
type ReasonerConfig struct {
	// Provider is "openai", "ollama" or "none"
	Provider string `toml:"provider" json:"provider"`
	BaseURL  string `toml:"base_url" json:"base_url,omitempty"`
	APIKey   string `toml:"api_key" json:"api_key,omitempty"`
	Model    string `toml:"model" json:"model"`
}

// EmbeddingConfig selects the embedder.
type EmbeddingConfig struct {
	// Provider is "openai" or "ollama"
	Provider   string `toml:"provider" json:"provider"`
	BaseURL    string `toml:"base_url" json:"base_url,omitempty"`
	APIKey     string `toml:"api_key" json:"api_key,omitempty"`
	Model      string `toml:"model" json:"model"`
	Dimensions int    `toml:"dimensions" json:"dimensions,omitempty"`
	// CacheSize is the number of query embeddings kept in memory (0 disables)
	CacheSize int `toml:"cache_size" json:"cache_size"`
}

// StoreConfig selects the document store.
type StoreConfig struct {
	// Driver is "postgres" or "sqlite"
	Driver string `toml:"driver" json:"driver"`
	// DSN is the Postgres connection string
	DSN string `toml:"dsn" json:"dsn,omitempty"`
	// Path is the SQLite database file
	Path string `toml:"path" json:"path,omitempty"`
	// AllowedRPCs are the structured-query functions db_query may run.
	// Empty means the listing queries the router knows about.
	AllowedRPCs []string `toml:"allowed_rpcs" json:"allowed_rpcs,omitempty"`
}

// RetrievalConfig tunes the retrieval executor.
type RetrievalConfig struct {
	MinSimilarity float64 `toml:"min_similarity" json:"min_similarity"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level string `toml:"level" json:"level"`
	JSON  bool   `toml:"json" json:"json"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values: heuristic routing
// only, local Ollama embeddings and a SQLite store under ~/.c4route.
func Default() *Config {
	return &Config{
		Routing: RoutingConfig{
			ReasoningEnabled:    false,
			ConfidenceThreshold: 0.7,
			ReasonerTimeout:     8 * time.Second,
			ReasonerRPS:         5,
			ReasonerBurst:       10,
			TenantRPS:           1,
			TenantBurst:         5,
		},

		Reasoner: ReasonerConfig{
			Provider: "none",
			Model:    "gpt-4o-mini",
		},

		Embedding: EmbeddingConfig{
			Provider:  "ollama",
			BaseURL:   "http://127.0.0.1:11434",
			Model:     "nomic-embed-text",
			CacheSize: 512,
		},

		Store: StoreConfig{
			Driver: "sqlite",
			Path:   defaultStorePath(),
		},

		Retrieval: RetrievalConfig{
			MinSimilarity: 0,
		},

		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultStorePath() string {
	dir, err := ConfigDir()
	if err != nil {
		return "c4route.db"
	}
	return filepath.Join(dir, "documents.db")
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the c4route configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".c4route"), nil
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

// Load loads configuration from ~/.c4route/config.toml, then config.json,
// and falls back to defaults. Environment overrides are applied last.
func Load() (*Config, error) {
	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
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

// LoadFromPath loads configuration from a specific file path with full
// validation. Files ending in .json are JSON; anything else is TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.fillDefaults()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes cfg to path as TOML with 0600 permissions. Secrets are
// written as-is; the file is the user's own.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# c4route configuration file\n")
	buf.WriteString("# Environment variables (C4ROUTE_*) override these values.\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// fillDefaults fills in any missing values with defaults. Booleans are left
// alone: false is a valid explicit setting.
func (c *Config) fillDefaults() {
	d := Default()

	if c.Routing.ConfidenceThreshold == 0 {
		c.Routing.ConfidenceThreshold = d.Routing.ConfidenceThreshold
	}
	if c.Routing.ReasonerTimeout == 0 {
		c.Routing.ReasonerTimeout = d.Routing.ReasonerTimeout
	}
	if c.Routing.ReasonerRPS == 0 {
		c.Routing.ReasonerRPS = d.Routing.ReasonerRPS
	}
	if c.Routing.ReasonerBurst == 0 {
		c.Routing.ReasonerBurst = d.Routing.ReasonerBurst
	}
	if c.Routing.TenantRPS == 0 {
		c.Routing.TenantRPS = d.Routing.TenantRPS
	}
	if c.Routing.TenantBurst == 0 {
		c.Routing.TenantBurst = d.Routing.TenantBurst
	}

	if c.Reasoner.Provider == "" {
		c.Reasoner.Provider = d.Reasoner.Provider
	}
	if c.Reasoner.Model == "" {
		c.Reasoner.Model = d.Reasoner.Model
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = d.Embedding.Provider
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = d.Embedding.Model
	}
	if c.Embedding.Provider == "ollama" && c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = d.Embedding.BaseURL
	}

	if c.Store.Driver == "" {
		c.Store.Driver = d.Store.Driver
	}
	if c.Store.Driver == "sqlite" && c.Store.Path == "" {
		c.Store.Path = d.Store.Path
	}

	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
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

// Has reports whether field failed validation.
func (e ValidateErrors) Has(field string) bool {
	for _, err := range e {
		if err.Field == field {
			return true
		}
	}
	return false
}

// Validate validates the configuration. The returned error is a
// ValidateErrors listing every problem found.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// ==========================================================================
	// Routing
	// ==========================================================================

	if c.Routing.ConfidenceThreshold <= 0 || c.Routing.ConfidenceThreshold > 1 {
		add("routing.confidence_threshold", "must be in (0, 1], got %g", c.Routing.ConfidenceThreshold)
	}
	if c.Routing.ReasonerTimeout < 0 {
		add("routing.reasoner_timeout", "must not be negative")
	}
	if c.Routing.ReasonerRPS < 0 || c.Routing.TenantRPS < 0 {
		add("routing.reasoner_rps", "rates must not be negative")
	}
	if c.Routing.ReasonerBurst < 0 || c.Routing.TenantBurst < 0 {
		add("routing.reasoner_burst", "bursts must not be negative")
	}

	// ==========================================================================
	// Reasoner
	// ==========================================================================

	switch strings.ToLower(c.Reasoner.Provider) {
	case "none":
		if c.Routing.ReasoningEnabled {
			add("reasoner.provider", "reasoning is enabled but no provider is set")
		}
	case "openai":
		if c.Routing.ReasoningEnabled && c.Reasoner.APIKey == "" && c.Reasoner.BaseURL == "" {
			add("reasoner.api_key", "required for the openai provider")
		}
	case "ollama":
	default:
		add("reasoner.provider", "invalid provider '%s', must be one of: openai, ollama, none", c.Reasoner.Provider)
	}
	if c.Reasoner.BaseURL != "" && !validURL(c.Reasoner.BaseURL) {
		add("reasoner.base_url", "invalid URL '%s'", c.Reasoner.BaseURL)
	}

	// ==========================================================================
	// Embedding
	// ==========================================================================

	switch strings.ToLower(c.Embedding.Provider) {
	case "openai":
		if c.Embedding.APIKey == "" && c.Embedding.BaseURL == "" {
			add("embedding.api_key", "required for the openai provider")
		}
	case "ollama":
	default:
		add("embedding.provider", "invalid provider '%s', must be one of: openai, ollama", c.Embedding.Provider)
	}
	if c.Embedding.BaseURL != "" && !validURL(c.Embedding.BaseURL) {
		add("embedding.base_url", "invalid URL '%s'", c.Embedding.BaseURL)
	}
	if c.Embedding.Dimensions < 0 {
		add("embedding.dimensions", "must not be negative")
	}
	if c.Embedding.CacheSize < 0 {
		add("embedding.cache_size", "must not be negative")
	}

	// ==========================================================================
	// Store
	// ==========================================================================

	switch strings.ToLower(c.Store.Driver) {
	case "postgres":
		if c.Store.DSN == "" {
			add("store.dsn", "required for the postgres driver")
		}
	case "sqlite":
		if c.Store.Path == "" {
			add("store.path", "required for the sqlite driver")
		}
	default:
		add("store.driver", "invalid driver '%s', must be one of: postgres, sqlite", c.Store.Driver)
	}

	// ==========================================================================
	// Retrieval and logging
	// ==========================================================================

	if c.Retrieval.MinSimilarity < -1 || c.Retrieval.MinSimilarity > 1 {
		add("retrieval.min_similarity", "must be in [-1, 1], got %g", c.Retrieval.MinSimilarity)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("log.level", "invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported variables:
//   - C4ROUTE_REASONING: enables the reasoner ("1" or "true")
//   - C4ROUTE_CONFIDENCE_THRESHOLD: overrides routing.confidence_threshold
//   - C4ROUTE_REASONER_PROVIDER, C4ROUTE_REASONER_MODEL, C4ROUTE_REASONER_URL
//   - C4ROUTE_EMBEDDING_PROVIDER, C4ROUTE_EMBEDDING_MODEL, C4ROUTE_EMBEDDING_URL
//   - C4ROUTE_OPENAI_KEY: API key for every openai provider without one
//   - C4ROUTE_STORE_DRIVER, C4ROUTE_DATABASE_URL, C4ROUTE_STORE_PATH
//   - C4ROUTE_LOG_LEVEL, C4ROUTE_LOG_JSON
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("C4ROUTE_REASONING"); v != "" {
		c.Routing.ReasoningEnabled = envBool(v)
	}
	if v := os.Getenv("C4ROUTE_CONFIDENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Routing.ConfidenceThreshold = f
		}
	}

	setString(&c.Reasoner.Provider, "C4ROUTE_REASONER_PROVIDER")
	setString(&c.Reasoner.Model, "C4ROUTE_REASONER_MODEL")
	setString(&c.Reasoner.BaseURL, "C4ROUTE_REASONER_URL")

	setString(&c.Embedding.Provider, "C4ROUTE_EMBEDDING_PROVIDER")
	setString(&c.Embedding.Model, "C4ROUTE_EMBEDDING_MODEL")
	setString(&c.Embedding.BaseURL, "C4ROUTE_EMBEDDING_URL")

	if key := os.Getenv("C4ROUTE_OPENAI_KEY"); key != "" {
		if c.Reasoner.APIKey == "" {
			c.Reasoner.APIKey = key
		}
		if c.Embedding.APIKey == "" {
			c.Embedding.APIKey = key
		}
	}

	setString(&c.Store.Driver, "C4ROUTE_STORE_DRIVER")
	setString(&c.Store.DSN, "C4ROUTE_DATABASE_URL")
	setString(&c.Store.Path, "C4ROUTE_STORE_PATH")

	setString(&c.Log.Level, "C4ROUTE_LOG_LEVEL")
	if v := os.Getenv("C4ROUTE_LOG_JSON"); v != "" {
		c.Log.JSON = envBool(v)
	}
}

func setString(dst *string, name string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func envBool(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

// =============================================================================
// GET HELPER (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "store.driver").
func (c *Config) Get(key string) (any, error) {
	if key == "" {
		return nil, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return nil, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field.Interface(), nil
		}
		if field.Kind() != reflect.Struct {
			return nil, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return nil, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field
// equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})
	var b strings.Builder
	for _, part := range parts {
		b.WriteString(strings.ToUpper(part[:1]) + part[1:])
	}
	return b.String()
}

// =============================================================================
// CLONE / STRING
// =============================================================================

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Store.AllowedRPCs != nil {
		clone.Store.AllowedRPCs = append([]string(nil), c.Store.AllowedRPCs...)
	}
	return &clone
}

// Redacted returns a copy with API keys and the DSN password masked.
func (c *Config) Redacted() *Config {
	safe := c.Clone()
	if safe.Reasoner.APIKey != "" {
		safe.Reasoner.APIKey = "[REDACTED]"
	}
	if safe.Embedding.APIKey != "" {
		safe.Embedding.APIKey = "[REDACTED]"
	}
	if safe.Store.DSN != "" {
		safe.Store.DSN = redactDSN(safe.Store.DSN)
	}
	return safe
}

// String returns the config as JSON with secrets redacted.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}

// redactDSN hides the password of a URL-form DSN. Other forms are hidden
// entirely.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return "[REDACTED]"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
