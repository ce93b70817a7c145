// Package config holds the gateway service configuration: HTTP
// surface, query limits, cache TTL policy, batching and the complexity
// weight table. Configuration is a JSON file; Validate applies
// defaults and range checks so a zero Config is runnable.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/s0mar1/tftai.gg-sub000/errors"
)

// Config is the root service configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error (default: "info")
	LogLevel string `json:"log_level,omitempty"`

	Server  ServerConfig  `json:"server"`
	Limits  LimitsConfig  `json:"limits"`
	Cache   CacheConfig   `json:"cache"`
	Batch   BatchConfig   `json:"batch"`
	Weights WeightsConfig `json:"weights"`
	NATS    NATSConfig    `json:"nats"`
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	// BindAddress is the HTTP bind address (default: ":8080")
	BindAddress string `json:"bind_address"`

	// Path is the query endpoint path (default: "/graphql")
	Path string `json:"path"`

	// MetricsAddress serves /metrics when non-empty (default: ":9090")
	MetricsAddress string `json:"metrics_address,omitempty"`

	// EnablePlayground serves the GraphQL playground UI (default: true)
	EnablePlayground *bool `json:"enable_playground,omitempty"`

	// EnableCORS enables CORS headers (default: true)
	EnableCORS *bool `json:"enable_cors,omitempty"`

	// CORSOrigins lists allowed CORS origins (default: ["*"])
	CORSOrigins []string `json:"cors_origins,omitempty"`

	// TimeoutStr is the per-request timeout (default: "30s")
	TimeoutStr string `json:"timeout,omitempty"`

	timeout time.Duration
}

// LimitsConfig holds the query rejection thresholds.
type LimitsConfig struct {
	// MaxComplexity rejects queries scoring above it (default: 1000)
	MaxComplexity int `json:"max_complexity,omitempty"`

	// MaxDepth rejects queries nesting deeper (default: 10)
	MaxDepth int `json:"max_depth,omitempty"`
}

// CacheConfig holds the response cache TTL policy and scoping.
type CacheConfig struct {
	// BaseTTLStr is the TTL at complexity 10 (default: "300s")
	BaseTTLStr string `json:"base_ttl,omitempty"`

	// MaxTTLStr bounds entry staleness (default: "3600s")
	MaxTTLStr string `json:"max_ttl,omitempty"`

	// TagTTLStr is the tag index entry TTL (default: "2h")
	TagTTLStr string `json:"tag_ttl,omitempty"`

	// CapMultiplier bounds the complexity scaling factor (default: 6)
	CapMultiplier float64 `json:"cap_multiplier,omitempty"`

	// PrincipalScopedOps lists operations whose responses vary by
	// caller and therefore get principal-scoped cache keys.
	PrincipalScopedOps []string `json:"principal_scoped_ops,omitempty"`

	baseTTL time.Duration
	maxTTL  time.Duration
	tagTTL  time.Duration
}

// BatchConfig holds the per-request loader settings.
type BatchConfig struct {
	// MaxBatchSize caps keys per backend call (default: 100)
	MaxBatchSize int `json:"max_batch_size,omitempty"`

	// WaitStr widens the coalescing window (default: "1ms")
	WaitStr string `json:"wait,omitempty"`

	wait time.Duration
}

// WeightsConfig holds the complexity weight table.
type WeightsConfig struct {
	// DefaultWeight is the cost of unlisted fields (default: 1)
	DefaultWeight int `json:"default_weight,omitempty"`

	// ListMultiplier boosts collection-shaped fields (default: 10)
	ListMultiplier int `json:"list_multiplier,omitempty"`

	// Fields maps "parent.field" (or bare "field") to a weight. There
	// is no schema: the parent segment is the enclosing field's name,
	// or "Query" for top-level fields. "Query.champions" prices the
	// root field, "champions.name" a field nested under it.
	Fields map[string]int `json:"fields,omitempty"`
}

// NATSConfig holds the optional JetStream KV backend settings. With an
// empty URL the gateway runs on the in-memory store.
type NATSConfig struct {
	// URL is the NATS server URL; empty disables NATS
	URL string `json:"url,omitempty"`

	// Bucket is the KV bucket name (default: "tft-response-cache")
	Bucket string `json:"bucket,omitempty"`
}

// Default returns the production defaults, already validated.
func Default() *Config {
	cfg := &Config{}
	// Validate on a zero Config only fills defaults.
	_ = cfg.Validate()
	return cfg
}

// Load reads and validates a JSON config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "Config", "Load", "read file")
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load", "parse JSON")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate applies defaults and checks ranges.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "":
		c.LogLevel = "info"
	case "debug", "info", "warn", "error":
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("unknown log_level %q", c.LogLevel))
	}

	if err := c.Server.validate(); err != nil {
		return err
	}
	if err := c.Limits.validate(); err != nil {
		return err
	}
	if err := c.Cache.validate(); err != nil {
		return err
	}
	if err := c.Batch.validate(); err != nil {
		return err
	}
	if err := c.Weights.validate(); err != nil {
		return err
	}
	if c.NATS.URL != "" && c.NATS.Bucket == "" {
		c.NATS.Bucket = "tft-response-cache"
	}
	return nil
}

func (s *ServerConfig) validate() error {
	if s.BindAddress == "" {
		s.BindAddress = ":8080"
	}
	if s.Path == "" {
		s.Path = "/graphql"
	}
	if s.Path[0] != '/' {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "ServerConfig", "validate",
			"path must start with /")
	}
	if s.MetricsAddress == "" {
		s.MetricsAddress = ":9090"
	}

	if s.TimeoutStr == "" {
		s.timeout = 30 * time.Second
	} else {
		timeout, err := time.ParseDuration(s.TimeoutStr)
		if err != nil {
			return errors.WrapInvalid(err, "ServerConfig", "validate",
				fmt.Sprintf("invalid timeout format: %s", s.TimeoutStr))
		}
		if timeout < 100*time.Millisecond || timeout > 5*time.Minute {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "ServerConfig", "validate",
				"timeout must be between 100ms and 5m")
		}
		s.timeout = timeout
	}

	if s.EnablePlayground == nil {
		s.EnablePlayground = boolPtr(true)
	}
	if s.EnableCORS == nil {
		s.EnableCORS = boolPtr(true)
	}
	if *s.EnableCORS && len(s.CORSOrigins) == 0 {
		s.CORSOrigins = []string{"*"}
	}
	return nil
}

func (l *LimitsConfig) validate() error {
	if l.MaxComplexity == 0 {
		l.MaxComplexity = 1000
	}
	if l.MaxComplexity < 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "LimitsConfig", "validate",
			"max_complexity must be positive")
	}

	if l.MaxDepth == 0 {
		l.MaxDepth = 10
	}
	if l.MaxDepth < 1 || l.MaxDepth > 50 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "LimitsConfig", "validate",
			"max_depth must be between 1 and 50")
	}
	return nil
}

func (c *CacheConfig) validate() error {
	var err error
	if c.baseTTL, err = parseTTL(c.BaseTTLStr, 300*time.Second, "base_ttl"); err != nil {
		return err
	}
	if c.maxTTL, err = parseTTL(c.MaxTTLStr, 3600*time.Second, "max_ttl"); err != nil {
		return err
	}
	if c.tagTTL, err = parseTTL(c.TagTTLStr, 2*time.Hour, "tag_ttl"); err != nil {
		return err
	}
	if c.maxTTL < c.baseTTL {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "CacheConfig", "validate",
			"max_ttl must be at least base_ttl")
	}

	if c.CapMultiplier == 0 {
		c.CapMultiplier = 6
	}
	if c.CapMultiplier < 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "CacheConfig", "validate",
			"cap_multiplier must be at least 1")
	}
	return nil
}

func (b *BatchConfig) validate() error {
	if b.MaxBatchSize == 0 {
		b.MaxBatchSize = 100
	}
	if b.MaxBatchSize < 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "BatchConfig", "validate",
			"max_batch_size must be positive")
	}

	if b.WaitStr == "" {
		b.wait = time.Millisecond
	} else {
		wait, err := time.ParseDuration(b.WaitStr)
		if err != nil {
			return errors.WrapInvalid(err, "BatchConfig", "validate",
				fmt.Sprintf("invalid wait format: %s", b.WaitStr))
		}
		if wait < 0 || wait > time.Second {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "BatchConfig", "validate",
				"wait must be between 0 and 1s")
		}
		b.wait = wait
	}
	return nil
}

func (w *WeightsConfig) validate() error {
	if w.DefaultWeight == 0 {
		w.DefaultWeight = 1
	}
	if w.DefaultWeight < 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "WeightsConfig", "validate",
			"default_weight must be positive")
	}

	if w.ListMultiplier == 0 {
		w.ListMultiplier = 10
	}
	if w.ListMultiplier < 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "WeightsConfig", "validate",
			"list_multiplier must be positive")
	}

	for field, weight := range w.Fields {
		if weight < 1 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "WeightsConfig", "validate",
				fmt.Sprintf("weight for %q must be positive", field))
		}
	}
	return nil
}

func parseTTL(raw string, def time.Duration, name string) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.WrapInvalid(err, "CacheConfig", "validate",
			fmt.Sprintf("invalid %s format: %s", name, raw))
	}
	if d < time.Second {
		return 0, errors.WrapInvalid(errors.ErrInvalidConfig, "CacheConfig", "validate",
			fmt.Sprintf("%s must be at least 1s", name))
	}
	return d, nil
}

// Timeout returns the parsed per-request timeout.
func (s *ServerConfig) Timeout() time.Duration { return s.timeout }

// BaseTTL returns the parsed base TTL.
func (c *CacheConfig) BaseTTL() time.Duration { return c.baseTTL }

// MaxTTL returns the parsed TTL bound.
func (c *CacheConfig) MaxTTL() time.Duration { return c.maxTTL }

// TagTTL returns the parsed tag index TTL.
func (c *CacheConfig) TagTTL() time.Duration { return c.tagTTL }

// Wait returns the parsed coalescing window.
func (b *BatchConfig) Wait() time.Duration { return b.wait }

func boolPtr(b bool) *bool { return &b }
