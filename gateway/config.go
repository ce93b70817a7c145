package gateway

import (
	"time"

	"github.com/s0mar1/tftai.gg-sub000/batch"
	"github.com/s0mar1/tftai.gg-sub000/errors"
)

// Config holds the gateway's HTTP and gating settings. It is built
// programmatically (typically from the service configuration), so
// durations are plain values rather than parse-on-validate strings.
type Config struct {
	// BindAddress is the HTTP bind address (default: ":8080")
	BindAddress string

	// Path is the query endpoint path (default: "/graphql")
	Path string

	// EnablePlayground serves the playground UI at / (default off;
	// the service config decides)
	EnablePlayground bool

	// EnableCORS enables CORS headers
	EnableCORS bool

	// CORSOrigins lists allowed CORS origins (default: ["*"] when
	// CORS is enabled)
	CORSOrigins []string

	// Timeout bounds one request end to end (default: 30s)
	Timeout time.Duration

	// MaxComplexity rejects queries scoring above it (default: 1000)
	MaxComplexity int

	// MaxDepth rejects queries nesting deeper (default: 10)
	MaxDepth int

	// PrincipalScopedOps lists operations cached per caller.
	PrincipalScopedOps []string

	// Batch configures the per-request loaders.
	Batch batch.Options
}

// Validate applies defaults and checks ranges.
func (c *Config) Validate() error {
	if c.BindAddress == "" {
		c.BindAddress = ":8080"
	}
	if c.Path == "" {
		c.Path = "/graphql"
	}
	if c.Path[0] != '/' {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"path must start with /")
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Timeout < 100*time.Millisecond {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"timeout must be at least 100ms")
	}
	if c.MaxComplexity == 0 {
		c.MaxComplexity = 1000
	}
	if c.MaxComplexity < 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"max complexity must be positive")
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = 10
	}
	if c.MaxDepth < 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"max depth must be positive")
	}
	if c.EnableCORS && len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
	return nil
}
