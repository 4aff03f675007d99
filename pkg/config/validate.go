package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
//
// Unknown llm.provider and search.provider values are accepted: provider
// selection falls back to the default backend instead of failing.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	for _, name := range LLMProviders {
		p := c.LLM.For(name)
		if p.MaxTokens < 0 {
			errs = append(errs, fmt.Errorf("llm.%s.max_tokens must be >= 0, got %d", name, p.MaxTokens))
		}
	}

	if c.Search.SearXNG.Results < 0 {
		errs = append(errs, fmt.Errorf("search.searxng.results must be >= 0, got %d", c.Search.SearXNG.Results))
	}
	if c.Search.DuckDuckGo.Results < 0 {
		errs = append(errs, fmt.Errorf("search.duckduckgo.results must be >= 0, got %d", c.Search.DuckDuckGo.Results))
	}

	switch c.Engine.DepthPolicy {
	case "propagate", "fixed", "":
	default:
		errs = append(errs, fmt.Errorf("engine.depth_policy must be \"propagate\" or \"fixed\", got %q", c.Engine.DepthPolicy))
	}

	if c.Archive.Enabled && c.Archive.Postgres.DSN == "" && c.Archive.Postgres.DSNFile == "" {
		errs = append(errs, fmt.Errorf("archive.postgres.dsn or archive.postgres.dsn_file is required when archive.enabled is true"))
	}

	switch c.Auth.Type {
	case "none", "apikey", "jwt":
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\", \"apikey\", or \"jwt\", got %q", c.Auth.Type))
	}
	if c.Auth.Type == "apikey" && len(c.Auth.APIKeys) == 0 {
		errs = append(errs, fmt.Errorf("auth.api_keys must not be empty when auth.type is \"apikey\""))
	}
	if c.Auth.Type == "jwt" && c.Auth.JWT.JWKSURL == "" {
		errs = append(errs, fmt.Errorf("auth.jwt.jwks_url is required when auth.type is \"jwt\""))
	}

	if c.MCP.Enabled && c.MCP.Path == "" {
		errs = append(errs, fmt.Errorf("mcp.path is required when mcp.enabled is true"))
	}

	return errors.Join(errs...)
}
