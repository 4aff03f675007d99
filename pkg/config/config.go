// Package config provides unified configuration for the research server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (OPENRESEARCH_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"strings"
	"time"
)

// Config holds all configuration for the research server.
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	LLM           LLMConfig           `yaml:"llm" json:"llm"`
	Search        SearchConfig        `yaml:"search" json:"search"`
	Engine        EngineConfig        `yaml:"engine" json:"engine"`
	Archive       ArchiveConfig       `yaml:"archive" json:"archive"`
	Auth          AuthConfig          `yaml:"auth" json:"auth"`
	MCP           MCPConfig           `yaml:"mcp" json:"mcp"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
	Debug         DebugConfig         `yaml:"debug" json:"debug"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port" json:"port"`                         // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`         // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`       // default: 120s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"` // default: 30s
	AllowedOrigins  []string      `yaml:"allowed_origins" json:"allowed_origins"`   // default: ["*"]
}

// LLMConfig selects the active reasoner and holds the settings of every
// known reasoner backend.
type LLMConfig struct {
	Provider   string            `yaml:"provider" json:"provider"` // default: "openrouter"
	Ollama     LLMProviderConfig `yaml:"ollama" json:"ollama"`
	OpenRouter LLMProviderConfig `yaml:"openrouter" json:"openrouter"`
	OpenAI     LLMProviderConfig `yaml:"openai" json:"openai"`
	Anthropic  LLMProviderConfig `yaml:"anthropic" json:"anthropic"`
	Gemini     LLMProviderConfig `yaml:"gemini" json:"gemini"`
	Mistral    LLMProviderConfig `yaml:"mistral" json:"mistral"`
	Groq       LLMProviderConfig `yaml:"groq" json:"groq"`
	LMStudio   LLMProviderConfig `yaml:"lmstudio" json:"lmstudio"`
}

// LLMProviders lists the reasoner backend names in a stable order.
var LLMProviders = []string{"ollama", "openrouter", "openai", "anthropic", "gemini", "mistral", "groq", "lmstudio"}

// For returns the settings block for the named backend, or nil when the
// name is not a known backend.
func (c *LLMConfig) For(name string) *LLMProviderConfig {
	switch strings.ToLower(name) {
	case "ollama":
		return &c.Ollama
	case "openrouter":
		return &c.OpenRouter
	case "openai":
		return &c.OpenAI
	case "anthropic":
		return &c.Anthropic
	case "gemini":
		return &c.Gemini
	case "mistral":
		return &c.Mistral
	case "groq":
		return &c.Groq
	case "lmstudio":
		return &c.LMStudio
	}
	return nil
}

// LLMProviderConfig holds the settings of one reasoner backend.
type LLMProviderConfig struct {
	BaseURL       string        `yaml:"base_url" json:"base_url"`
	APIKey        string        `yaml:"api_key" json:"api_key"`
	APIKeyFile    string        `yaml:"api_key_file" json:"api_key_file"` // _file variant for api_key
	ThinkingModel string        `yaml:"thinking_model" json:"thinking_model"`
	TaskModel     string        `yaml:"task_model" json:"task_model"`
	MaxTokens     int           `yaml:"max_tokens" json:"max_tokens"`
	Temperature   float64       `yaml:"temperature" json:"temperature"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
}

// SearchConfig selects the active searcher and holds the settings of every
// known search backend.
type SearchConfig struct {
	Provider   string           `yaml:"provider" json:"provider"` // default: "searxng"
	SearXNG    SearXNGConfig    `yaml:"searxng" json:"searxng"`
	DuckDuckGo DuckDuckGoConfig `yaml:"duckduckgo" json:"duckduckgo"`
}

// SearXNGConfig holds SearXNG instance settings.
type SearXNGConfig struct {
	BaseURL    string        `yaml:"base_url" json:"base_url"`
	Categories string        `yaml:"categories" json:"categories"` // default: "general"
	Language   string        `yaml:"language" json:"language"`     // default: "en-US"
	Results    int           `yaml:"results" json:"results"`       // default: 8
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`       // default: 45s
}

// DuckDuckGoConfig holds DuckDuckGo HTML endpoint settings.
type DuckDuckGoConfig struct {
	BaseURL string        `yaml:"base_url" json:"base_url"` // default: "https://duckduckgo.com"
	Region  string        `yaml:"region" json:"region"`     // default: "us-en"
	Results int           `yaml:"results" json:"results"`   // default: 8
	Timeout time.Duration `yaml:"timeout" json:"timeout"`   // default: 30s
}

// EngineConfig holds orchestration settings.
type EngineConfig struct {
	// DepthPolicy is "propagate" (task depth drives planning and the report)
	// or "fixed" (post-clarification plan and report use "standard").
	DepthPolicy string `yaml:"depth_policy" json:"depth_policy"`
}

// ArchiveConfig holds the optional report archive settings.
type ArchiveConfig struct {
	Enabled  bool           `yaml:"enabled" json:"enabled"`
	Postgres PostgresConfig `yaml:"postgres" json:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn" json:"dsn"`
	DSNFile        string `yaml:"dsn_file" json:"dsn_file"`                 // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns" json:"max_conns"`               // default: 10
	MigrateOnStart bool   `yaml:"migrate_on_start" json:"migrate_on_start"` // default: true
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type    string         `yaml:"type" json:"type"`         // "none", "apikey", "jwt", default: "none"
	APIKeys []APIKeyConfig `yaml:"api_keys" json:"api_keys"` // entries for type=apikey
	JWT     JWTConfig      `yaml:"jwt" json:"jwt"`
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key     string `yaml:"key" json:"key"`
	KeyFile string `yaml:"key_file" json:"key_file"` // _file variant for key
	Subject string `yaml:"subject" json:"subject"`
}

// JWTConfig holds JWT bearer token validation settings.
type JWTConfig struct {
	Issuer    string `yaml:"issuer" json:"issuer"`
	Audience  string `yaml:"audience" json:"audience"`
	JWKSURL   string `yaml:"jwks_url" json:"jwks_url"`
	UserClaim string `yaml:"user_claim" json:"user_claim"` // default: "sub"

	// OwnerClaim names the claim that scopes task visibility. Tasks are
	// scoped per subject when it is empty or absent from a token.
	OwnerClaim string `yaml:"owner_claim" json:"owner_claim"`
}

// MCPConfig holds the MCP endpoint settings.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"` // default: true
	Path    string `yaml:"path" json:"path"`       // default: "/mcp"
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"` // default: true
	Path    string `yaml:"path" json:"path"`       // default: "/metrics"
}

// DebugConfig holds logging settings. Environment variables override them.
type DebugConfig struct {
	Categories string `yaml:"categories" json:"categories"`
	Level      string `yaml:"level" json:"level"`   // default: "INFO"
	Format     string `yaml:"format" json:"format"` // "text" or "json", default: "text"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	const (
		defaultTimeout = 120 * time.Second
		defaultTokens  = 4096
	)
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		LLM: LLMConfig{
			Provider: "openrouter",
			Ollama: LLMProviderConfig{
				BaseURL:       "http://localhost:11434",
				ThinkingModel: "deepseek-r1:1.5b",
				TaskModel:     "llama3.1:8b",
				Timeout:       defaultTimeout,
			},
			OpenRouter: LLMProviderConfig{
				BaseURL:       "https://openrouter.ai/api/v1",
				ThinkingModel: "openai/gpt-oss-120b",
				TaskModel:     "openai/gpt-oss-120b",
				MaxTokens:     defaultTokens,
				Temperature:   0.7,
				Timeout:       defaultTimeout,
			},
			OpenAI: LLMProviderConfig{
				BaseURL:       "https://api.openai.com/v1",
				ThinkingModel: "gpt-4o-mini",
				TaskModel:     "gpt-4o-mini",
				MaxTokens:     defaultTokens,
				Temperature:   0.7,
				Timeout:       defaultTimeout,
			},
			Anthropic: LLMProviderConfig{
				BaseURL:       "https://api.anthropic.com",
				ThinkingModel: "claude-3-5-sonnet-latest",
				TaskModel:     "claude-3-5-sonnet-latest",
				MaxTokens:     defaultTokens,
				Timeout:       defaultTimeout,
			},
			Gemini: LLMProviderConfig{
				BaseURL:       "https://generativelanguage.googleapis.com",
				ThinkingModel: "gemini-1.5-pro-latest",
				TaskModel:     "gemini-1.5-pro-latest",
				MaxTokens:     defaultTokens,
				Timeout:       defaultTimeout,
			},
			Mistral: LLMProviderConfig{
				BaseURL:       "https://api.mistral.ai/v1",
				ThinkingModel: "mistral-large-latest",
				TaskModel:     "mistral-large-latest",
				MaxTokens:     defaultTokens,
				Temperature:   0.7,
				Timeout:       defaultTimeout,
			},
			Groq: LLMProviderConfig{
				BaseURL:       "https://api.groq.com/openai/v1",
				ThinkingModel: "llama-3.1-70b-versatile",
				TaskModel:     "llama-3.1-70b-versatile",
				MaxTokens:     defaultTokens,
				Temperature:   0.7,
				Timeout:       defaultTimeout,
			},
			LMStudio: LLMProviderConfig{
				BaseURL:       "http://localhost:1234/v1",
				ThinkingModel: "deepseek-r1:1.5b",
				TaskModel:     "llama3.1:8b",
				MaxTokens:     2048,
				Temperature:   0.7,
				Timeout:       600 * time.Second,
			},
		},
		Search: SearchConfig{
			Provider: "searxng",
			SearXNG: SearXNGConfig{
				BaseURL:    "http://localhost:8888",
				Categories: "general",
				Language:   "en-US",
				Results:    8,
				Timeout:    45 * time.Second,
			},
			DuckDuckGo: DuckDuckGoConfig{
				BaseURL: "https://duckduckgo.com",
				Region:  "us-en",
				Results: 8,
				Timeout: 30 * time.Second,
			},
		},
		Engine: EngineConfig{
			DepthPolicy: "propagate",
		},
		Archive: ArchiveConfig{
			Postgres: PostgresConfig{
				MaxConns:       10,
				MigrateOnStart: true,
			},
		},
		Auth: AuthConfig{
			Type: "none",
		},
		MCP: MCPConfig{
			Enabled: true,
			Path:    "/mcp",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Debug: DebugConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}
