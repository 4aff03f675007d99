package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, OPENRESEARCH_CONFIG env, ./config.yaml, /etc/openresearch/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. OPENRESEARCH_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/openresearch/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("OPENRESEARCH_CONFIG"); envPath != "" {
		return envPath
	}
	for _, path := range []string{"config.yaml", "/etc/openresearch/config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields.
//
// Every reasoner backend reads OPENRESEARCH_<NAME>_{BASE_URL,API_KEY,
// THINKING_MODEL,TASK_MODEL,MAX_TOKENS}. The bare <NAME>_API_KEY variables
// (OPENROUTER_API_KEY, OPENAI_API_KEY, ...) are honored when the prefixed
// variant is unset.
func applyEnvOverrides(cfg *Config) {
	setString(&cfg.LLM.Provider, "OPENRESEARCH_LLM_PROVIDER")
	setString(&cfg.Search.Provider, "OPENRESEARCH_SEARCH_PROVIDER")
	setInt(&cfg.Server.Port, "OPENRESEARCH_PORT")
	if v := os.Getenv("OPENRESEARCH_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = ParseList(v)
	}

	for _, name := range LLMProviders {
		p := cfg.LLM.For(name)
		prefix := "OPENRESEARCH_" + strings.ToUpper(name) + "_"
		setString(&p.BaseURL, prefix+"BASE_URL")
		setString(&p.APIKey, strings.ToUpper(name)+"_API_KEY")
		setString(&p.APIKey, prefix+"API_KEY")
		setString(&p.ThinkingModel, prefix+"THINKING_MODEL")
		setString(&p.TaskModel, prefix+"TASK_MODEL")
		setInt(&p.MaxTokens, prefix+"MAX_TOKENS")
		setDuration(&p.Timeout, prefix+"TIMEOUT")
	}

	setString(&cfg.Search.SearXNG.BaseURL, "OPENRESEARCH_SEARXNG_BASE_URL")
	setString(&cfg.Search.SearXNG.Categories, "OPENRESEARCH_SEARXNG_CATEGORIES")
	setString(&cfg.Search.SearXNG.Language, "OPENRESEARCH_SEARXNG_LANGUAGE")
	setInt(&cfg.Search.SearXNG.Results, "OPENRESEARCH_SEARXNG_RESULTS")
	setString(&cfg.Search.DuckDuckGo.Region, "OPENRESEARCH_DUCKDUCKGO_REGION")
	setInt(&cfg.Search.DuckDuckGo.Results, "OPENRESEARCH_DUCKDUCKGO_RESULTS")

	setString(&cfg.Engine.DepthPolicy, "OPENRESEARCH_DEPTH_POLICY")

	if v := os.Getenv("OPENRESEARCH_ARCHIVE_DSN"); v != "" {
		cfg.Archive.Enabled = true
		cfg.Archive.Postgres.DSN = v
	}

	setString(&cfg.Auth.Type, "OPENRESEARCH_AUTH_TYPE")
	// OPENRESEARCH_API_KEYS: JSON array of API key configs.
	if v := os.Getenv("OPENRESEARCH_API_KEYS"); v != "" {
		keys, err := parseAPIKeysJSON(v)
		if err == nil && len(keys) > 0 {
			cfg.Auth.APIKeys = keys
		}
	}
	setString(&cfg.Auth.JWT.JWKSURL, "OPENRESEARCH_JWT_JWKS_URL")
	setString(&cfg.Auth.JWT.Issuer, "OPENRESEARCH_JWT_ISSUER")
	setString(&cfg.Auth.JWT.Audience, "OPENRESEARCH_JWT_AUDIENCE")

	if v := os.Getenv("OPENRESEARCH_MCP_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.MCP.Enabled = b
		}
	}
}

// ParseList accepts either a JSON array of strings or a comma-separated list.
func ParseList(s string) []string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		var out []string
		if err := json.Unmarshal([]byte(s), &out); err == nil {
			return out
		}
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setInt(dst *int, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, env string) {
	if v := os.Getenv(env); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// parseAPIKeysJSON parses a JSON array of API key configurations.
func parseAPIKeysJSON(jsonStr string) ([]APIKeyConfig, error) {
	var keys []APIKeyConfig
	if err := json.Unmarshal([]byte(jsonStr), &keys); err != nil {
		return nil, fmt.Errorf("parsing API keys JSON: %w", err)
	}
	return keys, nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	for _, name := range LLMProviders {
		p := cfg.LLM.For(name)
		if p.APIKeyFile != "" && p.APIKey == "" {
			val, err := readSecretFile(p.APIKeyFile)
			if err != nil {
				return fmt.Errorf("llm.%s.api_key_file: %w", name, err)
			}
			p.APIKey = val
		}
	}

	if cfg.Archive.Postgres.DSNFile != "" && cfg.Archive.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Archive.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("archive.postgres.dsn_file: %w", err)
		}
		cfg.Archive.Postgres.DSN = val
	}

	for i := range cfg.Auth.APIKeys {
		if cfg.Auth.APIKeys[i].KeyFile != "" && cfg.Auth.APIKeys[i].Key == "" {
			val, err := readSecretFile(cfg.Auth.APIKeys[i].KeyFile)
			if err != nil {
				return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
			}
			cfg.Auth.APIKeys[i].Key = val
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
