// Package jwt provides a JWT/OIDC authenticator that validates bearer
// tokens against a JWKS (JSON Web Key Set) endpoint.
//
// RSA (RS256/384/512) and ECDSA (ES256/384/512) signatures are accepted.
// The subject, owner and scopes are read from configurable claims.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/rhuss/openresearch/pkg/auth"
	"github.com/rhuss/openresearch/pkg/config"
)

var validMethods = []string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}

// Config holds the JWT authenticator configuration.
type Config struct {
	// Issuer is the expected iss claim. Not validated when empty.
	Issuer string

	// Audience is the expected aud claim. Not validated when empty.
	Audience string

	// JWKSURL is where the verification keys are fetched from.
	JWKSURL string

	// UserClaim is the claim used as the identity subject. Default: "sub".
	UserClaim string

	// OwnerClaim, when set, names the claim tasks are scoped to instead of
	// the subject.
	OwnerClaim string

	// ScopesClaim holds a space-separated string or an array. Default: "scope".
	ScopesClaim string

	// CacheTTL controls how long JWKS keys are cached. Default: 1 hour.
	CacheTTL time.Duration

	// HTTPClient fetches the JWKS. Default: a client with a 10s timeout.
	HTTPClient *http.Client
}

// FromConfig maps the auth.jwt settings onto a Config.
func FromConfig(c config.JWTConfig) Config {
	return Config{
		Issuer:     c.Issuer,
		Audience:   c.Audience,
		JWKSURL:    c.JWKSURL,
		UserClaim:  c.UserClaim,
		OwnerClaim: c.OwnerClaim,
	}
}

func (c *Config) applyDefaults() {
	if c.UserClaim == "" {
		c.UserClaim = "sub"
	}
	if c.ScopesClaim == "" {
		c.ScopesClaim = "scope"
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = time.Hour
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
}

// Authenticator validates JWT bearer tokens against a JWKS endpoint.
type Authenticator struct {
	cfg    Config
	keys   *keySet
	parser *jwtlib.Parser
}

// New creates a JWT authenticator with the given configuration.
func New(cfg Config) *Authenticator {
	cfg.applyDefaults()

	opts := []jwtlib.ParserOption{jwtlib.WithValidMethods(validMethods)}
	if cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(cfg.Audience))
	}

	return &Authenticator{
		cfg:    cfg,
		keys:   newKeySet(cfg.JWKSURL, cfg.HTTPClient, cfg.CacheTTL),
		parser: jwtlib.NewParser(opts...),
	}
}

// Authenticate abstains without bearer credentials, rejects any token that
// fails verification and otherwise returns the identity from its claims.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) auth.AuthResult {
	raw, ok := auth.BearerToken(r)
	if !ok {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	if raw == "" {
		return reject(errors.New("empty bearer token"))
	}

	claims := jwtlib.MapClaims{}
	token, err := a.parser.ParseWithClaims(raw, claims, func(t *jwtlib.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token missing kid header")
		}
		return a.keys.get(ctx, kid)
	})
	if err != nil {
		slog.Debug("JWT validation failed", "error", err)
		return reject(fmt.Errorf("invalid JWT: %w", err))
	}
	if !token.Valid {
		return reject(errors.New("invalid JWT"))
	}

	subject := claimString(claims, a.cfg.UserClaim)
	if subject == "" {
		return reject(fmt.Errorf("JWT missing %q claim", a.cfg.UserClaim))
	}

	identity := &auth.Identity{
		Subject:  subject,
		Scopes:   claimList(claims, a.cfg.ScopesClaim),
		Metadata: map[string]string{},
	}
	if a.cfg.OwnerClaim != "" {
		if owner := claimString(claims, a.cfg.OwnerClaim); owner != "" {
			identity.Metadata["owner"] = owner
		}
	}
	return auth.AuthResult{Decision: auth.Yes, Identity: identity}
}

func reject(err error) auth.AuthResult {
	return auth.AuthResult{Decision: auth.No, Err: err}
}

func claimString(claims jwtlib.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

// claimList reads a space-separated string or an array of strings.
func claimList(claims jwtlib.MapClaims, key string) []string {
	var out []string
	switch v := claims[key].(type) {
	case string:
		out = strings.Fields(v)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
