package jwt

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/rhuss/openresearch/pkg/auth"
	"github.com/rhuss/openresearch/pkg/config"
)

var (
	rsaKey *rsa.PrivateKey
	ecKey  *ecdsa.PrivateKey
)

func init() {
	var err error
	if rsaKey, err = rsa.GenerateKey(rand.Reader, 2048); err != nil {
		panic(fmt.Sprintf("generating test RSA key: %v", err))
	}
	if ecKey, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader); err != nil {
		panic(fmt.Sprintf("generating test EC key: %v", err))
	}
}

const (
	rsaKID = "rsa-1"
	ecKID  = "ec-1"
)

func b64(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

// jwksServer serves both test keys plus one unusable encryption key and
// counts fetches.
func jwksServer(t *testing.T, fetches *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		doc := map[string]any{"keys": []map[string]string{
			{"kty": "RSA", "kid": rsaKID, "use": "sig", "n": b64(rsaKey.N.Bytes()), "e": b64(big.NewInt(int64(rsaKey.E)).Bytes())},
			{"kty": "EC", "kid": ecKID, "crv": "P-256", "x": b64(ecKey.X.Bytes()), "y": b64(ecKey.Y.Bytes())},
			{"kty": "RSA", "kid": "enc-1", "use": "enc", "n": "AQAB", "e": "AQAB"},
		}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestAuthenticator(t *testing.T, override func(*Config)) (*Authenticator, *atomic.Int32) {
	t.Helper()
	var fetches atomic.Int32
	srv := jwksServer(t, &fetches)
	cfg := Config{
		Issuer:   "https://auth.example.com",
		Audience: "openresearch",
		JWKSURL:  srv.URL + "/.well-known/jwks.json",
	}
	if override != nil {
		override(&cfg)
	}
	return New(cfg), &fetches
}

func baseClaims() jwtlib.MapClaims {
	return jwtlib.MapClaims{
		"sub": "user-123",
		"iss": "https://auth.example.com",
		"aud": "openresearch",
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
}

func sign(t *testing.T, method jwtlib.SigningMethod, kid string, claims jwtlib.MapClaims) string {
	t.Helper()
	token := jwtlib.NewWithClaims(method, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	var key any = rsaKey
	if _, ok := method.(*jwtlib.SigningMethodECDSA); ok {
		key = ecKey
	}
	s, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return s
}

func authenticate(a *Authenticator, header string) auth.AuthResult {
	r := httptest.NewRequest(http.MethodGet, "/api/research", nil)
	if header != "" {
		r.Header.Set("Authorization", header)
	}
	return a.Authenticate(context.Background(), r)
}

func TestAuthenticateDecisions(t *testing.T) {
	with := func(k string, v any) jwtlib.MapClaims {
		c := baseClaims()
		if v == nil {
			delete(c, k)
		} else {
			c[k] = v
		}
		return c
	}

	a, _ := newTestAuthenticator(t, nil)
	other, _ := rsa.GenerateKey(rand.Reader, 2048)
	forged := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, baseClaims())
	forged.Header["kid"] = rsaKID
	forgedStr, _ := forged.SignedString(other)

	tests := []struct {
		name   string
		header string
		want   auth.AuthDecision
	}{
		{"rsa token", "Bearer " + sign(t, jwtlib.SigningMethodRS256, rsaKID, baseClaims()), auth.Yes},
		{"ecdsa token", "Bearer " + sign(t, jwtlib.SigningMethodES256, ecKID, baseClaims()), auth.Yes},
		{"no header", "", auth.Abstain},
		{"basic scheme", "Basic dXNlcg==", auth.Abstain},
		{"empty token", "Bearer ", auth.No},
		{"garbage", "Bearer not.a.jwt", auth.No},
		{"expired", "Bearer " + sign(t, jwtlib.SigningMethodRS256, rsaKID, with("exp", time.Now().Add(-time.Hour).Unix())), auth.No},
		{"wrong audience", "Bearer " + sign(t, jwtlib.SigningMethodRS256, rsaKID, with("aud", "other")), auth.No},
		{"wrong issuer", "Bearer " + sign(t, jwtlib.SigningMethodRS256, rsaKID, with("iss", "https://evil.test")), auth.No},
		{"missing subject", "Bearer " + sign(t, jwtlib.SigningMethodRS256, rsaKID, with("sub", nil)), auth.No},
		{"missing kid", "Bearer " + sign(t, jwtlib.SigningMethodRS256, "", baseClaims()), auth.No},
		{"unknown kid", "Bearer " + sign(t, jwtlib.SigningMethodRS256, "rotated", baseClaims()), auth.No},
		{"encryption key", "Bearer " + sign(t, jwtlib.SigningMethodRS256, "enc-1", baseClaims()), auth.No},
		{"forged signature", "Bearer " + forgedStr, auth.No},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := authenticate(a, tt.header)
			if result.Decision != tt.want {
				t.Fatalf("decision = %d, want %d (err %v)", result.Decision, tt.want, result.Err)
			}
			if tt.want == auth.Yes && result.Identity.Subject != "user-123" {
				t.Errorf("subject = %q", result.Identity.Subject)
			}
			if tt.want == auth.No && result.Err == nil {
				t.Error("rejection without error")
			}
		})
	}
}

func TestClaimExtraction(t *testing.T) {
	a, _ := newTestAuthenticator(t, func(c *Config) {
		c.UserClaim = "email"
		c.OwnerClaim = "org_id"
		c.ScopesClaim = "permissions"
	})

	tests := []struct {
		name       string
		extra      jwtlib.MapClaims
		wantOwner  string
		wantScopes []string
	}{
		{"string scopes", jwtlib.MapClaims{"org_id": "org-1", "permissions": "read write"}, "org-1", []string{"read", "write"}},
		{"array scopes", jwtlib.MapClaims{"permissions": []any{"read", 7, "admin"}}, "alice@example.com", []string{"read", "admin"}},
		{"no scopes", jwtlib.MapClaims{"permissions": "  "}, "alice@example.com", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := baseClaims()
			claims["email"] = "alice@example.com"
			for k, v := range tt.extra {
				claims[k] = v
			}
			result := authenticate(a, "Bearer "+sign(t, jwtlib.SigningMethodRS256, rsaKID, claims))
			if result.Decision != auth.Yes {
				t.Fatalf("decision = %d (err %v)", result.Decision, result.Err)
			}
			if result.Identity.Subject != "alice@example.com" {
				t.Errorf("subject = %q", result.Identity.Subject)
			}
			if got := result.Identity.Owner(); got != tt.wantOwner {
				t.Errorf("owner = %q, want %q", got, tt.wantOwner)
			}
			if !reflect.DeepEqual(result.Identity.Scopes, tt.wantScopes) {
				t.Errorf("scopes = %v, want %v", result.Identity.Scopes, tt.wantScopes)
			}
		})
	}
}

func TestOptionalIssuerAndAudience(t *testing.T) {
	a, _ := newTestAuthenticator(t, func(c *Config) {
		c.Issuer = ""
		c.Audience = ""
	})
	claims := baseClaims()
	claims["iss"] = "anyone"
	claims["aud"] = "anything"
	if result := authenticate(a, "Bearer "+sign(t, jwtlib.SigningMethodRS256, rsaKID, claims)); result.Decision != auth.Yes {
		t.Errorf("decision = %d (err %v)", result.Decision, result.Err)
	}
}

func TestJWKSCaching(t *testing.T) {
	a, fetches := newTestAuthenticator(t, nil)
	token := "Bearer " + sign(t, jwtlib.SigningMethodRS256, rsaKID, baseClaims())

	for i := range 5 {
		if result := authenticate(a, token); result.Decision != auth.Yes {
			t.Fatalf("request %d: decision = %d", i, result.Decision)
		}
	}
	if n := fetches.Load(); n != 1 {
		t.Errorf("fetches = %d, want 1", n)
	}

	// Unknown kids do not refetch within the minimum refresh interval.
	authenticate(a, "Bearer "+sign(t, jwtlib.SigningMethodRS256, "rotated", baseClaims()))
	if n := fetches.Load(); n != 1 {
		t.Errorf("fetches after unknown kid = %d, want 1", n)
	}

	// Once the TTL has passed the set is refetched.
	now := time.Now()
	a.keys.now = func() time.Time { return now.Add(2 * time.Hour) }
	if result := authenticate(a, token); result.Decision != auth.Yes {
		t.Fatalf("decision after ttl = %d", result.Decision)
	}
	if n := fetches.Load(); n != 2 {
		t.Errorf("fetches after ttl = %d, want 2", n)
	}
}

func TestStaleKeyUsedWhenRefreshFails(t *testing.T) {
	var fetches atomic.Int32
	srv := jwksServer(t, &fetches)
	a := New(Config{JWKSURL: srv.URL})
	token := "Bearer " + sign(t, jwtlib.SigningMethodES256, ecKID, baseClaims())

	if result := authenticate(a, token); result.Decision != auth.Yes {
		t.Fatalf("decision = %d (err %v)", result.Decision, result.Err)
	}
	srv.Close()
	now := time.Now()
	a.keys.now = func() time.Time { return now.Add(2 * time.Hour) }
	if result := authenticate(a, token); result.Decision != auth.Yes {
		t.Errorf("decision with unreachable JWKS = %d (err %v)", result.Decision, result.Err)
	}
}

func TestFromConfig(t *testing.T) {
	got := FromConfig(config.JWTConfig{Issuer: "i", Audience: "a", JWKSURL: "u", UserClaim: "email", OwnerClaim: "org"})
	want := Config{Issuer: "i", Audience: "a", JWKSURL: "u", UserClaim: "email", OwnerClaim: "org"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FromConfig = %+v, want %+v", got, want)
	}
}
