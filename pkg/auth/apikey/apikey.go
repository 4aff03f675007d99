// Package apikey provides an API key authenticator that validates
// bearer tokens or X-API-Key headers against a static key store using
// SHA-256 hashing and constant-time comparison.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/rhuss/openresearch/pkg/auth"
	"github.com/rhuss/openresearch/pkg/config"
)

// HeaderName is the alternative header carrying a raw key.
const HeaderName = "X-API-Key"

type keyEntry struct {
	hash     [32]byte
	identity auth.Identity
}

// Authenticator validates API keys against a static key store.
type Authenticator struct {
	keys []keyEntry
}

// RawKeyEntry pairs a plaintext key with the identity it grants.
type RawKeyEntry struct {
	Key      string
	Identity auth.Identity
}

// New creates an API key authenticator. Keys are hashed immediately;
// plaintext keys are not stored. Entries with an empty key are skipped.
func New(entries []RawKeyEntry) *Authenticator {
	a := &Authenticator{}
	for _, e := range entries {
		if e.Key == "" {
			continue
		}
		a.keys = append(a.keys, keyEntry{
			hash:     sha256.Sum256([]byte(e.Key)),
			identity: e.Identity,
		})
	}
	return a
}

// FromConfig builds an authenticator from the auth.api_keys entries. An
// entry without a subject authenticates as "key-<n>", n counting from 1.
func FromConfig(keys []config.APIKeyConfig) *Authenticator {
	entries := make([]RawKeyEntry, 0, len(keys))
	for i, k := range keys {
		subject := k.Subject
		if subject == "" {
			subject = "key-" + strconv.Itoa(i+1)
		}
		entries = append(entries, RawKeyEntry{Key: k.Key, Identity: auth.Identity{Subject: subject}})
	}
	return New(entries)
}

// Authenticate checks the bearer token, or the X-API-Key header when no
// Authorization header is present. It abstains when neither carries a key.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	token, ok := auth.BearerToken(r)
	if !ok {
		if r.Header.Get("Authorization") != "" {
			return auth.AuthResult{Decision: auth.Abstain}
		}
		token = strings.TrimSpace(r.Header.Get(HeaderName))
		if token == "" {
			return auth.AuthResult{Decision: auth.Abstain}
		}
	}
	if token == "" {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	sum := sha256.Sum256([]byte(token))
	for _, entry := range a.keys {
		if subtle.ConstantTimeCompare(sum[:], entry.hash[:]) == 1 {
			id := entry.identity
			return auth.AuthResult{Decision: auth.Yes, Identity: &id}
		}
	}
	return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
}
