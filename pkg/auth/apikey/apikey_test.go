package apikey

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rhuss/openresearch/pkg/auth"
	"github.com/rhuss/openresearch/pkg/config"
)

func newTestAuth() *Authenticator {
	return New([]RawKeyEntry{
		{Key: "sk-test-key-1", Identity: auth.Identity{Subject: "alice", Metadata: map[string]string{"owner": "org-1"}}},
		{Key: "sk-test-key-2", Identity: auth.Identity{Subject: "bob"}},
		{Key: "", Identity: auth.Identity{Subject: "nobody"}},
	})
}

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name         string
		headers      map[string]string
		wantDecision auth.AuthDecision
		wantSubject  string
	}{
		{"first key", map[string]string{"Authorization": "Bearer sk-test-key-1"}, auth.Yes, "alice"},
		{"second key", map[string]string{"Authorization": "Bearer sk-test-key-2"}, auth.Yes, "bob"},
		{"x-api-key header", map[string]string{HeaderName: "sk-test-key-2"}, auth.Yes, "bob"},
		{"invalid key", map[string]string{"Authorization": "Bearer sk-wrong"}, auth.No, ""},
		{"empty bearer", map[string]string{"Authorization": "Bearer "}, auth.No, ""},
		{"no header", nil, auth.Abstain, ""},
		{"basic auth", map[string]string{"Authorization": "Basic dXNlcg=="}, auth.Abstain, ""},
		{"basic auth wins over x-api-key", map[string]string{"Authorization": "Basic dXNlcg==", HeaderName: "sk-test-key-1"}, auth.Abstain, ""},
	}

	a := newTestAuth()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			result := a.Authenticate(context.Background(), r)
			if result.Decision != tt.wantDecision {
				t.Fatalf("decision = %d, want %d", result.Decision, tt.wantDecision)
			}
			if tt.wantSubject != "" && result.Identity.Subject != tt.wantSubject {
				t.Errorf("subject = %q, want %q", result.Identity.Subject, tt.wantSubject)
			}
		})
	}
}

func TestIdentityIsCopied(t *testing.T) {
	a := newTestAuth()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer sk-test-key-2")

	first := a.Authenticate(context.Background(), r)
	first.Identity.Subject = "mallory"
	second := a.Authenticate(context.Background(), r)
	if second.Identity.Subject != "bob" {
		t.Errorf("stored identity was mutated: %q", second.Identity.Subject)
	}
}

func TestFromConfig(t *testing.T) {
	a := FromConfig([]config.APIKeyConfig{
		{Key: "k1", Subject: "ci"},
		{Key: "k2"},
	})
	for key, want := range map[string]string{"k1": "ci", "k2": "key-2"} {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(HeaderName, key)
		result := a.Authenticate(context.Background(), r)
		if result.Decision != auth.Yes || result.Identity.Subject != want {
			t.Errorf("key %s: decision %d subject %v", key, result.Decision, result.Identity)
		}
	}
}
