package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type mockAuthn struct {
	result AuthResult
	called bool
}

func (m *mockAuthn) Authenticate(_ context.Context, _ *http.Request) AuthResult {
	m.called = true
	return m.result
}

func TestAuthChain(t *testing.T) {
	yes := AuthResult{Decision: Yes, Identity: &Identity{Subject: "alice"}}
	no := AuthResult{Decision: No, Err: errors.New("bad key")}
	abstain := AuthResult{Decision: Abstain}

	tests := []struct {
		name        string
		results     []AuthResult
		def         AuthDecision
		want        AuthDecision
		wantSubject string
		wantCalled  []bool
	}{
		{"first yes stops", []AuthResult{yes, no}, No, Yes, "alice", []bool{true, false}},
		{"first no stops", []AuthResult{no, yes}, Yes, No, "", []bool{true, false}},
		{"abstain then yes", []AuthResult{abstain, yes}, No, Yes, "alice", []bool{true, true}},
		{"all abstain rejects", []AuthResult{abstain, abstain}, No, No, "", []bool{true, true}},
		{"all abstain accepts anonymous", []AuthResult{abstain}, Yes, Yes, AnonymousSubject, []bool{true}},
		{"empty chain rejects", nil, No, No, "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mocks []*mockAuthn
			chain := &AuthChain{DefaultDecision: tt.def}
			for _, r := range tt.results {
				m := &mockAuthn{result: r}
				mocks = append(mocks, m)
				chain.Authenticators = append(chain.Authenticators, m)
			}

			got := chain.Authenticate(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
			if got.Decision != tt.want {
				t.Fatalf("decision = %v, want %v", got.Decision, tt.want)
			}
			if tt.wantSubject != "" && (got.Identity == nil || got.Identity.Subject != tt.wantSubject) {
				t.Errorf("identity = %+v, want subject %q", got.Identity, tt.wantSubject)
			}
			if got.Decision == No && got.Err == nil {
				t.Error("rejection without error")
			}
			for i, m := range mocks {
				if m.called != tt.wantCalled[i] {
					t.Errorf("authenticator %d called = %v, want %v", i, m.called, tt.wantCalled[i])
				}
			}
		})
	}
}

func TestIdentityOwner(t *testing.T) {
	tests := []struct {
		name string
		id   *Identity
		want string
	}{
		{"nil", nil, ""},
		{"anonymous", &Identity{Subject: AnonymousSubject}, ""},
		{"subject", &Identity{Subject: "alice"}, "alice"},
		{"owner metadata", &Identity{Subject: "alice", Metadata: map[string]string{"owner": "team-a"}}, "team-a"},
		{"empty owner metadata", &Identity{Subject: "alice", Metadata: map[string]string{"owner": ""}}, "alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.id.Owner(); got != tt.want {
				t.Errorf("Owner() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header    string
		wantToken string
		wantOK    bool
	}{
		{"", "", false},
		{"Basic dXNlcjpwdw==", "", false},
		{"Bearer abc", "abc", true},
		{"bearer abc ", "abc", true},
		{"Bearer ", "", true},
		{"Bearer", "", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		token, ok := BearerToken(r)
		if token != tt.wantToken || ok != tt.wantOK {
			t.Errorf("BearerToken(%q) = %q, %v; want %q, %v", tt.header, token, ok, tt.wantToken, tt.wantOK)
		}
	}
}

func TestIdentityContext(t *testing.T) {
	if CallerIdentity(context.Background()) != nil {
		t.Error("empty context has an identity")
	}
	id := &Identity{Subject: "bob"}
	if got := CallerIdentity(WithIdentity(context.Background(), id)); got != id {
		t.Errorf("got %+v, want %+v", got, id)
	}
}
