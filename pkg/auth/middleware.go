package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/rhuss/openresearch/pkg/api"
	"github.com/rhuss/openresearch/pkg/storage"
	"github.com/rhuss/openresearch/pkg/transport"
)

// Middleware authenticates every request outside the bypass list, stores
// the identity in the context and scopes the task store to its owner.
// Bypass entries other than "/" that end in "/" match as path prefixes.
func Middleware(chain *AuthChain, bypassEndpoints []string) func(http.Handler) http.Handler {
	exact := make(map[string]bool, len(bypassEndpoints))
	var prefixes []string
	for _, ep := range bypassEndpoints {
		if len(ep) > 1 && strings.HasSuffix(ep, "/") {
			prefixes = append(prefixes, ep)
			continue
		}
		exact[ep] = true
	}
	bypassed := func(path string) bool {
		if exact[path] {
			return true
		}
		for _, p := range prefixes {
			if strings.HasPrefix(path, p) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypassed(r.URL.Path) || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			result := chain.Authenticate(r.Context(), r)
			if result.Decision != Yes || result.Identity == nil {
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", result.Err,
				)
				transport.WriteAPIError(w, api.NewUnauthenticatedError("authentication required"))
				return
			}

			if result.Identity.Subject == "" {
				slog.Error("authenticator returned identity with empty subject")
				transport.WriteAPIError(w, api.NewServerError("internal authentication error"))
				return
			}

			slog.Debug("authentication succeeded",
				"subject", result.Identity.Subject,
				"path", r.URL.Path,
			)

			ctx := WithIdentity(r.Context(), result.Identity)
			if owner := result.Identity.Owner(); owner != "" {
				ctx = storage.SetOwner(ctx, owner)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DefaultBypassEndpoints lists endpoints that skip authentication.
var DefaultBypassEndpoints = []string{"/health", "/healthz", "/readyz", "/metrics"}
