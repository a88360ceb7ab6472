package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"
)

type contextKey string

// IdentityKey is the context key for the request identity.
const IdentityKey = contextKey("identity")

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

// FromContext returns the identity attached by Gate, or an unauthenticated one.
func FromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(IdentityKey).(Identity)
	return id
}

// Gate attaches an Identity to every request. It never rejects a request;
// routes that need a user are wrapped with RequireAuth.
func Gate(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := Authenticate(tokens, r.Header.Get("Authorization"))
			if id.Authenticated {
				hlog.FromRequest(r).Debug().Str("user_id", id.UserID).Msg("Authenticated request")
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// Authenticate resolves an Authorization header value of the form "<scheme> <token>".
func Authenticate(tokens *TokenService, header string) Identity {
	if header == "" {
		return Identity{}
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[1] == "" {
		return Identity{}
	}

	id, err := tokens.Verify(parts[1])
	if err != nil {
		return Identity{}
	}
	return id
}

// RequireAuth rejects requests that Gate did not authenticate.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !FromContext(r.Context()).Authenticated {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": "Not authenticated."})
			return
		}
		next.ServeHTTP(w, r)
	})
}
