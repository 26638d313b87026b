package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/atelier-market/api/internal/platform/httpx"
)

const (
	defaultRoleClaim     = "role"
	defaultEmailClaim    = "email"
	defaultVerifyTimeout = 5 * time.Second
)

var (
	// ErrTokenExpired signals that the Firebase ID token has expired.
	ErrTokenExpired = errors.New("auth: firebase id token expired")
	// ErrTokenInvalid signals that the Firebase ID token failed verification.
	ErrTokenInvalid = errors.New("auth: firebase id token invalid")
)

// TokenVerifier verifies Firebase ID tokens.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// Authenticator turns Firebase token verification into chi-compatible
// middleware.
type Authenticator struct {
	verifier     TokenVerifier
	roleClaim    string
	emailClaim   string
	fallbackRole string
	timeout      time.Duration
}

// Option customises Authenticator behaviour.
type Option func(*Authenticator)

// WithRoleClaim overrides the custom claim the roles are read from.
func WithRoleClaim(claim string) Option {
	return func(a *Authenticator) {
		if claim = strings.TrimSpace(claim); claim != "" {
			a.roleClaim = claim
		}
	}
}

// WithFallbackRole sets the role assigned when the token carries none.
func WithFallbackRole(role string) Option {
	return func(a *Authenticator) {
		if role = normaliseRole(role); role != "" {
			a.fallbackRole = role
		}
	}
}

// WithVerificationTimeout bounds each token verification call.
func WithVerificationTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAuthenticator builds an Authenticator around the verifier.
func NewAuthenticator(verifier TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier:     verifier,
		roleClaim:    defaultRoleClaim,
		emailClaim:   defaultEmailClaim,
		fallbackRole: RoleUser,
		timeout:      defaultVerifyTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// RequireFirebaseAuth rejects requests without a valid bearer token and, when
// roles are given, without at least one of them. The verified identity is
// stored on the request context.
func (a *Authenticator) RequireFirebaseAuth(allowedRoles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		if role = normaliseRole(role); role != "" {
			allowed[role] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, authErr := a.authenticate(r)
			if authErr != nil {
				httpx.WriteError(r.Context(), w, *authErr)
				return
			}

			if len(allowed) > 0 {
				permitted := false
				for _, role := range identity.Roles {
					if _, ok := allowed[normaliseRole(role)]; ok {
						permitted = true
						break
					}
				}
				if !permitted {
					err := httpx.NewError("insufficient_role", "identity does not have required role", http.StatusUnauthorized)
					httpx.WriteError(r.Context(), w, err)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// OptionalFirebaseAuth attaches the verified identity when the request
// carries a bearer token and passes it through untouched when it carries
// none. A token that is present but fails verification is still rejected.
func (a *Authenticator) OptionalFirebaseAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := bearerToken(r.Header.Get("Authorization")); !ok {
				next.ServeHTTP(w, r)
				return
			}

			identity, authErr := a.authenticate(r)
			if authErr != nil {
				httpx.WriteError(r.Context(), w, *authErr)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func (a *Authenticator) authenticate(r *http.Request) (*Identity, *httpx.Error) {
	unauthenticated := func(code, message string) *httpx.Error {
		err := httpx.NewError(code, message, http.StatusUnauthorized)
		return &err
	}

	rawToken, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return nil, unauthenticated("unauthenticated", "authorization header missing or invalid")
	}
	if a == nil || a.verifier == nil {
		return nil, unauthenticated("unauthenticated", "authorization service unavailable")
	}

	ctx := r.Context()
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	token, err := a.verifier.VerifyIDToken(ctx, rawToken)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) || firebaseauth.IsIDTokenExpired(err) {
			return nil, unauthenticated("token_expired", "firebase id token expired")
		}
		return nil, unauthenticated("invalid_token", "firebase id token invalid")
	}

	identity := &Identity{
		UID:   token.UID,
		Email: stringClaim(token.Claims, a.emailClaim),
		Roles: roleClaims(token.Claims, a.roleClaim),
	}
	if len(identity.Roles) == 0 && a.fallbackRole != "" {
		identity.Roles = []string{a.fallbackRole}
	}
	return identity, nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func stringClaim(claims map[string]any, key string) string {
	value, _ := claims[key].(string)
	return strings.TrimSpace(value)
}

// roleClaims accepts either a single string claim or a list of strings,
// normalising and de-duplicating either form.
func roleClaims(claims map[string]any, key string) []string {
	switch value := claims[key].(type) {
	case string:
		if role := normaliseRole(value); role != "" {
			return []string{role}
		}
	case []any:
		var roles []string
		seen := make(map[string]struct{}, len(value))
		for _, entry := range value {
			raw, ok := entry.(string)
			if !ok {
				continue
			}
			role := normaliseRole(raw)
			if role == "" {
				continue
			}
			if _, dup := seen[role]; dup {
				continue
			}
			seen[role] = struct{}{}
			roles = append(roles, role)
		}
		return roles
	}
	return nil
}
