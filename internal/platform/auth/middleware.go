package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/hanko-field/storefront/internal/platform/httpx"
)

const (
	RoleCustomer = "customer"
	RoleSeller   = "seller"
	RoleAdmin    = "admin"

	defaultRoleClaim     = "role"
	defaultSellerClaim   = "sellerId"
	defaultVerifyTimeout = 5 * time.Second
)

// ErrTokenExpired signals an expired Firebase ID token.
var ErrTokenExpired = errors.New("auth: firebase id token expired")

// Identity is the authenticated caller.
type Identity struct {
	UID      string
	Email    string
	SellerID string
	Roles    []string
}

// HasRole reports whether the identity carries role, ignoring case.
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	for _, r := range i.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the caller may act on any seller's catalog.
func (i *Identity) IsAdmin() bool { return i.HasRole(RoleAdmin) }

type identityKey struct{}

// WithIdentity stores identity on ctx.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the identity stored by the middleware.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(*Identity)
	return identity, ok && identity != nil
}

// TokenVerifier verifies Firebase ID tokens. *firebaseauth.Client satisfies it.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// Authenticator turns bearer tokens into identities.
type Authenticator struct {
	verifier    TokenVerifier
	roleClaim   string
	sellerClaim string
	timeout     time.Duration
}

// Option customises an Authenticator.
type Option func(*Authenticator)

// WithSellerClaim names the custom claim that carries the caller's seller account.
func WithSellerClaim(claim string) Option {
	return func(a *Authenticator) {
		if claim = strings.TrimSpace(claim); claim != "" {
			a.sellerClaim = claim
		}
	}
}

// WithVerificationTimeout bounds each token verification.
func WithVerificationTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAuthenticator builds an Authenticator around verifier.
func NewAuthenticator(verifier TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier:    verifier,
		roleClaim:   defaultRoleClaim,
		sellerClaim: defaultSellerClaim,
		timeout:     defaultVerifyTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RequireFirebaseAuth rejects requests without a valid bearer token. When roles are given, the caller
// must hold at least one of them. Expired tokens answer 401 token_expired so clients can refresh.
func (a *Authenticator) RequireFirebaseAuth(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authorization header missing or invalid", http.StatusUnauthorized))
				return
			}
			identity, err := a.Verify(ctx, raw)
			if err != nil {
				if errors.Is(err, ErrTokenExpired) {
					httpx.WriteError(ctx, w, httpx.NewError("token_expired", "firebase id token expired", http.StatusUnauthorized))
					return
				}
				httpx.WriteError(ctx, w, httpx.NewError("invalid_token", "firebase id token invalid", http.StatusUnauthorized))
				return
			}
			if len(roles) > 0 && !hasAny(identity, roles) {
				httpx.WriteError(ctx, w, httpx.NewError("insufficient_role", "identity does not have required role", http.StatusForbidden))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
		})
	}
}

// Verify checks raw and extracts the identity claims.
func (a *Authenticator) Verify(ctx context.Context, raw string) (*Identity, error) {
	if a == nil || a.verifier == nil {
		return nil, errors.New("auth: verifier not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	token, err := a.verifier.VerifyIDToken(ctx, raw)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) || firebaseauth.IsIDTokenExpired(err) {
			return nil, ErrTokenExpired
		}
		return nil, err
	}
	identity := &Identity{
		UID:      token.UID,
		Email:    claimString(token.Claims, "email"),
		SellerID: claimString(token.Claims, a.sellerClaim),
		Roles:    claimRoles(token.Claims, a.roleClaim),
	}
	if len(identity.Roles) == 0 {
		identity.Roles = []string{RoleCustomer}
	}
	if identity.SellerID != "" && !identity.HasRole(RoleSeller) {
		identity.Roles = append(identity.Roles, RoleSeller)
	}
	return identity, nil
}

func hasAny(identity *Identity, roles []string) bool {
	for _, role := range roles {
		if identity.HasRole(role) {
			return true
		}
	}
	return false
}

func claimString(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return strings.TrimSpace(s)
}

func claimRoles(claims map[string]any, key string) []string {
	var raw []string
	switch v := claims[key].(type) {
	case string:
		raw = []string{v}
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	case map[string]any:
		for role, enabled := range v {
			if b, ok := enabled.(bool); ok && b {
				raw = append(raw, role)
			}
		}
	}
	seen := make(map[string]struct{}, len(raw))
	roles := make([]string, 0, len(raw))
	for _, role := range raw {
		role = strings.ToLower(strings.TrimSpace(role))
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

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
