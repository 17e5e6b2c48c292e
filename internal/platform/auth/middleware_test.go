package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	firebaseauth "firebase.google.com/go/v4/auth"
)

type stubTokenVerifier struct {
	token    *firebaseauth.Token
	err      error
	received string
}

func (s *stubTokenVerifier) VerifyIDToken(_ context.Context, idToken string) (*firebaseauth.Token, error) {
	s.received = idToken
	if s.err != nil {
		return nil, s.err
	}
	return s.token, nil
}

func serve(t *testing.T, authn *Authenticator, header string, roles ...string) (*httptest.ResponseRecorder, *Identity) {
	t.Helper()
	var got *Identity
	handler := authn.RequireFirebaseAuth(roles...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, got
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	code, _ := body["error"].(string)
	return code
}

func TestRequireFirebaseAuthExtractsSellerIdentity(t *testing.T) {
	verifier := &stubTokenVerifier{token: &firebaseauth.Token{
		UID: "uid-1",
		Claims: map[string]any{
			"email": "owner@example.com",
			"shop":  "seller-9",
		},
	}}
	authn := NewAuthenticator(verifier, WithSellerClaim("shop"))

	rec, identity := serve(t, authn, "Bearer abc", RoleSeller)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if verifier.received != "abc" {
		t.Fatalf("expected token abc, got %q", verifier.received)
	}
	if identity.SellerID != "seller-9" || identity.Email != "owner@example.com" {
		t.Fatalf("unexpected identity %+v", identity)
	}
	if !identity.HasRole(RoleCustomer) || !identity.HasRole(RoleSeller) {
		t.Fatalf("expected customer and seller roles, got %v", identity.Roles)
	}
	if identity.IsAdmin() {
		t.Fatal("seller must not be admin")
	}
}

func TestRequireFirebaseAuthRoleClaimVariants(t *testing.T) {
	cases := map[string]any{
		"string": "Admin",
		"slice":  []any{"admin", "ADMIN", 7},
		"map":    map[string]any{"admin": true, "staff": false},
	}
	for name, claim := range cases {
		verifier := &stubTokenVerifier{token: &firebaseauth.Token{UID: "u", Claims: map[string]any{"role": claim}}}
		rec, identity := serve(t, NewAuthenticator(verifier), "bearer tok", RoleAdmin)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("%s: expected 204, got %d", name, rec.Code)
		}
		if !identity.IsAdmin() {
			t.Fatalf("%s: expected admin, got %v", name, identity.Roles)
		}
	}
}

func TestRequireFirebaseAuthRejections(t *testing.T) {
	ok := &stubTokenVerifier{token: &firebaseauth.Token{UID: "u", Claims: map[string]any{}}}

	rec, _ := serve(t, NewAuthenticator(ok), "")
	if rec.Code != http.StatusUnauthorized || errorCode(t, rec) != "unauthenticated" {
		t.Fatalf("missing header: got %d %s", rec.Code, rec.Body.String())
	}

	rec, _ = serve(t, NewAuthenticator(ok), "Basic abc")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("basic scheme: got %d", rec.Code)
	}

	rec, _ = serve(t, NewAuthenticator(ok), "Bearer abc", RoleAdmin)
	if rec.Code != http.StatusForbidden || errorCode(t, rec) != "insufficient_role" {
		t.Fatalf("role check: got %d %s", rec.Code, rec.Body.String())
	}

	expired := &stubTokenVerifier{err: ErrTokenExpired}
	rec, _ = serve(t, NewAuthenticator(expired), "Bearer abc")
	if rec.Code != http.StatusUnauthorized || errorCode(t, rec) != "token_expired" {
		t.Fatalf("expired: got %d %s", rec.Code, rec.Body.String())
	}

	invalid := &stubTokenVerifier{err: errors.New("signature mismatch")}
	rec, _ = serve(t, NewAuthenticator(invalid), "Bearer abc")
	if rec.Code != http.StatusUnauthorized || errorCode(t, rec) != "invalid_token" {
		t.Fatalf("invalid: got %d %s", rec.Code, rec.Body.String())
	}
}
