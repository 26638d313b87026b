package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	firebaseauth "firebase.google.com/go/v4/auth"
)

type stubVerifier struct {
	token *firebaseauth.Token
	err   error
}

func (s *stubVerifier) VerifyIDToken(context.Context, string) (*firebaseauth.Token, error) {
	return s.token, s.err
}

func TestRequireFirebaseAuthRejectsMissingHeader(t *testing.T) {
	authn := NewAuthenticator(&stubVerifier{})
	handler := authn.RequireFirebaseAuth()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not be invoked")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireFirebaseAuthRejectsInvalidToken(t *testing.T) {
	authn := NewAuthenticator(&stubVerifier{err: errors.New("boom")})
	handler := authn.RequireFirebaseAuth()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not be invoked")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bad-token")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireFirebaseAuthStoresIdentity(t *testing.T) {
	verifier := &stubVerifier{token: &firebaseauth.Token{
		UID: "user-1",
		Claims: map[string]interface{}{
			"email": "owner@example.com",
			"role":  "admin",
		},
	}}
	authn := NewAuthenticator(verifier)

	var captured *Identity
	handler := authn.RequireFirebaseAuth()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good-token")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if captured == nil {
		t.Fatal("expected identity in context")
	}
	if captured.UID != "user-1" {
		t.Fatalf("unexpected uid %q", captured.UID)
	}
	if captured.Email != "owner@example.com" {
		t.Fatalf("unexpected email %q", captured.Email)
	}
	if !captured.HasRole("admin") {
		t.Fatal("expected admin role")
	}
}

func TestOptionalFirebaseAuthPassesThroughWithoutToken(t *testing.T) {
	authn := NewAuthenticator(&stubVerifier{err: errors.New("must not be called")})

	invoked := false
	handler := authn.OptionalFirebaseAuth()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		invoked = true
		if _, ok := IdentityFromContext(r.Context()); ok {
			t.Fatal("expected no identity for anonymous request")
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if !invoked {
		t.Fatal("expected handler to run without a token")
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestOptionalFirebaseAuthAttachesIdentityWhenPresent(t *testing.T) {
	authn := NewAuthenticator(&stubVerifier{token: &firebaseauth.Token{UID: "user-3"}})

	var captured *Identity
	handler := authn.OptionalFirebaseAuth()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good-token")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if captured == nil || captured.UID != "user-3" {
		t.Fatalf("expected identity user-3, got %+v", captured)
	}
}

func TestOptionalFirebaseAuthRejectsInvalidToken(t *testing.T) {
	authn := NewAuthenticator(&stubVerifier{err: errors.New("boom")})
	handler := authn.OptionalFirebaseAuth()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not be invoked")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bad-token")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireFirebaseAuthEnforcesRoles(t *testing.T) {
	verifier := &stubVerifier{token: &firebaseauth.Token{
		UID:    "user-2",
		Claims: map[string]interface{}{"role": "user"},
	}}
	authn := NewAuthenticator(verifier)

	handler := authn.RequireFirebaseAuth(RoleAdmin)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not be invoked")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good-token")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
