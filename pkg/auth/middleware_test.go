package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequireRoleRejectsMissingToken(t *testing.T) {
	m, _ := newTestManager(t)
	handler := m.RequireRole(RoleAdmin, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not run without a token")
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/admin/api/agents", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireRoleRejectsWrongRole(t *testing.T) {
	m, _ := newTestManager(t)
	token, _, err := m.Issue(Credential{Username: "bob", Role: "viewer"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	handler := m.RequireRole(RoleAdmin, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not run for the wrong role")
	})

	req := httptest.NewRequest(http.MethodGet, "/admin/api/agents", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRequireRoleAdmitsValidAdminTokenAndAttachesClaims(t *testing.T) {
	m, _ := newTestManager(t)
	token, _, err := m.Issue(Credential{Username: "alice", Role: RoleAdmin})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	var sawRole string
	handler := m.RequireRole(RoleAdmin, func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			t.Fatalf("expected claims to be attached to the request context")
		}
		sawRole = claims.Role
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/admin/api/agents", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if sawRole != RoleAdmin {
		t.Fatalf("expected claims role %q, got %q", RoleAdmin, sawRole)
	}
}

func TestLoginHandlerReturnsTokenForValidCredentials(t *testing.T) {
	m, _ := newTestManager(t)
	req := httptest.NewRequest(http.MethodPost, "/admin/api/login", strings.NewReader(`{"username":"alice","password":"correct horse"}`))
	rec := httptest.NewRecorder()
	m.LoginHandler()(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "token") {
		t.Fatalf("expected a token field in the response body, got %s", rec.Body.String())
	}
}

func TestLoginHandlerRejectsBadCredentials(t *testing.T) {
	m, _ := newTestManager(t)
	req := httptest.NewRequest(http.MethodPost, "/admin/api/login", strings.NewReader(`{"username":"alice","password":"wrong"}`))
	rec := httptest.NewRecorder()
	m.LoginHandler()(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
