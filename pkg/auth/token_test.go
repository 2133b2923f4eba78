package auth

import (
	"testing"
	"time"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	m := NewManager("test-secret", []Credential{
		{Username: "alice", PasswordHash: hash, Role: RoleAdmin},
	}, time.Minute)
	return m, hash
}

func TestLoginSucceedsWithCorrectPassword(t *testing.T) {
	m, _ := newTestManager(t)
	token, exp, err := m.Login("alice", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}
	if !exp.After(time.Now()) {
		t.Fatalf("expected expiry in the future")
	}
}

func TestLoginFailsWithWrongPassword(t *testing.T) {
	m, _ := newTestManager(t)
	if _, _, err := m.Login("alice", "wrong"); err == nil {
		t.Fatalf("expected login to fail with wrong password")
	}
}

func TestLoginFailsWithUnknownUser(t *testing.T) {
	m, _ := newTestManager(t)
	if _, _, err := m.Login("bob", "anything"); err == nil {
		t.Fatalf("expected login to fail for unknown user")
	}
}

func TestValidateRoundTrips(t *testing.T) {
	m, _ := newTestManager(t)
	token, _, err := m.Login("alice", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Subject != "alice" || claims.Role != RoleAdmin {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestValidateRejectsTamperedToken(t *testing.T) {
	m, _ := newTestManager(t)
	token, _, err := m.Login("alice", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := m.Validate(token + "x"); err == nil {
		t.Fatalf("expected tampered token to fail validation")
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	hash, err := HashPassword("pw")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	m := NewManager("secret", []Credential{{Username: "bob", PasswordHash: hash, Role: "user"}}, time.Nanosecond)
	token, _, err := m.Login("bob", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := m.Validate(token); err == nil {
		t.Fatalf("expected expired token to fail validation")
	}
}
