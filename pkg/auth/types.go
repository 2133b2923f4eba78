// Package auth issues and validates the bearer tokens that gate the
// admin HTTP surface. The SSE/tool plane is assumed reached over a
// trusted network and never requires one of these tokens.
package auth

import (
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the only role the admin routes check for.
const RoleAdmin = "admin"

// DefaultTokenTTL is the bearer token validity window NewManager uses
// when it is given a non-positive ttl.
const DefaultTokenTTL = 12 * time.Hour

// Credential is a single operator account.
type Credential struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	Role         string `json:"role"`
}

// Claims is the token payload: {subject, role, exp}, plus the registered
// claims jwt.ParseWithClaims needs for expiry enforcement.
type Claims struct {
	Subject string `json:"sub"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// Manager issues and validates signed bearer tokens against a fixed set
// of operator credentials.
type Manager struct {
	mu     sync.RWMutex
	secret []byte
	users  map[string]Credential
	ttl    time.Duration
}

// NewManager builds a token manager. secret must be non-empty for Login
// and Validate to succeed; an empty secret is accepted here without
// panicking, and Issue and Validate then return a "signing secret not
// configured" error.
func NewManager(secret string, users []Credential, ttl time.Duration) *Manager {
	userMap := make(map[string]Credential, len(users))
	for _, u := range users {
		name := strings.ToLower(strings.TrimSpace(u.Username))
		if name == "" {
			continue
		}
		if u.Role == "" {
			u.Role = "user"
		}
		userMap[name] = u
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Manager{secret: []byte(secret), users: userMap, ttl: ttl}
}

func (m *Manager) hasSecret() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.secret) > 0
}
