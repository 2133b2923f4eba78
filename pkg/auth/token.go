package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/lancejames221b/agent-hivemind/pkg/hiveerr"
)

var errInvalidCredentials = errors.New("invalid username or password")

// HashPassword bcrypt-hashes a plaintext password for storage in a
// Credential.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Authenticate checks a username/password pair against the configured
// credentials.
func (m *Manager) Authenticate(username, password string) (Credential, error) {
	m.mu.RLock()
	cred, ok := m.users[strings.ToLower(strings.TrimSpace(username))]
	m.mu.RUnlock()
	if !ok {
		return Credential{}, errInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)) != nil {
		return Credential{}, errInvalidCredentials
	}
	return cred, nil
}

// Login authenticates and, on success, issues a signed bearer token.
func (m *Manager) Login(username, password string) (string, time.Time, error) {
	cred, err := m.Authenticate(username, password)
	if err != nil {
		return "", time.Time{}, hiveerr.Wrap(hiveerr.KindUnauthorized, err, "login failed")
	}
	return m.Issue(cred)
}

// Issue signs a token for an already-authenticated credential.
func (m *Manager) Issue(cred Credential) (string, time.Time, error) {
	if !m.hasSecret() {
		return "", time.Time{}, hiveerr.New(hiveerr.KindInternal, "auth signing secret not configured")
	}
	exp := time.Now().Add(m.ttl)
	claims := Claims{
		Subject: cred.Username,
		Role:    cred.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   cred.Username,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, hiveerr.Wrap(hiveerr.KindInternal, err, "failed to sign token")
	}
	return signed, exp, nil
}

// Validate parses and validates a bearer token, returning its claims.
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	if !m.hasSecret() {
		return nil, hiveerr.New(hiveerr.KindInternal, "auth signing secret not configured")
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		m.mu.RLock()
		defer m.mu.RUnlock()
		return m.secret, nil
	})
	if err != nil {
		return nil, hiveerr.Wrap(hiveerr.KindUnauthorized, err, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, hiveerr.New(hiveerr.KindUnauthorized, "invalid token")
	}
	return claims, nil
}
