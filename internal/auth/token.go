package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joshu-sajeev/orchestrator/internal/config"
)

var ErrInvalidToken = errors.New("invalid token")

const accessTokenType = "access"

// Identity is the caller a verified access token speaks for.
type Identity struct {
	UserID   string
	TenantID string
	Role     config.Role
}

// CanWrite reports whether the identity may create, retry or cancel jobs.
func (i Identity) CanWrite() bool {
	for _, r := range config.WriterRoles {
		if i.Role == r {
			return true
		}
	}
	return false
}

type Verifier interface {
	Verify(token string) (Identity, error)
}

type Claims struct {
	TenantID string      `json:"tenant_id"`
	Role     config.Role `json:"role,omitempty"`
	Type     string      `json:"type"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 access tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (m *TokenManager) Issue(userID, tenantID string, role config.Role) (string, error) {
	now := m.now()
	claims := Claims{
		TenantID: tenantID,
		Role:     role,
		Type:     accessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry and token type. Tokens without a subject or
// tenant are rejected. A missing role is treated as a plain user.
func (m *TokenManager) Verify(token string) (Identity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Type != accessTokenType {
		return Identity{}, fmt.Errorf("%w: not an access token", ErrInvalidToken)
	}
	if claims.Subject == "" || claims.TenantID == "" {
		return Identity{}, fmt.Errorf("%w: missing subject or tenant", ErrInvalidToken)
	}

	role := claims.Role
	if role == "" {
		role = config.RoleUser
	}
	return Identity{UserID: claims.Subject, TenantID: claims.TenantID, Role: role}, nil
}
