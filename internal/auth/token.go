package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/egov/grievance-service/internal/domain"
)

// TokenManager validates bearer tokens minted by the identity provider. GenerateToken
// exists for local development and tests.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// Claims describes JWT payload. The caller id travels in the standard sub claim.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken builds and signs a JWT for actor.
func (tm *TokenManager) GenerateToken(actor domain.Actor) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(tm.ttl)
	claims := &Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates a token and returns the actor it names.
func (tm *TokenManager) ParseToken(tokenStr string) (domain.Actor, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return domain.Actor{}, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return domain.Actor{}, errors.New("invalid token claims")
	}
	if claims.Subject == "" {
		return domain.Actor{}, errors.New("token has no subject")
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return domain.Actor{}, err
	}
	return domain.Actor{ID: claims.Subject, Role: role}, nil
}
