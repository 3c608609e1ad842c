package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token has expired")
	ErrWrongTokenType = errors.New("wrong token type")
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	// Type is set on refresh tokens only; access tokens omit it.
	Type TokenType `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies access and refresh tokens. The two kinds
// are signed with separate secrets so a leaked access secret cannot mint
// long-lived credentials. All state is set at construction and never
// mutated; verification is stateless, so an issued token stays valid
// until its natural expiry.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewTokenIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

func (s *TokenIssuer) IssueAccess(userID uuid.UUID) (string, error) {
	return s.issue(userID, "", s.accessTTL, s.accessSecret)
}

func (s *TokenIssuer) IssueRefresh(userID uuid.UUID) (string, error) {
	return s.issue(userID, TokenTypeRefresh, s.refreshTTL, s.refreshSecret)
}

func (s *TokenIssuer) issue(userID uuid.UUID, typ TokenType, ttl time.Duration, secret []byte) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "auditbench",
			Subject:   userID.String(),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// Verify parses and validates a token of the expected kind. A refresh
// token presented where an access token is expected (or vice versa)
// fails with ErrWrongTokenType even when the signature checks out.
func (s *TokenIssuer) Verify(tokenString string, expected TokenType) (*Claims, error) {
	secret := s.accessSecret
	if expected == TokenTypeRefresh {
		secret = s.refreshSecret
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	switch expected {
	case TokenTypeRefresh:
		if claims.Type != TokenTypeRefresh {
			return nil, ErrWrongTokenType
		}
	default:
		if claims.Type == TokenTypeRefresh {
			return nil, ErrWrongTokenType
		}
	}

	return claims, nil
}

func (s *TokenIssuer) AccessTTL() time.Duration {
	return s.accessTTL
}
