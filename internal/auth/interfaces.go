package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/auditbench/auditbench/internal/database/models"
)

// Authenticator defines the credential-store operations handlers use.
type Authenticator interface {
	Register(ctx context.Context, input RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, input LoginInput) (*AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthResult, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID) error
}

// TokenService defines issuance and verification of signed tokens.
type TokenService interface {
	IssueAccess(userID uuid.UUID) (string, error)
	IssueRefresh(userID uuid.UUID) (string, error)
	Verify(tokenString string, expected TokenType) (*Claims, error)
}

// Compile-time interface satisfaction checks
var (
	_ Authenticator = (*Service)(nil)
	_ TokenService  = (*TokenIssuer)(nil)
)
