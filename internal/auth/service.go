package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"github.com/auditbench/auditbench/internal/apperrors"
	"github.com/auditbench/auditbench/internal/database/models"
	"github.com/auditbench/auditbench/internal/tasks"
)

const (
	resetTokenTTL = time.Hour

	// Identical wording for unknown email and wrong password so login
	// responses cannot be used for account enumeration.
	msgInvalidCredentials = "Invalid email or password"
)

type Service struct {
	db     *gorm.DB
	tokens *TokenIssuer
	queue  *asynq.Client // nil when Redis is unavailable
	logger *slog.Logger
}

func NewService(db *gorm.DB, tokens *TokenIssuer, queue *asynq.Client, logger *slog.Logger) *Service {
	return &Service{db: db, tokens: tokens, queue: queue, logger: logger}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

// AuthResult is the user plus a freshly issued token pair.
type AuthResult struct {
	User         *models.User
	Token        string
	RefreshToken string
}

func (s *Service) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	email := NormalizeEmail(input.Email)

	var existing models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil, apperrors.Conflict("User with this email already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Internal(err)
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	user := models.User{
		Name:                   input.Name,
		Email:                  email,
		PasswordHash:           hash,
		Role:                   models.RoleUser,
		IsActive:               true,
		EmailVerificationToken: randomToken(),
	}

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, apperrors.Internal(err)
	}

	s.enqueueEmail(tasks.EmailPayload{
		To:       user.Email,
		Kind:     tasks.EmailKindVerification,
		UserID:   user.ID,
		TokenRef: user.EmailVerificationToken,
	})

	return s.issuePair(&user)
}

func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ?", NormalizeEmail(input.Email)).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Unauthorized(msgInvalidCredentials)
		}
		return nil, apperrors.Internal(err)
	}

	if !user.IsActive || !CheckPassword(input.Password, user.PasswordHash) {
		return nil, apperrors.Unauthorized(msgInvalidCredentials)
	}

	if err := s.TouchLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("last-login update failed", "user_id", user.ID, "error", err)
	}

	return s.issuePair(&user)
}

// Refresh exchanges a valid refresh token for a new access token and a
// new refresh token. The previous refresh token is NOT invalidated;
// verification is stateless and rotation only shortens the window in
// which a client keeps using an old credential.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.tokens.Verify(refreshToken, TokenTypeRefresh)
	if err != nil {
		switch {
		case errors.Is(err, ErrExpiredToken):
			return nil, apperrors.Unauthorized("Refresh token expired")
		default:
			return nil, apperrors.Unauthorized("Invalid refresh token")
		}
	}

	user, err := s.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, apperrors.Unauthorized("Invalid refresh token")
	}
	if !user.IsActive {
		return nil, apperrors.Unauthorized("Invalid refresh token")
	}

	return s.issuePair(user)
}

func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("User")
		}
		return nil, apperrors.Internal(err)
	}
	return &user, nil
}

// TouchLastLogin records the authentication time. Callers treat failure
// as non-fatal.
func (s *Service) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("last_login_at", time.Now()).Error
}

type ProfileUpdate struct {
	Name   string
	Email  string
	Avatar *string
}

func (s *Service) UpdateProfile(ctx context.Context, user *models.User, update ProfileUpdate) (*models.User, error) {
	if update.Email != "" {
		email := NormalizeEmail(update.Email)
		if email != user.Email {
			var existing models.User
			err := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
			if err == nil {
				return nil, apperrors.Conflict("Email is already in use")
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.Internal(err)
			}
			user.Email = email
			user.EmailVerified = false
		}
	}
	if update.Name != "" {
		user.Name = update.Name
	}
	if update.Avatar != nil {
		user.Avatar = *update.Avatar
	}

	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return nil, apperrors.Internal(err)
	}
	return user, nil
}

// ForgotPassword never reveals whether the account exists: the caller
// gets the same answer either way, and the reset mail is only enqueued
// when it does.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return apperrors.Internal(err)
	}

	token := randomToken()
	expires := time.Now().Add(resetTokenTTL)
	updates := map[string]interface{}{
		"password_reset_token":   hashToken(token),
		"password_reset_expires": expires,
	}
	if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
		return apperrors.Internal(err)
	}

	s.enqueueEmail(tasks.EmailPayload{
		To:       user.Email,
		Kind:     tasks.EmailKindPasswordReset,
		UserID:   user.ID,
		TokenRef: token,
	})

	return nil
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("password_reset_token = ?", hashToken(token)).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.Unauthorized("Invalid or expired reset token")
		}
		return apperrors.Internal(err)
	}

	if user.PasswordResetExpires == nil || time.Now().After(*user.PasswordResetExpires) {
		return apperrors.Unauthorized("Invalid or expired reset token")
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return apperrors.Internal(err)
	}

	updates := map[string]interface{}{
		"password_hash":          hash,
		"password_reset_token":   "",
		"password_reset_expires": nil,
	}
	if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

// EnsureAdmin creates the bootstrap admin account when no admin exists.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("role = ?", models.RoleAdmin).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	admin := models.User{
		Name:          "Administrator",
		Email:         NormalizeEmail(email),
		PasswordHash:  hash,
		Role:          models.RoleAdmin,
		IsActive:      true,
		EmailVerified: true,
	}
	if err := s.db.WithContext(ctx).Create(&admin).Error; err != nil {
		return err
	}

	s.logger.Info("bootstrap admin created", "email", admin.Email)
	return nil
}

func (s *Service) issuePair(user *models.User) (*AuthResult, error) {
	access, err := s.tokens.IssueAccess(user.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	refresh, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &AuthResult{User: user, Token: access, RefreshToken: refresh}, nil
}

func (s *Service) enqueueEmail(payload tasks.EmailPayload) {
	if s.queue == nil {
		return
	}
	task, err := tasks.NewEmailTask(payload)
	if err != nil {
		s.logger.Error("build email task", "error", err)
		return
	}
	if _, err := s.queue.Enqueue(task); err != nil {
		s.logger.Warn("enqueue email task", "kind", payload.Kind, "error", err)
	}
}

// NormalizeEmail lowercases and trims an address; emails are compared
// and stored in this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func randomToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(buf)
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
