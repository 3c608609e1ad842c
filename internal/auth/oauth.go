package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	"gorm.io/gorm"

	"github.com/auditbench/auditbench/internal/apperrors"
	"github.com/auditbench/auditbench/internal/database/models"
)

const (
	ProviderGoogle = "google"
	ProviderGitHub = "github"
)

// OAuthProvider wraps an oauth2 config plus the provider's profile
// endpoint. Sign-in links an existing account by email or creates one.
type OAuthProvider struct {
	Name       string
	Config     *oauth2.Config
	ProfileURL string
}

func NewGoogleProvider(clientID, clientSecret, redirectURL string) *OAuthProvider {
	return &OAuthProvider{
		Name: ProviderGoogle,
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoints.Google,
		},
		ProfileURL: "https://www.googleapis.com/oauth2/v2/userinfo",
	}
}

func NewGitHubProvider(clientID, clientSecret, redirectURL string) *OAuthProvider {
	return &OAuthProvider{
		Name: ProviderGitHub,
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     endpoints.GitHub,
		},
		ProfileURL: "https://api.github.com/user",
	}
}

func (p *OAuthProvider) Enabled() bool {
	return p.Config.ClientID != "" && p.Config.ClientSecret != ""
}

func (p *OAuthProvider) AuthURL(state string) string {
	return p.Config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

type oauthProfile struct {
	ID    json.Number `json:"id"`
	Email string      `json:"email"`
	Name  string      `json:"name"`
	Login string      `json:"login"` // github fallback when name is unset
}

// Exchange trades the callback code for the provider profile.
func (p *OAuthProvider) Exchange(ctx context.Context, code string) (*oauthProfile, error) {
	token, err := p.Config.Exchange(ctx, code)
	if err != nil {
		return nil, apperrors.Unauthorized("OAuth code exchange failed")
	}

	client := p.Config.Client(ctx, token)
	resp, err := client.Get(p.ProfileURL)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("fetch %s profile: %w", p.Name, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Unauthorized("OAuth profile fetch rejected")
	}

	var profile oauthProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("decode %s profile: %w", p.Name, err))
	}
	if profile.Name == "" {
		profile.Name = profile.Login
	}
	if profile.Email == "" {
		return nil, apperrors.Unauthorized("OAuth provider returned no email")
	}

	return &profile, nil
}

// LoginWithOAuth completes a social sign-in: an account already linked to
// this provider identity is used as-is, an account with the same email is
// linked, otherwise a new verified account is created.
func (s *Service) LoginWithOAuth(ctx context.Context, provider *OAuthProvider, code string) (*AuthResult, error) {
	profile, err := provider.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	var user models.User
	err = s.db.WithContext(ctx).
		Where("oauth_provider = ? AND oauth_id = ?", provider.Name, profile.ID.String()).
		First(&user).Error

	switch {
	case err == nil:
		// linked account

	case errors.Is(err, gorm.ErrRecordNotFound):
		email := NormalizeEmail(profile.Email)
		err = s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
		switch {
		case err == nil:
			user.OAuthProvider = provider.Name
			user.OAuthID = profile.ID.String()
			if saveErr := s.db.WithContext(ctx).Save(&user).Error; saveErr != nil {
				return nil, apperrors.Internal(saveErr)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			user = models.User{
				Name:          profile.Name,
				Email:         email,
				PasswordHash:  "oauth", // no local password; login only via provider
				Role:          models.RoleUser,
				IsActive:      true,
				EmailVerified: true,
				OAuthProvider: provider.Name,
				OAuthID:       profile.ID.String(),
			}
			if createErr := s.db.WithContext(ctx).Create(&user).Error; createErr != nil {
				return nil, apperrors.Internal(createErr)
			}
		default:
			return nil, apperrors.Internal(err)
		}

	default:
		return nil, apperrors.Internal(err)
	}

	if !user.IsActive {
		return nil, apperrors.Unauthorized("Account is inactive")
	}

	if err := s.TouchLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("last-login update failed", "user_id", user.ID, "error", err)
	}

	return s.issuePair(&user)
}
