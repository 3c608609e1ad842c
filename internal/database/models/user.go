package models

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	Base
	Name         string `gorm:"not null" json:"name"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"` // stored lowercased
	PasswordHash string `gorm:"not null" json:"-"`
	Role         string `gorm:"default:'user'" json:"role"` // user, admin
	Avatar       string `json:"avatar,omitempty"`
	IsActive     bool   `gorm:"default:true" json:"is_active"`

	EmailVerified          bool   `gorm:"default:false" json:"email_verified"`
	EmailVerificationToken string `gorm:"index" json:"-"`

	// Hash of the reset token, never the token itself
	PasswordResetToken   string     `gorm:"index" json:"-"`
	PasswordResetExpires *time.Time `json:"-"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`

	// Social sign-in linkage
	OAuthProvider string `json:"oauth_provider,omitempty"` // google, github
	OAuthID       string `gorm:"index" json:"-"`

	// Relationships
	Projects []Project `gorm:"foreignKey:OwnerID" json:"-"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
