package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the closed set of helpdesk roles. Security-relevant branching is
// done on these values, never on free-form group names.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSuperagent Role = "superagent"
	RoleAgent      Role = "agent"
	RoleClient     Role = "client"
	RoleViewer     Role = "viewer"
)

// GroupPolicy holds per-group settings. ExemptFromTwoFactor marks an entire
// permission group as outside TOTP enforcement.
type GroupPolicy struct {
	ID                  uuid.UUID `gorm:"type:uuid;primarykey;default:gen_random_uuid()" json:"id"`
	Name                string    `gorm:"type:varchar(100);not null;uniqueIndex"         json:"name"`
	ExemptFromTwoFactor bool      `gorm:"not null;default:false"                         json:"exempt_from_two_factor"`
	CreatedAt           time.Time `                                                      json:"created_at"`
	UpdatedAt           time.Time `                                                      json:"updated_at"`
}

func (GroupPolicy) TableName() string {
	return "groups"
}

type User struct {
	ID             uuid.UUID      `gorm:"type:uuid;primarykey;default:gen_random_uuid()" json:"id"`
	FirstName      string         `gorm:"type:varchar(100)"                              json:"first_name"`
	LastName       string         `gorm:"type:varchar(100)"                              json:"last_name"`
	Email          string         `gorm:"type:varchar(254);not null;index"               json:"email"`
	HashedPassword string         `gorm:"type:varchar(255)"                              json:"-"`
	Role           Role           `gorm:"type:varchar(20);not null;default:'client'"     json:"role"`
	ProviderType   ProviderType   `gorm:"type:varchar(10);not null;default:'local'"      json:"provider_type"`
	ProviderKey    string         `gorm:"type:varchar(100);not null;default:'local'"     json:"-"`
	Approved       bool           `gorm:"not null;default:false"                         json:"approved"`
	GroupID        *uuid.UUID     `gorm:"type:uuid"                                      json:"group_id,omitempty"`
	Group          *GroupPolicy   `gorm:"foreignKey:GroupID"                             json:"group,omitempty"`
	TwoFactor      *TwoFactorProfile `gorm:"foreignKey:UserID"                           json:"-"`
	CreatedAt      time.Time      `                                                      json:"created_at"`
	UpdatedAt      time.Time      `                                                      json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index"                                          json:"-"`
}

// ExemptFromTwoFactor reports whether the user's permission group opts the
// user out of TOTP enforcement.
func (u *User) ExemptFromTwoFactor() bool {
	return u.Group != nil && u.Group.ExemptFromTwoFactor
}

// UserClaimKey is the context key under which authenticated claims are stored.
type UserClaimKey struct{}

// AuthExcludedKey marks requests on paths excluded from authentication.
type AuthExcludedKey struct{}

// UserClaims are the JWT claims carried by access and refresh tokens.
// SessionID keys the per-session verification state in the cache.
type UserClaims struct {
	Email     string    `json:"email"`
	UserID    uuid.UUID `json:"user_id"`
	SessionID uuid.UUID `json:"session_id"`
	Role      Role      `json:"role"`
	Aud       string    `json:"aud"`
	Issuer    string    `json:"iss"`
	Provider  string    `json:"provider"`
	jwt.RegisteredClaims

	// Request metadata stamped by the authenticator middleware. Never part
	// of the token itself.
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}
