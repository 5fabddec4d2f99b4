package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User is an account that can sign in; teacher accounts link to a
// teacher profile.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Name         string    `db:"name" json:"name"`
	Role         string    `db:"role" json:"role"`
	TeacherID    *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Roles supported by the API.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
)

// LoginRequest carries credentials for authentication.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest creates a teacher account together with its profile.
type RegisterRequest struct {
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=8"`
	Name           string `json:"name" validate:"required"`
	MaxLoadPerWeek int    `json:"max_load_per_week" validate:"omitempty,min=0"`
}

// AuthenticatedUser is the public projection returned on login/register.
type AuthenticatedUser struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	Name      string  `json:"name"`
	Role      string  `json:"role"`
	TeacherID *string `json:"teacher_id,omitempty"`
}

// RefreshToken is a long lived opaque credential used to mint new
// access tokens. Tokens rotate on every use and stay revocable.
type RefreshToken struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"user_id"`
	Token     string     `db:"token" json:"-"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	Revoked   bool       `db:"revoked" json:"revoked"`
	RevokedAt *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
}

// RefreshRequest exchanges a refresh token for a new token pair.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LogoutRequest revokes the supplied refresh token.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LoginResponse bundles the issued token pair with the user projection.
type LoginResponse struct {
	Token        string            `json:"token"`
	RefreshToken string            `json:"refresh_token"`
	User         AuthenticatedUser `json:"user"`
}

// JWTClaims is the access token payload.
type JWTClaims struct {
	UserID    string  `json:"uid"`
	Email     string  `json:"email"`
	Role      string  `json:"role"`
	TeacherID *string `json:"teacher_id,omitempty"`
	jwt.RegisteredClaims
}
