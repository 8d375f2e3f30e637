package model

import (
	"strings"
	"time"
)

// Role is the closed set of account roles. Authorization decisions switch
// over it exhaustively.
type Role string

const (
	RoleUser          Role = "user"
	RoleFacilityOwner Role = "facility_owner"
	RoleAdmin         Role = "admin"
	// RoleSystem is used by background jobs and is never issued in a token.
	RoleSystem Role = "system"
)

// ParseRole accepts the roles that can be carried by an account.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleUser, RoleFacilityOwner, RoleAdmin:
		return r, true
	}
	return "", false
}

// Actor identifies who is performing an operation.
type Actor struct {
	UserID uint64
	Role   Role
}

// SystemActor performs time-driven transitions.
var SystemActor = Actor{Role: RoleSystem}

// User represents an account record as stored in the `users` table.
//
// Fields:
//  ID            – primary key identifier of the user.
//  Email         – unique email address.
//  Name          – display name.
//  PasswordHash  – bcrypt hashed password.
//  Role          – account role.
//  IsActive      – whether the account may sign in.
//  EmailVerified – whether the sign-up code was confirmed.
//  CreatedAt     – timestamp of creation.
//  UpdatedAt     – timestamp of last update.
type User struct {
	ID            uint64    // users.id
	Email         string    // users.email
	Name          string    // users.name
	PasswordHash  string    // users.password_hash
	Role          Role      // users.role
	IsActive      bool      // users.is_active
	EmailVerified bool      // users.email_verified
	CreatedAt     time.Time // users.created_at
	UpdatedAt     time.Time // users.updated_at
}

// UserQuery filters the admin user listing. Search matches name or email,
// case-insensitively.
type UserQuery struct {
	Search string
	Role   Role
	Active *bool
	Limit  int
}

// Match reports whether u passes the query.
func (q UserQuery) Match(u User) bool {
	if q.Role != "" && u.Role != q.Role {
		return false
	}
	if q.Active != nil && u.IsActive != *q.Active {
		return false
	}
	if s := strings.ToLower(strings.TrimSpace(q.Search)); s != "" {
		return strings.Contains(strings.ToLower(u.Name), s) || strings.Contains(strings.ToLower(u.Email), s)
	}
	return true
}

// RefreshToken models an entry in the `refresh_tokens` table. Only the
// SHA-256 hash of the raw token is kept.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
