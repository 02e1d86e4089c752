package users

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// AuthorityType represents a portal authority granted to a user. Authorities
// arrive inside the access token's claims and gate what the admin portal
// renders; the SDK never invents or filters them.
type AuthorityType = string

const (
	AuthoritySuperAdmin  AuthorityType = "SUPER_ADMIN"
	AuthorityTenantAdmin AuthorityType = "TENANT_ADMIN"
	AuthorityUser        AuthorityType = "USER"
)

// User is the operator identity derived from the current access token. It is
// never fetched independently - the token is the single source of truth, and
// the session store replaces the whole value whenever tokens change.
//
// JSON tags match the portal's persisted "auth-storage" layout.
type User struct {
	UserID      string          `json:"userId"`                // Subject claim - unique identifier for the user
	Email       string          `json:"email"`                 // User's email address
	UserName    string          `json:"userName"`              // Display/login name, falls back to email
	TenantID    string          `json:"tenantId,omitempty"`    // Tenant the session is scoped to
	Authorities []AuthorityType `json:"authorities,omitempty"` // Granted authorities from the token
	Metadata    map[string]any  `json:"metadata,omitempty"`    // Optional extra claims carried through as-is
}

// DisplayName returns the best human-readable name for the user.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.UserName != "" {
		return u.UserName
	}
	return u.Email
}

// HasAuthority reports whether the user holds the given authority.
// Comparison is case-insensitive since backends differ on claim casing.
func (u *User) HasAuthority(authority AuthorityType) bool {
	if u == nil {
		return false
	}
	for _, a := range u.Authorities {
		if strings.EqualFold(a, authority) {
			return true
		}
	}
	return false
}

// HashPassword generates a bcrypt hash for the given password.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("[HashPassword] bcrypt.GenerateFromPassword: %w", err)
	}
	return string(bytes), nil
}

// CheckPasswordHash compares a plaintext password with a bcrypt hash.
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
