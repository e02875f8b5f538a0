// Package domain holds the farm record-keeping entities and the pure rules
// over them (cycle transitions, area conversion, activity tallies).
package domain

import "time"

// Role is a caller's platform role.
type Role string

const (
	RoleFarmer Role = "FARMER"
	RoleAdmin  Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleFarmer || r == RoleAdmin
}

// User is a person who signs in with a password, linked accounts, or both.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name,omitempty"`
	Email        string    `json:"email,omitempty"`
	Username     string    `json:"username,omitempty"`
	Image        string    `json:"image,omitempty"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// HasPassword reports whether the user can sign in with credentials.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// Account is an external identity linked to a user.
type Account struct {
	ID                string    `json:"id"`
	UserID            string    `json:"-"`
	Provider          string    `json:"provider"`
	ProviderAccountID string    `json:"-"`
	Type              string    `json:"type"`
	CreatedAt         time.Time `json:"createdAt"`
}

// CanUnlink reports whether removing every account of provider still leaves
// the user a way to sign in: a password or an account of another provider.
func CanUnlink(hasPassword bool, accounts []Account, provider string) bool {
	if hasPassword {
		return true
	}
	for _, a := range accounts {
		if a.Provider != provider {
			return true
		}
	}
	return false
}
