package auth

import (
	"strings"
	"time"
)

// User is the identity record. PasswordHash is nil for accounts provisioned
// through an external identity provider; ExternalID is that provider's
// subject id.
type User struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash *string
	ExternalID   *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// RefreshTokenRecord is the persisted side of a refresh credential. Only the
// SHA-256 hash of the opaque token value is stored.
type RefreshTokenRecord struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

// Usable reports whether the token can still be redeemed.
func (r RefreshTokenRecord) Usable(now time.Time) bool {
	return r.RevokedAt == nil && now.Before(r.ExpiresAt)
}

// AuthResult is what every successful sign-in or refresh returns.
type AuthResult struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
	UserID             string
	Email              string
}

// ExternalIdentity is a profile verified by an identity provider.
type ExternalIdentity struct {
	Email     string
	FirstName string
	LastName  string
	SubjectID string
}
