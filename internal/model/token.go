package model

import (
	"time"
)

// Token is a single-use, time-limited capability. A row exists while the token
// is issued; consuming or expiring it deletes the row.
type Token struct {
	ID        string    `db:"id"`
	Email     string    `db:"email"`
	Token     string    `db:"token"`
	Type      string    `db:"type"`
	ExpiresAt time.Time `db:"expires_at"`
	FamilyID  *string   `db:"family_id"`  // invitations only
	InviterID *string   `db:"inviter_id"` // invitations only
	CreatedAt time.Time `db:"created_at"`
}

const (
	TokenTypeEmailVerify   = "email_verify"
	TokenTypePasswordReset = "password_reset"
	TokenTypeFamilyInvite  = "family_invite"
)

// IsExpired reports whether the token's expiry lies before now.
func (t *Token) IsExpired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}

func (t *Token) IsLive(now time.Time) bool {
	return !t.IsExpired(now)
}

// Lifetime is the validity window the token was issued with.
func (t *Token) Lifetime() time.Duration {
	return t.ExpiresAt.Sub(t.CreatedAt)
}
