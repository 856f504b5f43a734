package model

import (
	"time"
)

type User struct {
	ID           string     `db:"id"`
	Email        string     `db:"email"`
	Name         string     `db:"name"`
	PasswordHash *string    `db:"password_hash"` // Nullable until a password is set
	IsVerified   bool       `db:"is_verified"`
	VerifiedAt   *time.Time `db:"verified_at"`
	FamilyID     string     `db:"family_id"`
	InvitedBy    *string    `db:"invited_by"`
	InvitedAt    *time.Time `db:"invited_at"`
	CreatedAt    time.Time  `db:"created_at"`
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// CanLogIn reports whether the account finished verification and has a credential.
func (u *User) CanLogIn() bool {
	return u.IsVerified && u.HasPassword()
}

func (u *User) MarkVerified(at time.Time) {
	u.IsVerified = true
	u.VerifiedAt = &at
}
