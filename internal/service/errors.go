package service

import "errors"

// Validation
var (
	ErrInvalidInput = errors.New("invalid input")
)

// Tokens
var (
	ErrInvalidToken = errors.New("invalid or already used token")
	ErrTokenExpired = errors.New("token has expired")
)

// Conflicts
var (
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrAlreadyVerified    = errors.New("email already verified")
	ErrAlreadyInvited     = errors.New("an invitation is already pending for this email")
	ErrAlreadyMember      = errors.New("user is already a member of this family")
	ErrCategoryExists     = errors.New("category already exists")
)

// Lookups and authentication
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrUnauthenticated    = errors.New("authentication required")
)
