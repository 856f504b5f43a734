package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/householdhq/budget/internal/model"
	"github.com/householdhq/budget/internal/repository"
	"github.com/jmoiron/sqlx"
)

// tokenBytes of entropy per token (256 bits)
const tokenBytes = 32

// TokenWindows holds the validity window of each token type.
type TokenWindows struct {
	EmailVerify   time.Duration
	PasswordReset time.Duration
	FamilyInvite  time.Duration
}

func DefaultTokenWindows() TokenWindows {
	return TokenWindows{
		EmailVerify:   24 * time.Hour,
		PasswordReset: time.Hour,
		FamilyInvite:  7 * 24 * time.Hour,
	}
}

type IssueRequest struct {
	Type      string
	Email     string
	FamilyID  *string
	InviterID *string
}

// IssueResult carries the new token, or Pending when a live token of the same
// kind already exists and nothing was issued.
type IssueResult struct {
	Token   *model.Token
	Pending bool
}

// Effect is applied while a token is consumed, inside the consuming transaction.
// Check runs before the token is deleted; when it fails the token is kept unless
// Discard reports true for the returned error. Apply runs after the delete succeeded.
type Effect struct {
	Check   func(ctx context.Context, tx *sqlx.Tx, token *model.Token) error
	Discard func(checkErr error) bool
	Apply   func(ctx context.Context, tx *sqlx.Tx, token *model.Token) error
}

type TokenService struct {
	db      *sqlx.DB
	windows TokenWindows
	now     func() time.Time
}

func NewTokenService(db *sqlx.DB, windows TokenWindows, now func() time.Time) *TokenService {
	if now == nil {
		now = utcNow
	}
	return &TokenService{db: db, windows: windows, now: now}
}

func utcNow() time.Time {
	return time.Now().UTC()
}

func (s *TokenService) window(tokenType string) (time.Duration, error) {
	switch tokenType {
	case model.TokenTypeEmailVerify:
		return s.windows.EmailVerify, nil
	case model.TokenTypePasswordReset:
		return s.windows.PasswordReset, nil
	case model.TokenTypeFamilyInvite:
		return s.windows.FamilyInvite, nil
	}
	return 0, fmt.Errorf("unknown token type %q", tokenType)
}

// Issue mints and stores a new token. Reset and invitation tokens are not
// re-issued while a live one exists for the same email (and family); the check
// is not atomic, so concurrent requests may both issue, and both tokens stay valid.
func (s *TokenService) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	window, err := s.window(req.Type)
	if err != nil {
		return nil, err
	}

	tokens := repository.NewTokenRepository(s.db)
	now := s.now()

	if req.Type == model.TokenTypePasswordReset || req.Type == model.TokenTypeFamilyInvite {
		existing, err := tokens.ByEmailAndType(ctx, req.Email, req.Type)
		if err != nil {
			return nil, fmt.Errorf("failed to look up pending tokens: %w", err)
		}
		for _, t := range existing {
			if t.IsLive(now) && sameRef(t.FamilyID, req.FamilyID) {
				return &IssueResult{Pending: true}, nil
			}
		}
	}

	value, err := GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	token := &model.Token{
		Email:     req.Email,
		Token:     value,
		Type:      req.Type,
		ExpiresAt: now.Add(window),
		FamilyID:  req.FamilyID,
		InviterID: req.InviterID,
		CreatedAt: now,
	}
	err = tokens.Create(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}

	slog.DebugContext(ctx, "token issued", "type", token.Type, "email", token.Email, "expires_at", token.ExpiresAt)
	return &IssueResult{Token: token}, nil
}

// Consume validates a presented token and, in the same transaction, deletes it
// and applies the effect. Expired tokens are deleted on detection.
// Of concurrent calls with the same value at most one succeeds.
func (s *TokenService) Consume(ctx context.Context, tokenType, value string, effect Effect) (*model.Token, error) {
	if value == "" {
		return nil, ErrInvalidToken
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	tokens := repository.NewTokenRepository(tx)

	token, err := tokens.ByToken(ctx, value)
	if errors.Is(err, repository.ErrTokenNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	if token.Type != tokenType {
		return nil, ErrInvalidToken
	}

	if token.IsExpired(s.now()) {
		_, err = tokens.Delete(ctx, token.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to delete expired token: %w", err)
		}
		err = tx.Commit()
		if err != nil {
			return nil, fmt.Errorf("failed to commit expired token deletion: %w", err)
		}
		slog.InfoContext(ctx, "expired token deleted", "type", token.Type, "email", token.Email)
		return nil, ErrTokenExpired
	}

	if effect.Check != nil {
		checkErr := effect.Check(ctx, tx, token)
		if checkErr != nil {
			if effect.Discard != nil && effect.Discard(checkErr) {
				_, err = tokens.Delete(ctx, token.ID)
				if err == nil {
					err = tx.Commit()
				}
				if err != nil {
					slog.ErrorContext(ctx, "failed to discard token after rejected check", "error", err, "type", token.Type)
				}
			}
			return nil, checkErr
		}
	}

	deleted, err := tokens.Delete(ctx, token.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to consume token: %w", err)
	}
	if !deleted {
		// Another request consumed it between our read and delete
		return nil, ErrInvalidToken
	}

	if effect.Apply != nil {
		err = effect.Apply(ctx, tx, token)
		if err != nil {
			return nil, err
		}
	}

	err = tx.Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to commit token consumption: %w", err)
	}

	return token, nil
}

// GenerateToken returns a hex encoded 256-bit random value.
func GenerateToken() (string, error) {
	bytes := make([]byte, tokenBytes)
	_, err := rand.Read(bytes)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func sameRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
