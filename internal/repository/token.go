package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/householdhq/budget/internal/model"
	"github.com/jmoiron/sqlx"
)

var ErrTokenNotFound = errors.New("token not found")

type TokenRepository interface {
	Create(ctx context.Context, token *model.Token) error
	ByToken(ctx context.Context, token string) (*model.Token, error)
	ByEmailAndType(ctx context.Context, email, tokenType string) ([]*model.Token, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type tokenRepository struct {
	db DBTX
}

func NewTokenRepository(db DBTX) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) Create(ctx context.Context, token *model.Token) error {
	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO tokens (id, email, token, type, expires_at, family_id, inviter_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		token.ID,
		token.Email,
		token.Token,
		token.Type,
		token.ExpiresAt,
		token.FamilyID,
		token.InviterID,
		token.CreatedAt,
	)
	return err
}

func (r *tokenRepository) ByToken(ctx context.Context, token string) (*model.Token, error) {
	var t model.Token
	err := sqlx.GetContext(ctx, r.db, &t, `SELECT * FROM tokens WHERE token = $1`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ByEmailAndType returns every stored token of a type for an email, live or not.
// Expiry is decided by the caller so that both drivers compare timestamps the same way.
func (r *tokenRepository) ByEmailAndType(ctx context.Context, email, tokenType string) ([]*model.Token, error) {
	var tokens []*model.Token
	err := sqlx.SelectContext(ctx, r.db, &tokens,
		`SELECT * FROM tokens WHERE email = $1 AND type = $2 ORDER BY created_at DESC`, email, tokenType)
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// Delete removes the token row and reports whether this call removed it.
// Concurrent callers racing on the same id see true exactly once.
func (r *tokenRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tokens WHERE id = $1`, id)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}
