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

var ErrFamilyNotFound = errors.New("family not found")

type FamilyRepository interface {
	Create(ctx context.Context, family *model.Family) error
	ByID(ctx context.Context, id string) (*model.Family, error)
}

type familyRepository struct {
	db DBTX
}

func NewFamilyRepository(db DBTX) FamilyRepository {
	return &familyRepository{db: db}
}

func (r *familyRepository) Create(ctx context.Context, family *model.Family) error {
	if family.ID == "" {
		family.ID = uuid.New().String()
	}
	if family.CreatedAt.IsZero() {
		family.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO families (id, name, created_at) VALUES ($1, $2, $3)`,
		family.ID, family.Name, family.CreatedAt,
	)
	return err
}

func (r *familyRepository) ByID(ctx context.Context, id string) (*model.Family, error) {
	var family model.Family
	err := sqlx.GetContext(ctx, r.db, &family, `SELECT * FROM families WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFamilyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &family, nil
}
