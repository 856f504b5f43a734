package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/householdhq/budget/internal/model"
	"github.com/jmoiron/sqlx"
)

var ErrDuplicateCategory = errors.New("category already exists")

type CategoryRepository interface {
	Create(ctx context.Context, category *model.Category) error
	ByFamily(ctx context.Context, familyID string) ([]*model.Category, error)
}

type categoryRepository struct {
	db DBTX
}

func NewCategoryRepository(db DBTX) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) Create(ctx context.Context, category *model.Category) error {
	if category.ID == "" {
		category.ID = uuid.New().String()
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, family_id, name, kind, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, category.ID, category.FamilyID, category.Name, category.Kind, category.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateCategory
	}
	return err
}

func (r *categoryRepository) ByFamily(ctx context.Context, familyID string) ([]*model.Category, error) {
	var categories []*model.Category
	err := sqlx.SelectContext(ctx, r.db, &categories,
		`SELECT * FROM categories WHERE family_id = $1 ORDER BY kind ASC, name ASC`, familyID)
	if err != nil {
		return nil, err
	}
	return categories, nil
}
