package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/householdhq/budget/internal/model"
	"github.com/householdhq/budget/internal/repository"
	v "github.com/householdhq/budget/internal/validation"
)

type CategoryService struct {
	repo repository.CategoryRepository
}

func NewCategoryService(repo repository.CategoryRepository) *CategoryService {
	return &CategoryService{repo: repo}
}

func (s *CategoryService) List(ctx context.Context, identity *Identity) ([]*model.Category, error) {
	if identity == nil {
		return nil, ErrUnauthenticated
	}

	categories, err := s.repo.ByFamily(ctx, identity.FamilyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

func (s *CategoryService) Create(ctx context.Context, identity *Identity, name, kind string) (*model.Category, error) {
	if identity == nil {
		return nil, ErrUnauthenticated
	}

	name = strings.TrimSpace(name)
	err := validation.Errors{
		"name": v.ValidateName(name),
		"kind": validation.Validate(kind,
			validation.Required.Error("kind is required"),
			validation.In(model.CategoryKindExpense, model.CategoryKindIncome).Error("kind must be expense or income"),
		),
	}.Filter()
	if err != nil {
		return nil, invalid(err)
	}

	category := &model.Category{FamilyID: identity.FamilyID, Name: name, Kind: kind}
	err = s.repo.Create(ctx, category)
	if errors.Is(err, repository.ErrDuplicateCategory) {
		return nil, ErrCategoryExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return category, nil
}
