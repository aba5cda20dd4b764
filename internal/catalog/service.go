package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bookstore-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service maps catalog lookups onto the API error taxonomy.
type Service interface {
	GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error)
	BooksByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Book, error)
	GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	ListPlans(ctx context.Context) ([]models.Plan, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	book, err := s.repo.FindBook(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "book not found").WithDetails(map[string]any{"bookId": id})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
	}
	return book, nil
}

// BooksByID resolves current catalog rows. Missing or inactive books are absent from the map.
func (s *service) BooksByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Book, error) {
	books, err := s.repo.FindBooks(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load books")
	}
	out := make(map[uuid.UUID]models.Book, len(books))
	for _, book := range books {
		out[book.ID] = book
	}
	return out, nil
}

func (s *service) GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	plan, err := s.repo.FindPlan(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found").WithDetails(map[string]any{"planId": id})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load plan")
	}
	return plan, nil
}

func (s *service) ListPlans(ctx context.Context) ([]models.Plan, error) {
	plans, err := s.repo.ListPlans(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list plans")
	}
	return plans, nil
}
