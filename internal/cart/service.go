package cart

import (
	"context"
	"fmt"

	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bookstore-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service is the authoritative per-user cart. Clients only display it.
type Service interface {
	AddItem(ctx context.Context, userID, bookID uuid.UUID) (*View, error)
	RemoveItem(ctx context.Context, userID, bookID uuid.UUID) (*View, error)
	FetchCart(ctx context.Context, userID uuid.UUID) (*View, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	repo  Repository
	books bookLookup
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo Repository, books bookLookup) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if books == nil {
		return nil, fmt.Errorf("book lookup required")
	}
	return &service{repo: repo, books: books}, nil
}

func (s *service) AddItem(ctx context.Context, userID, bookID uuid.UUID) (*View, error) {
	if userID == uuid.Nil || bookID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user and book are required")
	}
	if _, err := s.books.GetBook(ctx, bookID); err != nil {
		return nil, err
	}
	if _, err := s.repo.AddItem(ctx, userID, bookID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add cart item")
	}
	return s.FetchCart(ctx, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID, bookID uuid.UUID) (*View, error) {
	if userID == uuid.Nil || bookID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user and book are required")
	}
	if _, err := s.repo.RemoveItem(ctx, userID, bookID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
	}
	return s.FetchCart(ctx, userID)
}

func (s *service) FetchCart(ctx context.Context, userID uuid.UUID) (*View, error) {
	items, err := s.repo.ListItems(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
	}
	return s.price(ctx, items)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.repo.Clear(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func (s *service) price(ctx context.Context, items []models.CartItem) (*View, error) {
	view := &View{Items: make([]Line, 0, len(items)), Total: decimal.Zero}
	if len(items) == 0 {
		return view, nil
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.BookID)
	}
	books, err := s.books.BooksByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		book, ok := books[item.BookID]
		if !ok {
			view.Unavailable = append(view.Unavailable, item.BookID)
			continue
		}
		view.Items = append(view.Items, Line{
			BookID: book.ID,
			Title:  book.Title,
			Author: book.Author,
			Price:  book.Price,
		})
		view.Total = view.Total.Add(book.Price)
	}
	return view, nil
}
