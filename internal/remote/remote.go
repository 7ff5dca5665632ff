// Package remote defines the interface to the hosted backend holding the
// remote copy of items and categories, and an HTTP client implementing it.
package remote

import (
	"context"
	"errors"

	"github.com/lifedb/lifedb/internal/models"
)

// ErrNotConfigured is returned by [Disabled] for every operation.
var ErrNotConfigured = errors.New("remote backend is not configured")

// Repository is the remote source of truth consumed by the sync engine.
//
// Every method surfaces failure as an ordinary error. The sync engine treats
// "create failed because it already exists" identically to any other create
// failure, so implementations need not distinguish them.
type Repository interface {
	ListItems(ctx context.Context) ([]models.Item, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateItem(ctx context.Context, item models.Item) (*models.Item, error)
	UpdateItem(ctx context.Context, id string, item models.Item) (*models.Item, error)
	CreateCategory(ctx context.Context, cat models.Category) (*models.Category, error)
}

// Disabled is a Repository used when no backend URL is configured. The app
// keeps working on local data alone; any attempted sync fails with
// [ErrNotConfigured].
type Disabled struct{}

func (Disabled) ListItems(ctx context.Context) ([]models.Item, error) {
	return nil, ErrNotConfigured
}

func (Disabled) ListCategories(ctx context.Context) ([]models.Category, error) {
	return nil, ErrNotConfigured
}

func (Disabled) CreateItem(ctx context.Context, item models.Item) (*models.Item, error) {
	return nil, ErrNotConfigured
}

func (Disabled) UpdateItem(ctx context.Context, id string, item models.Item) (*models.Item, error) {
	return nil, ErrNotConfigured
}

func (Disabled) CreateCategory(ctx context.Context, cat models.Category) (*models.Category, error) {
	return nil, ErrNotConfigured
}
