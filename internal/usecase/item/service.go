// Package item manages stored groupware items, the material searches run
// over.
package item

import (
	"context"
	"fmt"

	"github.com/groupmesh/incsearch/internal/domain"
	domitem "github.com/groupmesh/incsearch/internal/domain/item"
)

// Service exposes item CRUD over the repository.
type Service struct {
	items Items
}

// NewService creates the item service.
func NewService(items Items) *Service {
	return &Service{items: items}
}

// Put validates and stores an item. The store assigns the modification
// stamp, so every put surfaces the item as new or updated in open searches.
func (s *Service) Put(ctx context.Context, folder, id string, props map[string]string) (domitem.Item, error) {
	it, err := domitem.New(id, folder, props)
	if err != nil {
		return domitem.Item{}, fmt.Errorf("validate item: %w", err)
	}
	return s.items.Upsert(ctx, it)
}

// Get returns one item; domain.ErrItemNotFound when absent.
func (s *Service) Get(ctx context.Context, folder, id string) (domitem.Item, error) {
	if err := domitem.ValidateFolder(folder); err != nil {
		return domitem.Item{}, err
	}
	return s.items.Get(ctx, folder, id)
}

// Delete removes one item; domain.ErrItemNotFound when absent.
func (s *Service) Delete(ctx context.Context, folder, id string) error {
	if err := domitem.ValidateFolder(folder); err != nil {
		return err
	}
	return s.items.Delete(ctx, folder, id)
}

// List returns a folder's items in modification-stamp order. Folders exist
// through their items, so an id holding none is domain.ErrFolderNotFound.
func (s *Service) List(ctx context.Context, folder string) ([]domitem.Item, error) {
	if err := domitem.ValidateFolder(folder); err != nil {
		return nil, err
	}
	items, err := s.items.List(ctx, folder)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("folder %s: %w", folder, domain.ErrFolderNotFound)
	}
	return items, nil
}
