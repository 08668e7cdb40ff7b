package item

import (
	"context"

	domitem "github.com/groupmesh/incsearch/internal/domain/item"
)

// Items persists groupware items.
type Items interface {
	Upsert(ctx context.Context, it domitem.Item) (domitem.Item, error)
	Get(ctx context.Context, folder, id string) (domitem.Item, error)
	Delete(ctx context.Context, folder, id string) error
	List(ctx context.Context, folder string) ([]domitem.Item, error)
	ListFolders(ctx context.Context) ([]string, error)
}
