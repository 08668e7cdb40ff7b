// Package item persists groupware items and the modification-stamp sequence.
package item

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/groupmesh/incsearch/internal/db"
	"github.com/groupmesh/incsearch/internal/domain"
	domitem "github.com/groupmesh/incsearch/internal/domain/item"
)

// store is the consumer interface for item records (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
}

// Repo implements item persistence over the KV facade.
type Repo struct {
	store  store
	prefix string
}

// New creates an item repository.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, prefix: keyPrefix}
}

// Upsert writes the item, assigning it the next modification stamp.
// Every write bumps the stamp, so re-saved items surface as updated rows.
func (r *Repo) Upsert(ctx context.Context, it domitem.Item) (domitem.Item, error) {
	stamp, err := r.store.IncrBy(ctx, r.prefix+"modseq", 1)
	if err != nil {
		return domitem.Item{}, fmt.Errorf("next modseq: %w", err)
	}
	it = it.WithStamp(stamp)

	data, err := encode(it)
	if err != nil {
		return domitem.Item{}, err
	}
	if err := r.store.Set(ctx, r.itemKey(it.Folder(), it.ID()), data); err != nil {
		return domitem.Item{}, fmt.Errorf("set item %s/%s: %w", it.Folder(), it.ID(), err)
	}
	return it, nil
}

// Get retrieves one item; domain.ErrItemNotFound when absent.
func (r *Repo) Get(ctx context.Context, folder, id string) (domitem.Item, error) {
	data, err := r.store.Get(ctx, r.itemKey(folder, id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domitem.Item{}, domain.ErrItemNotFound
		}
		return domitem.Item{}, fmt.Errorf("get item %s/%s: %w", folder, id, err)
	}
	return decode(data)
}

// Delete removes one item; domain.ErrItemNotFound when absent.
func (r *Repo) Delete(ctx context.Context, folder, id string) error {
	key := r.itemKey(folder, id)
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check item %s/%s: %w", folder, id, err)
	}
	if !exists {
		return domain.ErrItemNotFound
	}
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del item %s/%s: %w", folder, id, err)
	}
	return nil
}

// List returns a folder's items ordered by modification stamp, which is the
// arrival order search indexes and the differ see.
func (r *Repo) List(ctx context.Context, folder string) ([]domitem.Item, error) {
	keys, err := r.store.Scan(ctx, r.itemKey(folder, "*"))
	if err != nil {
		return nil, fmt.Errorf("scan folder %s: %w", folder, err)
	}

	items := make([]domitem.Item, 0, len(keys))
	for _, key := range keys {
		data, err := r.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, db.ErrKeyNotFound) {
				continue // deleted between scan and get
			}
			return nil, fmt.Errorf("get %s: %w", key, err)
		}
		it, err := decode(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", key, err)
		}
		items = append(items, it)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Stamp() < items[j].Stamp()
	})
	return items, nil
}

// ListFolders returns the distinct folder ids holding at least one item.
func (r *Repo) ListFolders(ctx context.Context) ([]string, error) {
	keys, err := r.store.Scan(ctx, r.prefix+"item:*")
	if err != nil {
		return nil, fmt.Errorf("scan items: %w", err)
	}

	seen := make(map[string]struct{})
	for _, key := range keys {
		rest := strings.TrimPrefix(key, r.prefix+"item:")
		// Keys are item:<folder>:<id>; ids never contain ':'.
		cut := strings.LastIndex(rest, ":")
		if cut <= 0 {
			continue
		}
		seen[rest[:cut]] = struct{}{}
	}

	folders := make([]string, 0, len(seen))
	for f := range seen {
		folders = append(folders, f)
	}
	sort.Strings(folders)
	return folders, nil
}

func (r *Repo) itemKey(folder, id string) string {
	return fmt.Sprintf("%sitem:%s:%s", r.prefix, folder, id)
}
