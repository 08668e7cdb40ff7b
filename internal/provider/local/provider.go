// Package local hosts ephemeral search indexes over the item store. It is
// the in-process stand-in for a groupware folder store: indexes populate
// asynchronously on a goroutine, and the synchronous FilteredList path
// evaluates the very same restriction tree, so both modes return the same
// matches for the same criteria.
package local

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/groupmesh/incsearch/internal/domain"
	domitem "github.com/groupmesh/incsearch/internal/domain/item"
	"github.com/groupmesh/incsearch/internal/domain/query"
	"github.com/groupmesh/incsearch/internal/domain/result"
	"github.com/groupmesh/incsearch/internal/usecase/search"
)

// ItemSource lists stored items for index population (ISP).
type ItemSource interface {
	List(ctx context.Context, folder string) ([]domitem.Item, error)
	ListFolders(ctx context.Context) ([]string, error)
}

// Config controls the store's search capabilities.
type Config struct {
	// AsyncIndex advertises asynchronous index support. When false,
	// CreateIndex reports domain.ErrIndexUnavailable and callers degrade
	// to FilteredList.
	AsyncIndex bool
	// PopulateDelay artificially delays index population, mimicking a
	// remote store that takes time to fill its index.
	PopulateDelay time.Duration
}

// Provider owns the live indexes. Indexes are process-local: handles do
// not survive a restart, which callers detect via ErrNotFound on open.
type Provider struct {
	items ItemSource
	cfg   Config
	log   *zap.Logger

	mu      sync.Mutex
	indexes map[string]*Index
}

// New creates a local search provider.
func New(items ItemSource, cfg Config, log *zap.Logger) *Provider {
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{
		items:   items,
		cfg:     cfg,
		log:     log,
		indexes: make(map[string]*Index),
	}
}

// CreateIndex allocates an empty index over the folder scope. The index
// holds no rows until criteria are applied.
func (p *Provider) CreateIndex(_ context.Context, scope []string, recursive bool) (search.Index, error) {
	if !p.cfg.AsyncIndex {
		return nil, domain.ErrIndexUnavailable
	}

	idx := &Index{
		handle:    uuid.NewString(),
		items:     p.items,
		scope:     append([]string(nil), scope...),
		recursive: recursive,
		delay:     p.cfg.PopulateDelay,
		log:       p.log,
	}

	p.mu.Lock()
	p.indexes[idx.handle] = idx
	p.mu.Unlock()

	p.log.Debug("search index created",
		zap.String("handle", idx.handle), zap.Strings("scope", scope))
	return idx, nil
}

// OpenIndex returns a live index; domain.ErrNotFound for unknown handles.
func (p *Provider) OpenIndex(_ context.Context, handle string) (search.Index, error) {
	p.mu.Lock()
	idx, ok := p.indexes[handle]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("index %s: %w", handle, domain.ErrNotFound)
	}
	return idx, nil
}

// DeleteIndex stops population and drops the index. Unknown handles are a
// no-op so teardown can race with expiry.
func (p *Provider) DeleteIndex(_ context.Context, handle string) error {
	p.mu.Lock()
	idx, ok := p.indexes[handle]
	delete(p.indexes, handle)
	p.mu.Unlock()

	if ok {
		idx.stopPopulation()
		p.log.Debug("search index deleted", zap.String("handle", handle))
	}
	return nil
}

// FilteredList is the synchronous degraded path: evaluate the restriction
// over the scope without an index.
func (p *Provider) FilteredList(
	ctx context.Context, node query.Node, scope []string, recursive bool,
) ([]result.Row, error) {
	folders, err := resolveScope(ctx, p.items, scope, recursive)
	if err != nil {
		return nil, err
	}

	var rows []result.Row
	for _, folder := range folders {
		items, err := p.items.List(ctx, folder)
		if err != nil {
			return nil, fmt.Errorf("list folder %s: %w", folder, err)
		}
		for _, it := range items {
			if query.Eval(node, it.Prop) {
				rows = append(rows, result.New(it.ID(), it.Stamp(), it.Props()))
			}
		}
	}
	return rows, nil
}

// resolveScope expands the requested folder scope to concrete folders,
// honoring recursion via path containment.
func resolveScope(ctx context.Context, items ItemSource, scope []string, recursive bool) ([]string, error) {
	all, err := items.ListFolders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}

	var folders []string
	for _, folder := range all {
		for _, s := range scope {
			if domitem.FolderWithin(folder, s, recursive) {
				folders = append(folders, folder)
				break
			}
		}
	}
	return folders, nil
}
