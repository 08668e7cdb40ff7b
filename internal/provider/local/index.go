package local

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/groupmesh/incsearch/internal/domain/query"
	"github.com/groupmesh/incsearch/internal/domain/result"
)

// Index is one ephemeral search index. Applying criteria restarts
// population from scratch on a fresh goroutine; a generation counter keeps
// superseded populations from writing into the new row set.
type Index struct {
	handle    string
	items     ItemSource
	scope     []string
	recursive bool
	delay     time.Duration
	log       *zap.Logger

	mu         sync.Mutex
	gen        int
	node       query.Node
	rows       []result.Row
	populating bool
	popErr     error
	cancel     context.CancelFunc
}

// Handle returns the index handle.
func (i *Index) Handle() string { return i.handle }

// SetCriteria replaces the index criteria and restarts population. Rows
// from the previous criteria are discarded immediately.
func (i *Index) SetCriteria(_ context.Context, node query.Node) error {
	i.mu.Lock()
	if i.cancel != nil {
		i.cancel()
	}
	i.gen++
	gen := i.gen
	i.node = node
	i.rows = nil
	i.popErr = nil
	i.populating = true

	// Population outlives the applying request on purpose.
	popCtx, cancel := context.WithCancel(context.Background())
	i.cancel = cancel
	i.mu.Unlock()

	go i.populate(popCtx, gen, node)
	return nil
}

// RowCount returns the number of rows indexed so far, or the error that
// aborted population. Once the initial population is done the row set is
// refreshed against the store, so items written after the search surface
// on the next poll.
func (i *Index) RowCount(ctx context.Context) (int, error) {
	if err := i.refresh(ctx); err != nil {
		return 0, err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.popErr != nil {
		return 0, i.popErr
	}
	return len(i.rows), nil
}

// refresh re-evaluates the criteria when the index is settled. Population
// in flight owns the row set; refresh backs off.
func (i *Index) refresh(ctx context.Context) error {
	i.mu.Lock()
	gen, node := i.gen, i.node
	settled := !i.populating && i.popErr == nil && node != nil
	i.mu.Unlock()
	if !settled {
		return nil
	}

	folders, err := resolveScope(ctx, i.items, i.scope, i.recursive)
	if err != nil {
		return err
	}
	var rows []result.Row
	for _, folder := range folders {
		items, err := i.items.List(ctx, folder)
		if err != nil {
			return err
		}
		for _, it := range items {
			if query.Eval(node, it.Prop) {
				rows = append(rows, result.New(it.ID(), it.Stamp(), it.Props()))
			}
		}
	}

	i.mu.Lock()
	if i.gen == gen && !i.populating {
		i.rows = rows
	}
	i.mu.Unlock()
	return nil
}

// Populating reports whether the index is still filling.
func (i *Index) Populating(_ context.Context) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.popErr != nil {
		return false, i.popErr
	}
	return i.populating, nil
}

// FetchRows returns rows in index order, clamped to the available range.
func (i *Index) FetchRows(_ context.Context, offset, limit int) ([]result.Row, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.popErr != nil {
		return nil, i.popErr
	}
	if offset >= len(i.rows) || limit <= 0 {
		return nil, nil
	}
	end := offset + limit
	if end > len(i.rows) {
		end = len(i.rows)
	}
	out := make([]result.Row, end-offset)
	copy(out, i.rows[offset:end])
	return out, nil
}

func (i *Index) stopPopulation() {
	i.mu.Lock()
	if i.cancel != nil {
		i.cancel()
	}
	i.mu.Unlock()
}

func (i *Index) populate(ctx context.Context, gen int, node query.Node) {
	if i.delay > 0 {
		timer := time.NewTimer(i.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	folders, err := resolveScope(ctx, i.items, i.scope, i.recursive)
	if err != nil {
		i.finish(gen, err)
		return
	}

	for _, folder := range folders {
		items, err := i.items.List(ctx, folder)
		if err != nil {
			i.finish(gen, err)
			return
		}
		for _, it := range items {
			if ctx.Err() != nil {
				return
			}
			if !query.Eval(node, it.Prop) {
				continue
			}
			row := result.New(it.ID(), it.Stamp(), it.Props())
			if !i.appendRow(gen, row) {
				return // superseded by a newer SetCriteria
			}
		}
	}
	i.finish(gen, nil)
}

// appendRow adds a row if this population is still current.
func (i *Index) appendRow(gen int, row result.Row) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.gen != gen {
		return false
	}
	i.rows = append(i.rows, row)
	return true
}

func (i *Index) finish(gen int, err error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.gen != gen {
		return
	}
	i.populating = false
	i.popErr = err
	if err != nil {
		i.log.Warn("index population failed",
			zap.String("handle", i.handle), zap.Error(err))
	}
}
