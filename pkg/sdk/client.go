package incsearch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/groupmesh/incsearch/internal/db"
	boltdb "github.com/groupmesh/incsearch/internal/db/bolt"
	redisdb "github.com/groupmesh/incsearch/internal/db/redis"
	"github.com/groupmesh/incsearch/internal/domain/criteria"
	"github.com/groupmesh/incsearch/internal/domain/result"
	"github.com/groupmesh/incsearch/internal/domain/schema"
	"github.com/groupmesh/incsearch/internal/provider/local"
	itemrepo "github.com/groupmesh/incsearch/internal/repository/item"
	sessionrepo "github.com/groupmesh/incsearch/internal/repository/session"
	itemuc "github.com/groupmesh/incsearch/internal/usecase/item"
	searchuc "github.com/groupmesh/incsearch/internal/usecase/search"
)

// State of a search reported in results.
type State string

const (
	// StateRunning means the index is still populating; poll for more.
	StateRunning = State(searchuc.StateRunning)
	// StateComplete means every matching row has been delivered or paged.
	StateComplete = State(searchuc.StateComplete)
	// StateFallback means the search answered synchronously, with no
	// session to poll.
	StateFallback = State(searchuc.StateFallback)
)

// Item is one stored groupware item.
type Item struct {
	ID     string
	Folder string
	Stamp  int64
	Props  map[string]string
}

// Row is one search result row.
type Row struct {
	ID    string
	Stamp int64
	Props map[string]string
}

// FieldMatch is a structured (field, value) search term.
type FieldMatch struct {
	Field string
	Value string
}

// SearchRequest describes a search to start.
type SearchRequest struct {
	// User and View identify the session; one search runs per pair.
	User string
	View string
	// Schema names the view schema: "contacts" or "mail".
	Schema string

	// FreeText, Fields and Bucket are alternative restrictions, honored
	// in that order of precedence.
	FreeText string
	Fields   []FieldMatch
	MatchAll bool
	Bucket   string

	// Start and End bound the schema's date field, half-open [Start, End).
	Start time.Time
	End   time.Time

	Folders   []string
	Recursive bool
	PageSize  int
}

// SearchResult is one batch of incrementally delivered results.
type SearchResult struct {
	// Handle identifies the server-side search folder ("" in fallback).
	Handle string
	State  State
	// Active is false when polling a view with no running search.
	Active bool
	// Total counts all matches known so far; Rows carries only the ones
	// not yet transmitted.
	Total int
	Rows  []Row
}

// Client is an embedded incremental search engine.
type Client struct {
	store  db.Store
	items  *itemuc.Service
	search *searchuc.Service
}

// New creates a client. A store option (WithRedis or WithBolt) is required.
func New(opts ...Option) (*Client, error) {
	cfg := clientConfig{
		keyPrefix:       "incsearch:",
		sessionTTL:      time.Hour,
		pollInterval:    100 * time.Millisecond,
		waitBudget:      time.Second,
		defaultPageSize: 50,
		maxPageSize:     500,
		asyncIndex:      true,
		logger:          zap.NewNop(),
	}
	for _, o := range opts {
		o.apply(&cfg)
	}

	var store db.Store
	var err error
	switch cfg.driver {
	case "redis":
		store, err = redisdb.NewStore(redisdb.Config{Addrs: cfg.addrs, Password: cfg.password})
	case "bolt":
		store, err = boltdb.NewStore(boltdb.Config{Path: cfg.path})
	case "":
		return nil, fmt.Errorf("no store configured: use WithRedis or WithBolt")
	default:
		return nil, fmt.Errorf("unknown driver %q", cfg.driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	items := itemrepo.New(store, cfg.keyPrefix)
	sessions := sessionrepo.New(store, cfg.keyPrefix, cfg.sessionTTL)
	provider := local.New(items, local.Config{
		AsyncIndex:    cfg.asyncIndex,
		PopulateDelay: cfg.populateDelay,
	}, cfg.logger)

	return &Client{
		store: store,
		items: itemuc.NewService(items),
		search: searchuc.NewService(provider, sessions, searchuc.Config{
			PollInterval:    cfg.pollInterval,
			WaitBudget:      cfg.waitBudget,
			DefaultPageSize: cfg.defaultPageSize,
			MaxPageSize:     cfg.maxPageSize,
		}),
	}, nil
}

// Close releases the underlying store.
func (c *Client) Close() {
	c.store.Close()
}

// Ping checks store connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

// PutItem stores an item, assigning it a fresh modification stamp.
func (c *Client) PutItem(ctx context.Context, folder, id string, props map[string]string) (Item, error) {
	it, err := c.items.Put(ctx, folder, id, props)
	if err != nil {
		return Item{}, err
	}
	return Item{ID: it.ID(), Folder: it.Folder(), Stamp: it.Stamp(), Props: it.Props()}, nil
}

// GetItem returns one item; ErrItemNotFound when absent.
func (c *Client) GetItem(ctx context.Context, folder, id string) (Item, error) {
	it, err := c.items.Get(ctx, folder, id)
	if err != nil {
		return Item{}, err
	}
	return Item{ID: it.ID(), Folder: it.Folder(), Stamp: it.Stamp(), Props: it.Props()}, nil
}

// DeleteItem removes one item; ErrItemNotFound when absent.
func (c *Client) DeleteItem(ctx context.Context, folder, id string) error {
	return c.items.Delete(ctx, folder, id)
}

// ListItems returns a folder's items in modification order. Folders exist
// through their items, so ErrFolderNotFound covers both an unknown folder
// and one emptied by deletes.
func (c *Client) ListItems(ctx context.Context, folder string) ([]Item, error) {
	items, err := c.items.List(ctx, folder)
	if err != nil {
		return nil, err
	}
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = Item{ID: it.ID(), Folder: it.Folder(), Stamp: it.Stamp(), Props: it.Props()}
	}
	return out, nil
}

// Search starts (or restarts) a search and returns the first result batch.
func (c *Client) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	sch, ok := schema.ByName(req.Schema)
	if !ok {
		return SearchResult{}, fmt.Errorf("%w: %s", ErrUnknownSchema, req.Schema)
	}
	crit, err := criteriaFromRequest(req)
	if err != nil {
		return SearchResult{}, err
	}

	out, err := c.search.Search(ctx, req.User, req.View, crit, sch, req.PageSize)
	if err != nil {
		return SearchResult{}, err
	}
	return SearchResult{
		Handle: out.Handle,
		State:  State(out.State),
		Active: out.State != searchuc.StateFallback,
		Total:  out.Total,
		Rows:   rowsFromDomain(out.Rows),
	}, nil
}

// UpdateSearch returns rows added or changed since the last batch. Polling
// a view with no running search yields Active == false, not an error.
func (c *Client) UpdateSearch(ctx context.Context, user, view string, pageSize int) (SearchResult, error) {
	out, err := c.search.Update(ctx, user, view, pageSize)
	if err != nil {
		return SearchResult{}, err
	}
	return SearchResult{
		State:  State(out.State),
		Active: out.Active,
		Total:  out.Total,
		Rows:   rowsFromDomain(out.Rows),
	}, nil
}

// StopSearch tears down the view's search session. Idempotent.
func (c *Client) StopSearch(ctx context.Context, user, view string) error {
	return c.search.Stop(ctx, user, view)
}

func criteriaFromRequest(req SearchRequest) (criteria.Criteria, error) {
	pairs := make([]criteria.Pair, 0, len(req.Fields))
	for _, f := range req.Fields {
		p, err := criteria.NewPair(f.Field, f.Value)
		if err != nil {
			return criteria.Criteria{}, err
		}
		pairs = append(pairs, p)
	}

	mode := criteria.MatchAny
	if req.MatchAll {
		mode = criteria.MatchAll
	}

	var dr criteria.DateRange
	if !req.Start.IsZero() || !req.End.IsZero() {
		var err error
		if dr, err = criteria.NewDateRange(req.Start, req.End); err != nil {
			return criteria.Criteria{}, err
		}
	}

	return criteria.New(req.FreeText, pairs, mode, req.Bucket, dr, req.Folders, req.Recursive)
}

func rowsFromDomain(rows []result.Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = Row{ID: r.ID(), Stamp: r.Stamp(), Props: r.Props()}
	}
	return out
}
