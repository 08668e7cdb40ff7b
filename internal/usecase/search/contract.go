package search

import (
	"context"

	"github.com/groupmesh/incsearch/internal/domain/query"
	"github.com/groupmesh/incsearch/internal/domain/result"
	"github.com/groupmesh/incsearch/internal/domain/session"
)

// Provider is the folder/store collaborator hosting ephemeral search
// indexes. CreateIndex reports domain.ErrIndexUnavailable when the backing
// store cannot populate asynchronously; callers then use FilteredList, the
// synchronous degraded mode, which must be criteria-equivalent.
type Provider interface {
	CreateIndex(ctx context.Context, scope []string, recursive bool) (Index, error)
	OpenIndex(ctx context.Context, handle string) (Index, error)
	// DeleteIndex tears down the ephemeral index. Unknown handles are a no-op.
	DeleteIndex(ctx context.Context, handle string) error
	FilteredList(ctx context.Context, node query.Node, scope []string, recursive bool) ([]result.Row, error)
}

// Index is one ephemeral, asynchronously populated search index.
type Index interface {
	Handle() string
	SetCriteria(ctx context.Context, node query.Node) error
	RowCount(ctx context.Context) (int, error)
	// Populating reports whether the backend is still filling the index.
	Populating(ctx context.Context) (bool, error)
	FetchRows(ctx context.Context, offset, limit int) ([]result.Row, error)
}

// Sessions persists search sessions between polls.
type Sessions interface {
	// Load returns domain.ErrNotFound when no session exists for (user, view).
	Load(ctx context.Context, user, view string) (*session.Session, error)
	Save(ctx context.Context, s *session.Session) error
	Delete(ctx context.Context, user, view string) error
}

// backendCoder exposes a provider's native error code for diagnostics.
type backendCoder interface {
	BackendCode() string
}
