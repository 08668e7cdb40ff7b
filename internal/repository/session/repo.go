// Package session persists search sessions keyed by (user, view).
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/groupmesh/incsearch/internal/db"
	"github.com/groupmesh/incsearch/internal/domain"
	domses "github.com/groupmesh/incsearch/internal/domain/session"
)

// store is the consumer interface for session records (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Repo implements the search usecase's session persistence contract.
// Records carry a TTL so abandoned sessions age out without a stop request.
type Repo struct {
	store  store
	prefix string
	ttl    time.Duration
}

// New creates a session repository.
func New(s store, keyPrefix string, ttl time.Duration) *Repo {
	return &Repo{store: s, prefix: keyPrefix, ttl: ttl}
}

// Load retrieves the session for (user, view); domain.ErrNotFound when absent.
func (r *Repo) Load(ctx context.Context, user, view string) (*domses.Session, error) {
	data, err := r.store.Get(ctx, r.key(user, view))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get session %s/%s: %w", user, view, err)
	}
	return decode(user, view, data)
}

// Save writes the session, refreshing its TTL.
func (r *Repo) Save(ctx context.Context, s *domses.Session) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	if err := r.store.SetWithTTL(ctx, r.key(s.User(), s.View()), data, r.ttl); err != nil {
		return fmt.Errorf("set session %s/%s: %w", s.User(), s.View(), err)
	}
	return nil
}

// Delete removes the session record. Missing records are not an error.
func (r *Repo) Delete(ctx context.Context, user, view string) error {
	if err := r.store.Del(ctx, r.key(user, view)); err != nil {
		return fmt.Errorf("del session %s/%s: %w", user, view, err)
	}
	return nil
}

func (r *Repo) key(user, view string) string {
	return fmt.Sprintf("%ssession:%s|%s", r.prefix, user, view)
}
