package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/groupmesh/incsearch/internal/db"
	"github.com/groupmesh/incsearch/internal/domain"
	domses "github.com/groupmesh/incsearch/internal/domain/session"
)

type memStore struct {
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memStore) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *memStore) Del(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func TestRepo_RoundTrip(t *testing.T) {
	repo := New(newMemStore(), "incsearch:", time.Hour)
	ctx := context.Background()

	s := domses.New("alice", "contacts-main")
	s.SetIndexHandle("idx-1")
	s.SetFingerprint(0xdeadbeef)
	s.SetTransmitted(map[string]int64{"item-1": 3, "item-2": 7})
	s.Activate()

	if err := repo.Save(ctx, s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := repo.Load(ctx, "alice", "contacts-main")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.IndexHandle() != "idx-1" {
		t.Errorf("index handle = %q", got.IndexHandle())
	}
	if got.Fingerprint() != 0xdeadbeef {
		t.Errorf("fingerprint = %#x", got.Fingerprint())
	}
	if !got.Active() {
		t.Error("active flag lost")
	}
	if got.Transmitted()["item-2"] != 7 {
		t.Errorf("transmitted set lost: %v", got.Transmitted())
	}
}

func TestRepo_LoadMissing(t *testing.T) {
	repo := New(newMemStore(), "incsearch:", time.Hour)
	_, err := repo.Load(context.Background(), "alice", "nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestRepo_Delete(t *testing.T) {
	repo := New(newMemStore(), "incsearch:", time.Hour)
	ctx := context.Background()

	s := domses.New("alice", "v")
	if err := repo.Save(ctx, s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := repo.Delete(ctx, "alice", "v"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Load(ctx, "alice", "v"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound after delete, got %v", err)
	}

	// Deleting again stays quiet.
	if err := repo.Delete(ctx, "alice", "v"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}

func TestRepo_KeysScopedPerUserAndView(t *testing.T) {
	repo := New(newMemStore(), "incsearch:", time.Hour)
	ctx := context.Background()

	a := domses.New("alice", "v")
	a.SetIndexHandle("idx-alice")
	b := domses.New("bob", "v")
	b.SetIndexHandle("idx-bob")

	if err := repo.Save(ctx, a); err != nil {
		t.Fatalf("Save a: %v", err)
	}
	if err := repo.Save(ctx, b); err != nil {
		t.Fatalf("Save b: %v", err)
	}

	got, err := repo.Load(ctx, "alice", "v")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.IndexHandle() != "idx-alice" {
		t.Errorf("sessions collided across users: %q", got.IndexHandle())
	}
}
