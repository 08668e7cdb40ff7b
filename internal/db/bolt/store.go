// Package bolt implements the db.Store facade on an embedded bbolt file,
// for single-node deployments without a Redis.
package bolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/groupmesh/incsearch/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

var bucketName = []byte("kv")

// Config holds parameters for a bolt store.
type Config struct {
	Path string
}

// Store implements db.Store on a bbolt file. Values are framed with an
// 8-byte expiry (unix nanoseconds, 0 = no expiry); expired entries are
// filtered on read and removed lazily.
type Store struct {
	db *bbolt.DB
}

// NewStore opens (creating if needed) the bolt file.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	bdb, err := bbolt.Open(cfg.Path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt file: %w", err)
	}
	err = bdb.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &Store{db: bdb}, nil
}

// Ping verifies the file handle is usable.
func (s *Store) Ping(_ context.Context) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketName) == nil {
			return fmt.Errorf("bucket missing")
		}
		return nil
	})
}

// Close closes the bolt file.
func (s *Store) Close() {
	_ = s.db.Close()
}

// WaitForReady is immediate for an embedded store.
func (s *Store) WaitForReady(ctx context.Context, _ time.Duration) error {
	return s.Ping(ctx)
}

// Get retrieves a value by key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketName).Get([]byte(key))
		if raw == nil {
			return db.ErrKeyNotFound
		}
		val, expired := unframe(raw)
		if expired {
			return db.ErrKeyNotFound
		}
		out = bytes.Clone(val)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Set stores a value at the given key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	return s.put(key, value, 0)
}

// SetWithTTL stores a value with an expiration.
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	return s.put(key, value, time.Now().Add(ttl).UnixNano())
}

func (s *Store) put(key string, value []byte, expiry int64) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), frame(value, expiry))
	})
	if err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// Del removes a key. Deleting a missing key is not an error.
func (s *Store) Del(_ context.Context, key string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(key))
	})
	if err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}

// Exists reports whether a key is present and unexpired.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Get(ctx, key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, &db.Error{Op: db.OpExists, Err: err}
	}
	return true, nil
}

// Scan returns keys matching pattern (a literal prefix with trailing '*').
func (s *Store) Scan(_ context.Context, pattern string) ([]string, error) {
	prefix := []byte(strings.TrimSuffix(pattern, "*"))
	var keys []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if _, expired := unframe(v); expired {
				continue
			}
			keys = append(keys, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, &db.Error{Op: db.OpScan, Err: err}
	}
	return keys, nil
}

// IncrBy atomically increments a counter key and returns the new value.
func (s *Store) IncrBy(_ context.Context, key string, val int64) (int64, error) {
	var out int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		var cur int64
		if raw := b.Get([]byte(key)); raw != nil {
			v, expired := unframe(raw)
			if !expired && len(v) == 8 {
				cur = int64(binary.BigEndian.Uint64(v))
			}
		}
		out = cur + val
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(out))
		return b.Put([]byte(key), frame(buf, 0))
	})
	if err != nil {
		return 0, &db.Error{Op: db.OpIncrBy, Err: err}
	}
	return out, nil
}

func frame(value []byte, expiry int64) []byte {
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf, uint64(expiry))
	copy(buf[8:], value)
	return buf
}

func unframe(raw []byte) (value []byte, expired bool) {
	if len(raw) < 8 {
		return nil, true
	}
	expiry := int64(binary.BigEndian.Uint64(raw))
	if expiry != 0 && time.Now().UnixNano() > expiry {
		return nil, true
	}
	return raw[8:], false
}
