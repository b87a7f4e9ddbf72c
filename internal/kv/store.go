// Package kv wraps github.com/cockroachdb/pebble behind the narrow
// byte-range interface the WAL, Order Repository and Portfolio Repository
// need: Put/Get/Delete plus a prefix scan. Each caller owns a Store and
// namespaces its own keys; there is no shared column-family layer.
package kv

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"

	"github.com/tradai/core/internal/metrics"
)

// Store is a single pebble-backed key/value namespace.
type Store struct {
	name string
	db   *pebble.DB
}

// Open creates or opens a pebble store rooted at path.
func Open(name, path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "kv: open %s at %s", name, path)
	}
	return &Store{name: name, db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// FromDB wraps an already-open pebble handle, e.g. one opened against an
// in-memory vfs for tests.
func FromDB(name string, db *pebble.DB) *Store {
	return &Store{name: name, db: db}
}

// Put writes key/value durably. WAL callers always sync; derived-state
// stores (order/portfolio repositories) may tolerate NoSync since they can
// be rebuilt from the WAL.
func (s *Store) Put(key, value []byte, sync bool) error {
	opts := pebble.NoSync
	if sync {
		opts = pebble.Sync
	}
	if err := s.db.Set(key, value, opts); err != nil {
		return errors.Wrapf(err, "kv[%s]: put", s.name)
	}
	metrics.WALAppends.WithLabelValues(s.name).Inc()
	return nil
}

// Get returns (value, true, nil) when key exists, (nil, false, nil) when
// it doesn't, and a non-nil error only on a genuine storage failure.
func (s *Store) Get(key []byte) ([]byte, bool, error) {
	val, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "kv[%s]: get", s.name)
	}
	out := append([]byte(nil), val...)
	_ = closer.Close()
	return out, true, nil
}

func (s *Store) Delete(key []byte, sync bool) error {
	opts := pebble.NoSync
	if sync {
		opts = pebble.Sync
	}
	if err := s.db.Delete(key, opts); err != nil {
		return errors.Wrapf(err, "kv[%s]: delete", s.name)
	}
	return nil
}

// KV is a single returned pair from a range scan.
type KV struct {
	Key   []byte
	Value []byte
}

// ScanPrefix returns every (key, value) pair whose key starts with prefix,
// in ascending key order.
func (s *Store) ScanPrefix(prefix []byte) ([]KV, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: UpperBound(prefix),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "kv[%s]: scan", s.name)
	}
	defer iter.Close()

	var out []KV
	for iter.First(); iter.Valid(); iter.Next() {
		out = append(out, KV{
			Key:   append([]byte(nil), iter.Key()...),
			Value: append([]byte(nil), iter.Value()...),
		})
	}
	return out, nil
}

// ScanRange returns every (key, value) pair in [from, to], inclusive.
func (s *Store) ScanRange(from, to []byte) ([]KV, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: from,
		UpperBound: append(append([]byte(nil), to...), 0x00),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "kv[%s]: scan range", s.name)
	}
	defer iter.Close()

	var out []KV
	for iter.First(); iter.Valid(); iter.Next() {
		out = append(out, KV{
			Key:   append([]byte(nil), iter.Key()...),
			Value: append([]byte(nil), iter.Value()...),
		})
	}
	return out, nil
}

// Batch buffers writes applied atomically on Commit.
type Batch struct {
	store *pebble.Batch
	name  string
}

func (s *Store) NewBatch() *Batch {
	return &Batch{store: s.db.NewBatch(), name: s.name}
}

func (b *Batch) Put(key, value []byte) { b.store.Set(key, value, nil) }
func (b *Batch) Delete(key []byte)     { b.store.Delete(key, nil) }

func (b *Batch) Commit(sync bool) error {
	opts := pebble.NoSync
	if sync {
		opts = pebble.Sync
	}
	if err := b.store.Commit(opts); err != nil {
		return errors.Wrapf(err, "kv[%s]: batch commit", b.name)
	}
	return nil
}

// UpperBound returns the exclusive upper bound for a prefix scan: the
// prefix with its last non-0xff byte incremented.
func UpperBound(prefix []byte) []byte {
	bound := append([]byte(nil), prefix...)
	for i := len(bound) - 1; i >= 0; i-- {
		if bound[i] == 0xff {
			continue
		}
		bound[i]++
		return bound[:i+1]
	}
	return nil // prefix is all 0xff: unbounded above
}
