// Package wal implements an append-only write-ahead log: entries keyed by
// <nanosecond-timestamp>:<original-key> over a kv.Store, so lexicographic
// iteration preserves insertion order, with a compaction pass driven by a
// caller-supplied before-relation.
package wal

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tradai/core/internal/kv"
)

// Entry is one WAL record in insertion order.
type Entry struct {
	TS    int64 // nanoseconds since epoch
	Key   string
	Value []byte
}

// Cmp orders two decoded values of the same logical key for compaction.
// Before reports whether a is strictly earlier than b in the caller's
// lifecycle DAG; entries whose variant is unrelated (siblings in the DAG)
// both return false, and the later-appended one wins ties.
type Cmp interface {
	Before(a, b []byte) bool
}

// CmpFunc adapts a function to Cmp.
type CmpFunc func(a, b []byte) bool

func (f CmpFunc) Before(a, b []byte) bool { return f(a, b) }

// WAL is a durable, append-only log over a kv.Store.
type WAL struct {
	store *kv.Store
	seq   int64 // disambiguates same-nanosecond appends
}

func Open(store *kv.Store) *WAL {
	return &WAL{store: store}
}

// nextTS returns a strictly increasing nanosecond timestamp, breaking ties
// within the same clock tick by a monotonic counter folded into the low
// bits, so back-to-back appends never collide in the keyspace.
func (w *WAL) nextTS() int64 {
	base := time.Now().UnixNano()
	seq := atomic.AddInt64(&w.seq, 1)
	return base + seq
}

func entryKey(ts int64, key string) []byte {
	return []byte(fmt.Sprintf("%020d:%s", ts, key))
}

func splitEntryKey(raw string) (ts int64, key string, ok bool) {
	idx := strings.IndexByte(raw, ':')
	if idx < 0 {
		return 0, "", false
	}
	var n int64
	if _, err := fmt.Sscanf(raw[:idx], "%d", &n); err != nil {
		return 0, "", false
	}
	return n, raw[idx+1:], true
}

// Append durably writes value under key with a monotonically increasing
// timestamp. It returns only after the store confirms the write.
func (w *WAL) Append(key string, value []byte) error {
	ts := w.nextTS()
	return w.store.Put(entryKey(ts, key), value, true)
}

// GetAll returns every entry across all keys, in insertion order.
func (w *WAL) GetAll() ([]Entry, error) {
	kvs, err := w.store.ScanPrefix(nil)
	if err != nil {
		return nil, err
	}
	return decodeEntries(kvs), nil
}

// GetAllK returns every entry for one key, in insertion order.
func (w *WAL) GetAllK(key string) ([]Entry, error) {
	all, err := w.GetAll()
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range all {
		if e.Key == key {
			out = append(out, e)
		}
	}
	return out, nil
}

// GetAllCompacted returns, per key, the single entry whose value has no
// strict successor under cmp, i.e. the latest known status for that key.
// Ties (neither entry strictly before the
// other, e.g. repeated identical-variant writes) are broken by keeping
// the later-appended entry.
func (w *WAL) GetAllCompacted(cmp Cmp) (map[string]Entry, error) {
	all, err := w.GetAll()
	if err != nil {
		return nil, err
	}
	latest := make(map[string]Entry, len(all))
	for _, e := range all {
		cur, ok := latest[e.Key]
		if !ok {
			latest[e.Key] = e
			continue
		}
		// all is in insertion order, so e was appended no earlier than
		// cur; keep e unless doing so would regress the DAG (cur is
		// strictly ahead of e), which ties the later-appended entry as
		// the winner for same-kind repeats instead of the DAG's
		// strict-successor check alone.
		if !cmp.Before(e.Value, cur.Value) {
			latest[e.Key] = e
		}
	}
	return latest, nil
}

func decodeEntries(kvs []kv.KV) []Entry {
	out := make([]Entry, 0, len(kvs))
	for _, raw := range kvs {
		ts, key, ok := splitEntryKey(string(raw.Key))
		if !ok {
			continue
		}
		out = append(out, Entry{TS: ts, Key: key, Value: raw.Value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TS < out[j].TS })
	return out
}
