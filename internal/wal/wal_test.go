package wal

import (
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/require"

	"github.com/tradai/core/internal/kv"
)

func memWAL(t *testing.T) *WAL {
	t.Helper()
	db, err := pebble.Open("wal-test", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return Open(kv.FromDB("wal-test", db))
}

// rank mirrors a toy lifecycle DAG: stage(0) < created(1) < filled(2), with
// rejected(3) reachable from anything but nothing reachable from rejected.
var rank = map[string]int{"stage": 0, "created": 1, "filled": 2, "rejected": 3}

var statusCmp = CmpFunc(func(a, b []byte) bool {
	ra, rb := rank[string(a)], rank[string(b)]
	if string(a) == "rejected" {
		return false
	}
	return ra < rb
})

func TestAppendPreservesInsertionOrder(t *testing.T) {
	w := memWAL(t)
	require.NoError(t, w.Append("o1", []byte("stage")))
	require.NoError(t, w.Append("o1", []byte("created")))
	require.NoError(t, w.Append("o2", []byte("stage")))

	all, err := w.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "o1", all[0].Key)
	require.Equal(t, "stage", string(all[0].Value))
	require.Equal(t, "o1", all[1].Key)
	require.Equal(t, "created", string(all[1].Value))
}

func TestGetAllK(t *testing.T) {
	w := memWAL(t)
	require.NoError(t, w.Append("o1", []byte("stage")))
	require.NoError(t, w.Append("o2", []byte("stage")))
	require.NoError(t, w.Append("o1", []byte("created")))

	entries, err := w.GetAllK("o1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestCompactionKeepsLatestPerKey(t *testing.T) {
	w := memWAL(t)
	require.NoError(t, w.Append("o1", []byte("stage")))
	require.NoError(t, w.Append("o1", []byte("created")))
	require.NoError(t, w.Append("o1", []byte("filled")))
	require.NoError(t, w.Append("o2", []byte("stage")))
	require.NoError(t, w.Append("o2", []byte("rejected")))

	compacted, err := w.GetAllCompacted(statusCmp)
	require.NoError(t, err)
	require.Equal(t, "filled", string(compacted["o1"].Value))
	require.Equal(t, "rejected", string(compacted["o2"].Value))
}

// kindOnlyCmp treats values as "<kind>-<suffix>" and compares only the
// kind prefix, so two entries of the same kind (e.g. two successive
// partial-fill writes) are ties under Before in both directions.
var kindOnlyCmp = CmpFunc(func(a, b []byte) bool {
	kindOf := func(v []byte) string {
		s := string(v)
		for i := 0; i < len(s); i++ {
			if s[i] == '-' {
				return s[:i]
			}
		}
		return s
	}
	ra, rb := rank[kindOf(a)], rank[kindOf(b)]
	if kindOf(a) == "rejected" {
		return false
	}
	return ra < rb
})

func TestCompactionSameKindTieKeepsLaterAppended(t *testing.T) {
	w := memWAL(t)
	require.NoError(t, w.Append("o1", []byte("stage-a")))
	require.NoError(t, w.Append("o1", []byte("created-a")))
	require.NoError(t, w.Append("o1", []byte("created-b")))

	compacted, err := w.GetAllCompacted(kindOnlyCmp)
	require.NoError(t, err)
	require.Equal(t, "created-b", string(compacted["o1"].Value))
}

func TestCompactionRejectedIsTerminal(t *testing.T) {
	w := memWAL(t)
	require.NoError(t, w.Append("o1", []byte("rejected")))
	require.NoError(t, w.Append("o1", []byte("created")))

	compacted, err := w.GetAllCompacted(statusCmp)
	require.NoError(t, err)
	require.Equal(t, "rejected", string(compacted["o1"].Value))
}
