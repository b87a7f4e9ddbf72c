package kv

import (
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/require"
)

func memStore(t *testing.T, name string) *Store {
	t.Helper()
	db, err := pebble.Open(name, &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return FromDB(name, db)
}

func TestStorePutGetDelete(t *testing.T) {
	s := memStore(t, "t1")

	_, ok, err := s.Get([]byte("k1"))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Put([]byte("k1"), []byte("v1"), true))
	val, ok, err := s.Get([]byte("k1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v1", string(val))

	require.NoError(t, s.Delete([]byte("k1"), true))
	_, ok, err = s.Get([]byte("k1"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStoreScanPrefix(t *testing.T) {
	s := memStore(t, "t2")
	require.NoError(t, s.Put([]byte("order:a:1"), []byte("1"), true))
	require.NoError(t, s.Put([]byte("order:a:2"), []byte("2"), true))
	require.NoError(t, s.Put([]byte("order:b:1"), []byte("3"), true))

	kvs, err := s.ScanPrefix([]byte("order:a:"))
	require.NoError(t, err)
	require.Len(t, kvs, 2)
	require.Equal(t, "1", string(kvs[0].Value))
	require.Equal(t, "2", string(kvs[1].Value))
}

func TestStoreBatch(t *testing.T) {
	s := memStore(t, "t3")
	b := s.NewBatch()
	b.Put([]byte("a"), []byte("1"))
	b.Put([]byte("b"), []byte("2"))
	require.NoError(t, b.Commit(true))

	_, ok, _ := s.Get([]byte("a"))
	require.True(t, ok)
	_, ok, _ = s.Get([]byte("b"))
	require.True(t, ok)
}

func TestUpperBound(t *testing.T) {
	require.Equal(t, []byte("order:a;"), UpperBound([]byte("order:a:")))
}

func TestEncodeDecodeRoundtrip(t *testing.T) {
	type payload struct {
		A string
		B int
	}
	in := payload{A: "x", B: 7}
	b, err := Encode(in)
	require.NoError(t, err)
	var out payload
	require.NoError(t, Decode(b, &out))
	require.Equal(t, in, out)
}
