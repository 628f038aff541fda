package content

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vtnerd/MaidSafe-Drive/store"
)

func TestNewAllocatesEmptyBlobAndOpenRoundTrips(t *testing.T) {
	backing := store.NewMemStore()
	c := New(backing)

	ref, err := c.New(4)
	require.NoError(t, err)
	require.Len(t, ref, 64)

	fh, err := c.Open(ref)
	require.NoError(t, err)
	handle := fh.(*fileHandle)
	require.Equal(t, make([]byte, 4), handle.data)
}

func TestWriteThenFlushPersistsUnderNewHash(t *testing.T) {
	backing := store.NewMemStore()
	c := New(backing)

	ref, err := c.New(0)
	require.NoError(t, err)

	fh, err := c.Open(ref)
	require.NoError(t, err)
	handle := fh.(*fileHandle)

	n, errno := handle.Write(context.Background(), []byte("hello"), 0)
	require.Equal(t, uint32(5), n)
	require.Equal(t, uint32(0), uint32(errno))
	require.True(t, handle.dirty)

	require.Equal(t, uint32(0), uint32(handle.Flush(context.Background())))
	require.False(t, handle.dirty)

	stored, err := backing.Get(nil, identityHash([]byte("hello")))
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), stored)

	_, result := handle.Read(context.Background(), make([]byte, 5), 0)
	require.Equal(t, uint32(0), uint32(result))
}

func TestWriteBeyondCurrentLengthGrowsBuffer(t *testing.T) {
	backing := store.NewMemStore()
	c := New(backing)

	ref, err := c.New(2)
	require.NoError(t, err)

	fh, err := c.Open(ref)
	require.NoError(t, err)
	handle := fh.(*fileHandle)

	_, errno := handle.Write(context.Background(), []byte("xyz"), 4)
	require.Equal(t, uint32(0), uint32(errno))
	require.Len(t, handle.data, 7)
}

func TestOpenMissingRefFails(t *testing.T) {
	backing := store.NewMemStore()
	c := New(backing)

	_, err := c.Open(make([]byte, 64))
	require.Error(t, err)
}
