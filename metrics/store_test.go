package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	drive "github.com/vtnerd/MaidSafe-Drive"
	"github.com/vtnerd/MaidSafe-Drive/store"
)

func newCtx() *drive.Ctx {
	return drive.NewCtx(context.Background(), zap.NewNop())
}

func TestInstrumentedStoreRecordsEveryCall(t *testing.T) {
	registry := NewRegistry()
	wrapped := Wrap(store.NewMemStore(), registry)

	c := newCtx()
	var hash drive.ContentHash
	hash[0] = 1

	require.NoError(t, wrapped.Put(c, hash, []byte("data")))
	data, err := wrapped.Get(c, hash)
	require.NoError(t, err)
	require.Equal(t, []byte("data"), data)
	require.NoError(t, wrapped.Delete(c, hash))

	for _, name := range []string{"Put", "Get", "Delete"} {
		snap := registry.For(name).Snapshot()
		require.Equal(t, int64(1), snap.TotalOps)
	}
}

func TestInstrumentedStorePassesThroughErrors(t *testing.T) {
	registry := NewRegistry()
	wrapped := Wrap(store.NewMemStore(), registry)

	var missing drive.ContentHash
	missing[0] = 0xff

	_, err := wrapped.Get(newCtx(), missing)
	require.Error(t, err)
	kind, ok := drive.KindOf(err)
	require.True(t, ok)
	require.Equal(t, drive.ErrNoSuchFile, kind)
}
