package orderbook

import (
	"testing"

	"github.com/stretchr/testify/require"

	"econia/domain/errs"
)

func TestRecordsReuseFreedKeys(t *testing.T) {
	r := NewRecords(0)
	k1, err := r.Allocate()
	require.NoError(t, err)
	k2, err := r.Allocate()
	require.NoError(t, err)
	require.Equal(t, AccessKey(1), k1)
	require.Equal(t, AccessKey(2), k2)
	require.Equal(t, 2, r.Len())

	o, err := r.GetMut(k1)
	require.NoError(t, err)
	o.Size = 9

	require.NoError(t, r.Free(k1))
	_, ok := r.Get(k1)
	require.False(t, ok)

	k3, err := r.Allocate()
	require.NoError(t, err)
	require.Equal(t, k1, k3)
	got, ok := r.Get(k3)
	require.True(t, ok)
	require.Zero(t, got.Size, "reused slot must be reset")
}

func TestRecordsDoubleFreeIsInvariant(t *testing.T) {
	r := NewRecords(0)
	k, err := r.Allocate()
	require.NoError(t, err)
	require.NoError(t, r.Free(k))

	err = r.Free(k)
	require.ErrorIs(t, err, errs.ErrInvariant)
	_, err = r.GetMut(k)
	require.ErrorIs(t, err, errs.ErrInvariant)
	require.ErrorIs(t, r.Free(0), errs.ErrInvariant)
}
