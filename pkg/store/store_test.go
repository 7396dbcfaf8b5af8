package store_test

import (
	"testing"

	"github.com/luxfi/pdcop/pkg/field"
	"github.com/luxfi/pdcop/pkg/party"
	"github.com/luxfi/pdcop/pkg/shamir"
	"github.com/luxfi/pdcop/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sh(v int64) shamir.Share {
	return shamir.Share{Index: party.ID(1), Value: field.New(v)}
}

func TestStoreAndGet(t *testing.T) {
	s := store.New()
	require.NoError(t, s.Store("a", sh(1), "round-1"))
	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, field.New(1), got.Value)
}

func TestStoreRequiresTag(t *testing.T) {
	s := store.New()
	err := s.Store("a", sh(1), "")
	assert.Error(t, err)
}

func TestClearByTagPreservesSticky(t *testing.T) {
	s := store.New()
	s.StoreSticky("r-key", sh(9))
	require.NoError(t, s.Store("Wb_1[0]", sh(1), "round-3"))
	require.NoError(t, s.Store("Wb_1[1]", sh(2), "round-3"))
	require.NoError(t, s.Store("other", sh(3), "round-4"))

	n := s.ClearByTag("round-3")
	assert.Equal(t, 2, n)
	assert.True(t, s.Has("r-key"))
	assert.True(t, s.Has("other"))
	assert.False(t, s.Has("Wb_1[0]"))
}

func TestClearNonStickyAfterBarrier(t *testing.T) {
	s := store.New()
	s.StoreSticky("r-key", sh(9))
	s.StoreSticky("r-key[0]", sh(1))
	require.NoError(t, s.Store("Wb_1[0]", sh(1), "round-1"))
	require.NoError(t, s.Store("n_1_2", sh(1), "round-1"))

	s.ClearNonSticky()
	assert.Equal(t, s.StickyCount(), s.Count())
	assert.Equal(t, 2, s.Count())
}

func TestClearAll(t *testing.T) {
	s := store.New()
	s.StoreSticky("r-key", sh(9))
	require.NoError(t, s.Store("x", sh(1), "round-1"))
	s.ClearAll()
	assert.Equal(t, 0, s.Count())
}

func TestMustGetMissing(t *testing.T) {
	s := store.New()
	_, err := s.MustGet("nope")
	assert.Error(t, err)
}
