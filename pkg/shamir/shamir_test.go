package shamir_test

import (
	"crypto/rand"
	"testing"

	"github.com/luxfi/pdcop/pkg/field"
	"github.com/luxfi/pdcop/pkg/party"
	"github.com/luxfi/pdcop/pkg/shamir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(n int) []party.ID {
	out := make([]party.ID, n)
	for i := range out {
		out[i] = party.ID(i + 1)
	}
	return out
}

// TestShamirCorrectness is property 1 of spec.md §8: for any secret,
// threshold and choice of t distinct indices, reconstruction recovers the
// secret exactly.
func TestShamirCorrectness(t *testing.T) {
	secret := field.New(12345)
	shares, err := shamir.GenerateShares(secret, 3, ids(5), rand.Reader)
	require.NoError(t, err)
	require.Len(t, shares, 5)

	for _, subset := range [][]int{{0, 1, 2}, {1, 2, 3}, {0, 2, 4}, {2, 3, 4}} {
		picked := make([]shamir.Share, 0, 3)
		for _, i := range subset {
			picked = append(picked, shares[i])
		}
		got, err := shamir.Reconstruct(picked)
		require.NoError(t, err)
		assert.Equal(t, secret, got, "subset %v", subset)
	}
}

// E1: Shamir 3-of-5 with a specific prime-sized secret.
func TestShamirE1(t *testing.T) {
	secret := field.New(12345)
	shares, err := shamir.GenerateShares(secret, 3, ids(5), rand.Reader)
	require.NoError(t, err)

	got, err := shamir.Reconstruct(shares[:3])
	require.NoError(t, err)
	assert.Equal(t, secret, got)

	got, err = shamir.Reconstruct([]shamir.Share{shares[1], shares[3], shares[4]})
	require.NoError(t, err)
	assert.Equal(t, secret, got)
}

func TestShareArithmeticSoundness(t *testing.T) {
	a := field.New(77)
	b := field.New(33)
	sharesA, err := shamir.GenerateShares(a, 3, ids(5), rand.Reader)
	require.NoError(t, err)
	sharesB, err := shamir.GenerateShares(b, 3, ids(5), rand.Reader)
	require.NoError(t, err)

	sum := make([]shamir.Share, 5)
	diff := make([]shamir.Share, 5)
	scaled := make([]shamir.Share, 5)
	oneMinus := make([]shamir.Share, 5)
	for i := range sum {
		sum[i] = sharesA[i].Add(sharesB[i])
		diff[i] = sharesA[i].Sub(sharesB[i])
		scaled[i] = sharesA[i].ScalarMul(field.New(5))
		oneMinus[i] = sharesA[i].OneMinus()
	}

	gotSum, err := shamir.Reconstruct(sum[:3])
	require.NoError(t, err)
	assert.Equal(t, field.Add(a, b), gotSum)

	gotDiff, err := shamir.Reconstruct(diff[1:4])
	require.NoError(t, err)
	assert.Equal(t, field.Sub(a, b), gotDiff)

	gotScaled, err := shamir.Reconstruct(scaled[2:5])
	require.NoError(t, err)
	assert.Equal(t, field.Mul(field.New(5), a), gotScaled)

	gotOneMinus, err := shamir.Reconstruct(oneMinus[:3])
	require.NoError(t, err)
	assert.Equal(t, field.OneMinus(a), gotOneMinus)
}

func TestReconstructRejectsDuplicateIndices(t *testing.T) {
	shares, err := shamir.GenerateShares(field.New(1), 2, ids(3), rand.Reader)
	require.NoError(t, err)
	_, err = shamir.Reconstruct([]shamir.Share{shares[0], shares[0]})
	assert.Error(t, err)
}
