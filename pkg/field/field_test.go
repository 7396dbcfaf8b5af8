package field_test

import (
	"testing"

	"github.com/luxfi/pdcop/pkg/field"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddSubNeg(t *testing.T) {
	a := field.New(5)
	b := field.New(10)
	assert.Equal(t, field.New(15), field.Add(a, b))
	assert.Equal(t, field.New(-5), field.Sub(a, b))
	assert.Equal(t, field.New(0), field.Add(a, field.Neg(a)))
}

func TestMulOverflowSafety(t *testing.T) {
	// both operands close to Prime: naive uint64 product must not overflow
	// or silently truncate.
	a := field.Elem(field.Prime - 1)
	b := field.Elem(field.Prime - 1)
	got := field.Mul(a, b)
	want := field.New(1) // (-1)*(-1) = 1 mod p
	assert.Equal(t, want, got)
}

func TestInverse(t *testing.T) {
	for _, v := range []int64{1, 2, 3, 12345, int64(field.Prime - 1)} {
		a := field.New(v)
		inv, ok := field.Inverse(a)
		require.True(t, ok)
		assert.Equal(t, field.New(1), field.Mul(a, inv))
	}
	_, ok := field.Inverse(0)
	assert.False(t, ok)
}

func TestOneMinus(t *testing.T) {
	assert.Equal(t, field.New(0), field.OneMinus(field.New(1)))
	assert.Equal(t, field.New(1), field.OneMinus(field.New(0)))
}

func TestBits(t *testing.T) {
	a := field.New(0b1011)
	bits := field.Bits(a, 4)
	assert.Equal(t, []field.Elem{1, 1, 0, 1}, bits)
}
