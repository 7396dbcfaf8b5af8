package mpc

import (
	"fmt"

	"github.com/luxfi/pdcop/pkg/field"
	"github.com/luxfi/pdcop/pkg/party"
	"github.com/luxfi/pdcop/pkg/shamir"
)

// SecureIsZero computes a share of 1 if the secret under xKey is 0, else 0,
// via Fermat's little theorem: for p prime, x^(p-1) = 1 for every x != 0
// and 0 for x == 0, so IsZero(x) = 1 - x^(p-1). x^(p-1) is computed by
// left-to-right square-and-multiply, each squaring/multiplication being one
// SecureMultiply round, chained through completion callbacks rather than
// unrolled as a loop since each step depends on the wire result of the
// last.
func SecureIsZero(ctx *Context, xKey, rKey, output, tag string, onComplete func(error)) error {
	bits := exponentBitsMSBFirst(field.Prime - 1)

	accKey := output + "/exp-acc0"
	if err := ctx.Storage.Store(accKey, shamirOne(ctx.Self), tag); err != nil {
		return err
	}

	var step func(i int, acc string)
	step = func(i int, acc string) {
		if i == len(bits) {
			if _, err := SecureKnownSub(ctx, field.New(1), acc, false, output, tag, func(_ string, err error) {
				onComplete(err)
			}); err != nil {
				onComplete(err)
			}
			return
		}
		sqKey := fmt.Sprintf("%s/exp-sq%d", output, i)
		if _, err := SecureMultiply(ctx, acc, acc, rKey, sqKey, tag, func(err error) {
			if err != nil {
				onComplete(fmt.Errorf("mpc: SecureIsZero squaring step %d: %w", i, err))
				return
			}
			if bits[i] == 0 {
				step(i+1, sqKey)
				return
			}
			mulKey := fmt.Sprintf("%s/exp-mul%d", output, i)
			if _, err := SecureMultiply(ctx, sqKey, xKey, rKey, mulKey, tag, func(err error) {
				if err != nil {
					onComplete(fmt.Errorf("mpc: SecureIsZero multiply step %d: %w", i, err))
					return
				}
				step(i+1, mulKey)
			}); err != nil {
				onComplete(err)
			}
		}); err != nil {
			onComplete(err)
		}
	}
	step(0, accKey)
	return nil
}

// exponentBitsMSBFirst returns e's bits from the most-significant 1 bit
// down to bit 0, the order left-to-right square-and-multiply consumes them.
func exponentBitsMSBFirst(e uint64) []int {
	if e == 0 {
		return []int{0}
	}
	var bits []int
	started := false
	for i := 63; i >= 0; i-- {
		b := int((e >> uint(i)) & 1)
		if !started && b == 0 {
			continue
		}
		started = true
		bits = append(bits, b)
	}
	return bits
}

func shamirOne(self party.ID) shamir.Share {
	return shamir.Share{Index: self, Value: field.New(1)}
}
