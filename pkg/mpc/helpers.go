package mpc

import (
	"github.com/luxfi/pdcop/pkg/field"
	"github.com/luxfi/pdcop/pkg/party"
	"github.com/luxfi/pdcop/pkg/shamir"
)

// zeroShare and oneShare build the public constants 0 and 1 as a share for
// self directly, without a ShareDistribution round: both are degree-0
// sharings whose value is the same at every index, so every participant
// can construct its own "share" independently and still get a sharing that
// is consistent across the group.
func zeroShare(self party.ID) shamir.Share { return shamir.Share{Index: self, Value: 0} }
func oneShare(self party.ID) shamir.Share  { return shamir.Share{Index: self, Value: field.New(1)} }

// copyLocal, invertLocal and scalarMulLocal apply a pure function of a
// single already-held share to produce another, entirely locally: no
// network round is needed because every participant already holds its own
// share of the input and the transform (identity, 1-x, or multiply by a
// public constant) commutes with Shamir sharing.
func copyLocal(ctx *Context, srcKey, dstKey, tag string) error {
	sh, err := ctx.Storage.MustGet(srcKey)
	if err != nil {
		return err
	}
	return ctx.Storage.Store(dstKey, sh, tag)
}

func invertLocal(ctx *Context, srcKey, dstKey, tag string) error {
	sh, err := ctx.Storage.MustGet(srcKey)
	if err != nil {
		return err
	}
	return ctx.Storage.Store(dstKey, sh.OneMinus(), tag)
}

func scalarMulLocal(ctx *Context, c field.Elem, srcKey, dstKey, tag string) error {
	sh, err := ctx.Storage.MustGet(srcKey)
	if err != nil {
		return err
	}
	return ctx.Storage.Store(dstKey, sh.ScalarMul(c), tag)
}
