package mpc

import (
	"fmt"

	"github.com/luxfi/pdcop/pkg/field"
	"github.com/luxfi/pdcop/pkg/party"
	"github.com/luxfi/pdcop/pkg/shamir"
)

// SecureFindMin computes shares of (min(values), argmin index) over the
// array named by keys (keys[x] holds a share of the x-th candidate), via a
// recursive pairwise tournament: each round compares adjacent pairs with
// SecureCompare and obliviously selects both the winning value and its
// matching index into a new, half-as-long pair of lists; any odd leftover
// element carries through unchanged. Each pair's left (lower-indexed)
// operand is treated as the incumbent and only loses to its right-hand
// challenger on a strict win — SecureCompare reports 0 on equality — so
// ties always resolve to the smallest index, as required for the
// leftmost-wins convention used throughout this module.
func SecureFindMin(ctx *Context, keys []string, rKey string, rBits []string, valueOutput, indexOutput, tag string, onComplete func(error)) error {
	return secureFindExtreme(ctx, keys, nil, rKey, rBits, valueOutput, indexOutput, tag, false, onComplete)
}

// SecureFindMax is SecureFindMin with the comparison operands swapped at
// each node, so the larger value (and its index) survives each round.
func SecureFindMax(ctx *Context, keys []string, rKey string, rBits []string, valueOutput, indexOutput, tag string, onComplete func(error)) error {
	return secureFindExtreme(ctx, keys, nil, rKey, rBits, valueOutput, indexOutput, tag, true, onComplete)
}

// SecureFindMinLabeled and SecureFindMaxLabeled are SecureFindMin/Max for
// callers that need the winning index to reconstruct to something other
// than keys' 0-based array position — e.g. PMGM's maxGainAgent, which must
// reconstruct to the actual winning agent id. labels must have the same
// length as keys; labels[x] is the value the index output reconstructs to
// when keys[x] wins.
func SecureFindMinLabeled(ctx *Context, keys []string, labels []int, rKey string, rBits []string, valueOutput, indexOutput, tag string, onComplete func(error)) error {
	return secureFindExtreme(ctx, keys, labels, rKey, rBits, valueOutput, indexOutput, tag, false, onComplete)
}

func SecureFindMaxLabeled(ctx *Context, keys []string, labels []int, rKey string, rBits []string, valueOutput, indexOutput, tag string, onComplete func(error)) error {
	return secureFindExtreme(ctx, keys, labels, rKey, rBits, valueOutput, indexOutput, tag, true, onComplete)
}

func secureFindExtreme(ctx *Context, valueKeys []string, labels []int, rKey string, rBits []string, valueOutput, indexOutput, tag string, max bool, onComplete func(error)) error {
	if len(valueKeys) == 0 {
		return fmt.Errorf("mpc: FindMin/FindMax requires a non-empty domain")
	}
	if labels != nil && len(labels) != len(valueKeys) {
		return fmt.Errorf("mpc: FindMin/FindMax labels length %d does not match keys length %d", len(labels), len(valueKeys))
	}

	indexKeys := make([]string, len(valueKeys))
	for i := range valueKeys {
		label := uint64(i)
		if labels != nil {
			label = uint64(labels[i])
		}
		indexKeys[i] = fmt.Sprintf("%s/idx-const%d", valueOutput, i)
		if err := ctx.Storage.Store(indexKeys[i], constShare(ctx.Self, label), tag); err != nil {
			return err
		}
	}

	var round func(level int, values, indices []string)
	round = func(level int, values, indices []string) {
		if len(values) == 1 {
			remaining := 2
			var firstErr error
			join := func(_ string, err error) {
				if err != nil && firstErr == nil {
					firstErr = err
				}
				remaining--
				if remaining == 0 {
					onComplete(firstErr)
				}
			}
			if _, err := SecureCopyShare(ctx, values[0], valueOutput, tag, join); err != nil {
				onComplete(err)
				return
			}
			if _, err := SecureCopyShare(ctx, indices[0], indexOutput, tag, join); err != nil {
				onComplete(err)
				return
			}
			return
		}

		pairs := len(values) / 2
		nextValues := make([]string, pairs)
		nextIndices := make([]string, pairs)
		var carryValue, carryIndex string
		if len(values)%2 == 1 {
			carryValue, carryIndex = values[len(values)-1], indices[len(values)-1]
		}

		remaining := pairs
		var firstErr error
		done := false
		join := func(err error) {
			if done {
				return
			}
			if err != nil && firstErr == nil {
				firstErr = err
			}
			remaining--
			if remaining > 0 {
				return
			}
			if firstErr != nil {
				done = true
				onComplete(firstErr)
				return
			}
			if carryValue != "" {
				nextValues = append(nextValues, carryValue)
				nextIndices = append(nextIndices, carryIndex)
			}
			round(level+1, nextValues, nextIndices)
		}

		for i := 0; i < pairs; i++ {
			av, bv := values[2*i], values[2*i+1]
			ai, bi := indices[2*i], indices[2*i+1]
			cmpKey := fmt.Sprintf("%s/L%d-cmp%d", valueOutput, level, i)
			selValKey := fmt.Sprintf("%s/L%d-selv%d", valueOutput, level, i)
			selIdxKey := fmt.Sprintf("%s/L%d-seli%d", valueOutput, level, i)
			nextValues[i] = selValKey
			nextIndices[i] = selIdxKey

			// av (the lower-indexed, left operand) is the incumbent and
			// must win ties; bv only displaces it on a strict win. For a
			// min tournament that's bv<av, for a max tournament that's
			// bv>av (equivalently av<bv) — in both cases the eventual
			// select is obliviousSelect(e, bv, av), e=[bv beats av], so
			// only the SecureCompare operand order changes below.
			cmpA, cmpB := bv, av
			if max {
				cmpA, cmpB = av, bv
			}

			if err := SecureCompare(ctx, cmpA, cmpB, rKey, rBits, cmpKey, tag, func(err error) {
				if err != nil {
					join(err)
					return
				}
				if err := obliviousSelect(ctx, cmpKey, bv, av, rKey, selValKey, tag, func(err error) {
					if err != nil {
						join(err)
						return
					}
					if err := obliviousSelect(ctx, cmpKey, bi, ai, rKey, selIdxKey, tag, join); err != nil {
						join(err)
					}
				}); err != nil {
					join(err)
				}
			}); err != nil {
				join(err)
			}
		}
	}
	round(0, valueKeys, indexKeys)
	return nil
}

// constShare builds self's point on the degree-0 "sharing" of a known
// public constant, the same trick zeroShare/oneShare use: every party
// computes the same value independently, with no distribution round.
func constShare(self party.ID, v uint64) shamir.Share {
	return shamir.Share{Index: self, Value: field.Elem(v % field.Prime)}
}

// obliviousSelect computes a share of (e ? a : b) for a 0/1 share e,
// without revealing which branch was taken: e*a + (1-e)*b.
func obliviousSelect(ctx *Context, eKey, aKey, bKey, rKey, output, tag string, onComplete func(error)) error {
	eaKey := output + "/sel-ea"
	notEKey := output + "/sel-note"
	ebKey := output + "/sel-eb"

	if _, err := SecureMultiply(ctx, eKey, aKey, rKey, eaKey, tag, func(err error) {
		if err != nil {
			onComplete(err)
			return
		}
		if err := invertLocal(ctx, eKey, notEKey, tag); err != nil {
			onComplete(err)
			return
		}
		if _, err := SecureMultiply(ctx, notEKey, bKey, rKey, ebKey, tag, func(err error) {
			if err != nil {
				onComplete(err)
				return
			}
			if _, err := SecureAdd(ctx, eaKey, ebKey, output, tag, func(_ string, err error) {
				onComplete(err)
			}); err != nil {
				onComplete(err)
			}
		}); err != nil {
			onComplete(err)
		}
	}); err != nil {
		return err
	}
	return nil
}
