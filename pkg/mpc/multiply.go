package mpc

import (
	"fmt"

	"github.com/luxfi/pdcop/pkg/field"
)

// SecureMultiply computes a fresh degree-t share of A*B using the BGW
// masking trick: the local product A*B has degree 2t, too high to remain a
// valid sharing, so the parties mask it with a pre-shared random share
// rKey (bootstrapped once per agent, spec.md §3), publicly reconstruct the
// masked value, then locally subtract the random share back out. rKey must
// name a share of the *same* random secret at every participant.
func SecureMultiply(ctx *Context, aKey, bKey, rKey, output, tag string, onComplete func(error)) (string, error) {
	maskKey := output + "/masked"
	return broadcastCompute(ctx, Request{Kind: "mask", Inputs: []string{aKey, bKey, rKey}, Output: maskKey, Tag: tag}, func(_ string, err error) {
		if err != nil {
			onComplete(fmt.Errorf("mpc: SecureMultiply mask phase: %w", err))
			return
		}
		if _, err := Reconstruct(ctx, maskKey, func(masked field.Elem, err error) {
			if err != nil {
				onComplete(fmt.Errorf("mpc: SecureMultiply reconstruct phase: %w", err))
				return
			}
			if _, err := broadcastCompute(ctx, Request{Kind: "finalize-mul", Inputs: []string{rKey}, Scalar: masked, Output: output, Tag: tag}, func(_ string, err error) {
				if err != nil {
					onComplete(fmt.Errorf("mpc: SecureMultiply finalize phase: %w", err))
					return
				}
				onComplete(nil)
			}); err != nil {
				onComplete(err)
			}
		}); err != nil {
			onComplete(err)
		}
	})
}

// SecureDotProduct computes a share of sum_i A_i*B_i by running n
// independent SecureMultiply rounds (one per entry, all launched together
// since none depends on another's result) followed by one local "sum"
// broadcast over the n partial products.
func SecureDotProduct(ctx *Context, aKeys, bKeys []string, rKey, output, tag string, onComplete func(error)) error {
	n := len(aKeys)
	if n != len(bKeys) {
		return fmt.Errorf("mpc: SecureDotProduct operand length mismatch: %d vs %d", n, len(bKeys))
	}
	if n == 0 {
		onComplete(fmt.Errorf("mpc: SecureDotProduct requires at least one entry"))
		return nil
	}

	partials := make([]string, n)
	remaining := n
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
		if _, err := broadcastCompute(ctx, Request{Kind: "sum", Inputs: partials, Output: output, Tag: tag}, func(_ string, err error) {
			done = true
			onComplete(err)
		}); err != nil {
			done = true
			onComplete(err)
		}
	}

	for i := 0; i < n; i++ {
		partials[i] = fmt.Sprintf("%s/partial%d", output, i)
		if _, err := SecureMultiply(ctx, aKeys[i], bKeys[i], rKey, partials[i], tag, join); err != nil {
			return err
		}
	}
	return nil
}
