package round

import (
	"fmt"

	"github.com/luxfi/pdcop/pkg/field"
	"github.com/luxfi/pdcop/pkg/mpc"
	"github.com/luxfi/pdcop/pkg/party"
)

// NKey returns the sticky storage key for the n_{i}_{j} topology indicator
// of spec.md §3: a share of 1 if (a,b) is constrained, 0 otherwise. Since
// connectivity is inherently symmetric — (a,b) and (b,a) name the same
// constraint — n_{a}_{b} and n_{b}_{a} are the same secret, so this module
// canonicalizes on the sorted pair rather than bootstrapping two
// independent (but necessarily equal) sharings per pair.
func NKey(a, b party.ID) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("n_%d_%d", a, b)
}

// BootstrapTopology distributes the sticky n_{i}_{j} indicators PMGM needs
// (spec.md §3), once per unordered pair. For each pair, the lower-indexed
// agent acts as the canonical distributor — both sides already know
// locally whether they share a constraint, so either could correctly
// originate the sharing, and fixing the lower index avoids every pair being
// bootstrapped twice. Every agent must call BootstrapTopology once before
// its first PMGM round; onComplete fires once every pair this agent
// originates has finished distributing.
func BootstrapTopology(ctx *mpc.Context, costs CostSource, onComplete func(error)) error {
	var toDistribute []party.ID
	for _, b := range ctx.Participants {
		if b > ctx.Self {
			toDistribute = append(toDistribute, b)
		}
	}
	if len(toDistribute) == 0 {
		onComplete(nil)
		return nil
	}

	remaining := len(toDistribute)
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
		if remaining == 0 {
			done = true
			onComplete(firstErr)
		}
	}

	for _, b := range toDistribute {
		indicator := field.New(0)
		if costs.IsConnected(ctx.Self, b) {
			indicator = field.New(1)
		}
		if _, err := mpc.StickyShareDistribution(ctx, indicator, NKey(ctx.Self, b), join); err != nil {
			return err
		}
	}
	return nil
}
