package round

import (
	"fmt"
	"math/rand"

	"github.com/luxfi/pdcop/pkg/field"
	"github.com/luxfi/pdcop/pkg/huddle"
	"github.com/luxfi/pdcop/pkg/mpc"
	"github.com/luxfi/pdcop/pkg/party"
)

// PDSA implements spec.md §4.8's round protocol: Initializing -> Sharing ->
// Deciding -> FindingBest -> Updating -> Complete. Every phase transition
// is driven by a sub-protocol's completion callback, never by blocking, per
// the "suspension points" rule of spec.md §5.
type PDSA struct {
	ctx          *mpc.Context
	costs        CostSource
	algoRNG      *rand.Rand
	rKey         string
	rBits        []string
	initialValue int
	stochastic   float64

	phase      Phase
	onComplete func(newValue int, err error)
}

// NewPDSA builds a PDSA round for ctx.Self, starting from initialValue,
// gated by stochastic (the probability of actually attempting an update,
// drawn from algoRNG — the agent's non-cryptographic PRNG stream, per
// spec.md §5). rKey/rBits must already hold this agent's sticky masking
// secret and its bit decomposition.
func NewPDSA(ctx *mpc.Context, costs CostSource, algoRNG *rand.Rand, rKey string, rBits []string, initialValue int, stochastic float64) *PDSA {
	return &PDSA{
		ctx: ctx, costs: costs, algoRNG: algoRNG,
		rKey: rKey, rBits: rBits,
		initialValue: initialValue, stochastic: stochastic,
		phase: PhaseInitializing,
	}
}

// Phase returns the round's current state.
func (p *PDSA) Phase() Phase { return p.phase }

// Start runs the round to completion, invoking onComplete exactly once
// with the agent's new value (unchanged from initialValue if the
// stochastic gate declined this round, or on failure).
func (p *PDSA) Start(onComplete func(newValue int, err error)) error {
	p.onComplete = onComplete
	p.phase = PhaseSharing

	costRow := func(target party.ID) []field.Elem {
		return p.costs.CostRow(p.ctx.Self, target, p.initialValue)
	}
	_, err := huddle.Run(p.ctx.Transport, p.ctx.Dispatcher, p.ctx.Storage, p.ctx.Self, p.ctx.Participants, p.ctx.Round, p.costs.DomainSize(), costRow, p.ctx.RNG, p.onHuddleDone)
	if err != nil {
		return fmt.Errorf("round: PDSA huddle for agent %d round %d: %w", p.ctx.Self, p.ctx.Round, err)
	}
	return nil
}

func (p *PDSA) onHuddleDone(err error) {
	if err != nil {
		p.fail(fmt.Errorf("round: PDSA huddle phase: %w", err))
		return
	}
	p.phase = PhaseDeciding
	u := p.algoRNG.Float64()
	if u >= p.stochastic {
		p.complete(p.initialValue)
		return
	}
	p.phase = PhaseFindingBest

	domainSize := p.costs.DomainSize()
	if domainSize == 0 {
		p.fail(fmt.Errorf("round: PDSA agent %d has an empty domain", p.ctx.Self))
		return
	}
	keys := make([]string, domainSize)
	for x := 0; x < domainSize; x++ {
		keys[x] = huddle.WbKey(p.ctx.Self, x)
	}
	tag := fmt.Sprintf("pdsa-r%d", p.ctx.Round)
	minCostKey := fmt.Sprintf("pdsa/mincost-r%d", p.ctx.Round)
	bestValueKey := fmt.Sprintf("pdsa/bestvalue-r%d", p.ctx.Round)
	if err := mpc.SecureFindMin(p.ctx, keys, p.rKey, p.rBits, minCostKey, bestValueKey, tag, func(err error) {
		p.onFindMinDone(bestValueKey, err)
	}); err != nil {
		p.fail(fmt.Errorf("round: PDSA FindingBest phase: %w", err))
	}
}

func (p *PDSA) onFindMinDone(bestValueKey string, err error) {
	if err != nil {
		p.fail(fmt.Errorf("round: PDSA FindingBest phase: %w", err))
		return
	}
	p.phase = PhaseUpdating
	if _, err := mpc.Reconstruct(p.ctx, bestValueKey, func(v field.Elem, err error) {
		if err != nil {
			p.fail(fmt.Errorf("round: PDSA Updating phase: %w", err))
			return
		}
		p.complete(int(v))
	}); err != nil {
		p.fail(fmt.Errorf("round: PDSA Updating phase: %w", err))
	}
}

func (p *PDSA) complete(newValue int) {
	p.phase = PhaseComplete
	if p.onComplete != nil {
		p.onComplete(newValue, nil)
	}
}

func (p *PDSA) fail(err error) {
	p.phase = PhaseFailed
	if p.onComplete != nil {
		p.onComplete(p.initialValue, err)
	}
}
