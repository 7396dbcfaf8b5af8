package round

import (
	"fmt"

	"github.com/luxfi/pdcop/pkg/field"
	"github.com/luxfi/pdcop/pkg/huddle"
	"github.com/luxfi/pdcop/pkg/mpc"
	"github.com/luxfi/pdcop/pkg/party"
)

// PMGM implements spec.md §4.9's ≈12-phase round: every agent computes its
// potential gain from switching to its best value, and only the agent
// holding the globally maximum gain in its neighborhood actually switches.
// Every cross-agent secret this round produces (currValue, minCost,
// currentCost, gain) is computed by a broadcast-shaped mpc primitive keyed
// on the owning agent's id, so each agent's own instance transparently
// receives and stores a share of every other agent's value as a side
// effect of responding to that agent's broadcast requests — the same
// mechanism pkg/huddle uses to assemble Wb_i[x] at every agent, not just
// agent i.
type PMGM struct {
	ctx     *mpc.Context
	costs   CostSource
	rKey    string
	rBits   []string
	initial int

	phase      Phase
	onComplete func(newValue int, err error)
}

// NewPMGM builds a PMGM round for ctx.Self, starting from initialValue.
// Unlike PDSA, PMGM has no stochastic gate, so it needs no algorithm RNG.
// rKey/rBits must already hold this agent's sticky masking secret and its
// bit decomposition; the sticky topology indicators n_{i}_{j} (see
// BootstrapTopology) must already be in place for every participant.
func NewPMGM(ctx *mpc.Context, costs CostSource, rKey string, rBits []string, initialValue int) *PMGM {
	return &PMGM{ctx: ctx, costs: costs, rKey: rKey, rBits: rBits, initial: initialValue, phase: PhaseInitializing}
}

// Phase returns the round's current state.
func (p *PMGM) Phase() Phase { return p.phase }

func (p *PMGM) tag() string { return fmt.Sprintf("pmgm-r%d", p.ctx.Round) }

// Per-owner key helpers: every cross-agent secret this round produces is
// namespaced by the agent that originates its computation, so concurrent
// same-round broadcasts from different owners never collide in another
// agent's storage.
func (p *PMGM) currValueKey(owner party.ID) string { return fmt.Sprintf("pmgm/r%d/currValue_%d", p.ctx.Round, owner) }
func (p *PMGM) eKey(owner party.ID, x int) string {
	return fmt.Sprintf("pmgm/r%d/E_%d[%d]", p.ctx.Round, owner, x)
}
func (p *PMGM) minCostKey(owner party.ID) string    { return fmt.Sprintf("pmgm/r%d/mincost_%d", p.ctx.Round, owner) }
func (p *PMGM) bestValueKey(owner party.ID) string  { return fmt.Sprintf("pmgm/r%d/bestvalue_%d", p.ctx.Round, owner) }
func (p *PMGM) currentCostKey(owner party.ID) string { return fmt.Sprintf("pmgm/r%d/currentcost_%d", p.ctx.Round, owner) }
func (p *PMGM) gainKey(owner party.ID) string       { return fmt.Sprintf("pmgm/r%d/gain_%d", p.ctx.Round, owner) }
func (p *PMGM) gKey(j party.ID) string              { return fmt.Sprintf("pmgm/r%d/g_%d", p.ctx.Round, j) }

// Start runs the round to completion, invoking onComplete exactly once
// with the agent's new value.
func (p *PMGM) Start(onComplete func(newValue int, err error)) error {
	p.onComplete = onComplete
	p.phase = PhaseSharing
	tag := p.tag()

	remaining := 2
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
			p.fail(fmt.Errorf("round: PMGM Sharing phase: %w", firstErr))
			return
		}
		p.onPhase1Done()
	}

	costRow := func(target party.ID) []field.Elem {
		return p.costs.CostRow(p.ctx.Self, target, p.initial)
	}
	if _, err := huddle.Run(p.ctx.Transport, p.ctx.Dispatcher, p.ctx.Storage, p.ctx.Self, p.ctx.Participants, p.ctx.Round, p.costs.DomainSize(), costRow, p.ctx.RNG, join); err != nil {
		return fmt.Errorf("round: PMGM huddle for agent %d round %d: %w", p.ctx.Self, p.ctx.Round, err)
	}
	if _, err := mpc.ShareDistribution(p.ctx, field.New(int64(p.initial)), p.currValueKey(p.ctx.Self), tag, join); err != nil {
		return fmt.Errorf("round: PMGM currValue distribution for agent %d round %d: %w", p.ctx.Self, p.ctx.Round, err)
	}
	return nil
}

func (p *PMGM) onPhase1Done() {
	p.phase = PhaseFindingBest
	tag := p.tag()
	domainSize := p.costs.DomainSize()
	if domainSize == 0 {
		p.fail(fmt.Errorf("round: PMGM agent %d has an empty domain", p.ctx.Self))
		return
	}
	keys := make([]string, domainSize)
	for x := 0; x < domainSize; x++ {
		keys[x] = huddle.WbKey(p.ctx.Self, x)
	}
	if err := mpc.SecureFindMin(p.ctx, keys, p.rKey, p.rBits, p.minCostKey(p.ctx.Self), p.bestValueKey(p.ctx.Self), tag, func(err error) {
		if err != nil {
			p.fail(fmt.Errorf("round: PMGM FindingBest phase: %w", err))
			return
		}
		p.onPhase2Done()
	}); err != nil {
		p.fail(fmt.Errorf("round: PMGM FindingBest phase: %w", err))
	}
}

func (p *PMGM) onPhase2Done() {
	p.phase = PhaseComputingGain
	tag := p.tag()
	domainSize := p.costs.DomainSize()

	e := make([]field.Elem, domainSize)
	for x := range e {
		if x == p.initial {
			e[x] = field.New(1)
		}
	}
	if err := mpc.VectorShareDistribution(p.ctx, e, fmt.Sprintf("pmgm/r%d/E_%d", p.ctx.Round, p.ctx.Self), tag, func(err error) {
		if err != nil {
			p.fail(fmt.Errorf("round: PMGM unit-vector distribution: %w", err))
			return
		}
		p.onEDistributed()
	}); err != nil {
		p.fail(fmt.Errorf("round: PMGM unit-vector distribution: %w", err))
	}
}

func (p *PMGM) onEDistributed() {
	tag := p.tag()
	domainSize := p.costs.DomainSize()
	wbKeys := make([]string, domainSize)
	eKeys := make([]string, domainSize)
	for x := 0; x < domainSize; x++ {
		wbKeys[x] = huddle.WbKey(p.ctx.Self, x)
		eKeys[x] = p.eKey(p.ctx.Self, x)
	}
	if err := mpc.SecureDotProduct(p.ctx, wbKeys, eKeys, p.rKey, p.currentCostKey(p.ctx.Self), tag, func(err error) {
		if err != nil {
			p.fail(fmt.Errorf("round: PMGM current-cost computation: %w", err))
			return
		}
		p.onCurrentCostDone()
	}); err != nil {
		p.fail(fmt.Errorf("round: PMGM current-cost computation: %w", err))
	}
}

func (p *PMGM) onCurrentCostDone() {
	tag := p.tag()
	if _, err := mpc.SecureSub(p.ctx, p.currentCostKey(p.ctx.Self), p.minCostKey(p.ctx.Self), p.gainKey(p.ctx.Self), tag, func(_ string, err error) {
		if err != nil {
			p.fail(fmt.Errorf("round: PMGM gain computation: %w", err))
			return
		}
		p.onPhase3Done()
	}); err != nil {
		p.fail(fmt.Errorf("round: PMGM gain computation: %w", err))
	}
}

func (p *PMGM) onPhase3Done() {
	p.phase = PhaseSelecting
	tag := p.tag()

	n := len(p.ctx.Participants)
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
			p.fail(fmt.Errorf("round: PMGM relevant-gain-vector phase: %w", firstErr))
			return
		}
		p.onPhase4Done()
	}

	for _, j := range p.ctx.Participants {
		if j == p.ctx.Self {
			if _, err := mpc.SecureCopyShare(p.ctx, p.gainKey(j), p.gKey(j), tag, func(_ string, err error) { join(err) }); err != nil {
				p.fail(fmt.Errorf("round: PMGM relevant-gain-vector diagonal: %w", err))
				return
			}
			continue
		}
		nKey := NKey(p.ctx.Self, j)
		if _, err := mpc.SecureMultiply(p.ctx, p.gainKey(j), nKey, p.rKey, p.gKey(j), tag, join); err != nil {
			p.fail(fmt.Errorf("round: PMGM relevant-gain-vector entry %d: %w", j, err))
			return
		}
	}
}

func (p *PMGM) onPhase4Done() {
	p.phase = PhaseFindingBest
	tag := p.tag()

	gKeys := make([]string, len(p.ctx.Participants))
	labels := make([]int, len(p.ctx.Participants))
	for i, j := range p.ctx.Participants {
		gKeys[i] = p.gKey(j)
		labels[i] = int(j)
	}
	maxGainKey := fmt.Sprintf("pmgm/r%d/maxgain", p.ctx.Round)
	maxGainAgentKey := fmt.Sprintf("pmgm/r%d/maxgainagent", p.ctx.Round)
	if err := mpc.SecureFindMaxLabeled(p.ctx, gKeys, labels, p.rKey, p.rBits, maxGainKey, maxGainAgentKey, tag, func(err error) {
		if err != nil {
			p.fail(fmt.Errorf("round: PMGM Selecting phase: %w", err))
			return
		}
		p.onPhase5Done(maxGainAgentKey)
	}); err != nil {
		p.fail(fmt.Errorf("round: PMGM Selecting phase: %w", err))
	}
}

func (p *PMGM) onPhase5Done(maxGainAgentKey string) {
	p.phase = PhaseUpdating
	tag := p.tag()

	diffKey := fmt.Sprintf("pmgm/r%d/diff", p.ctx.Round)
	isMaxKey := fmt.Sprintf("pmgm/r%d/ismax", p.ctx.Round)
	valueDiffKey := fmt.Sprintf("pmgm/r%d/valuediff", p.ctx.Round)
	tmpKey := fmt.Sprintf("pmgm/r%d/tmp", p.ctx.Round)
	finalValueKey := fmt.Sprintf("pmgm/r%d/finalvalue", p.ctx.Round)

	if _, err := mpc.SecureKnownSub(p.ctx, field.New(int64(p.ctx.Self)), maxGainAgentKey, true, diffKey, tag, func(_ string, err error) {
		if err != nil {
			p.fail(fmt.Errorf("round: PMGM Updating phase (diff): %w", err))
			return
		}
		if err := mpc.SecureIsZero(p.ctx, diffKey, p.rKey, isMaxKey, tag, func(err error) {
			if err != nil {
				p.fail(fmt.Errorf("round: PMGM Updating phase (isMax): %w", err))
				return
			}
			if _, err := mpc.SecureSub(p.ctx, p.bestValueKey(p.ctx.Self), p.currValueKey(p.ctx.Self), valueDiffKey, tag, func(_ string, err error) {
				if err != nil {
					p.fail(fmt.Errorf("round: PMGM Updating phase (valueDiff): %w", err))
					return
				}
				if _, err := mpc.SecureMultiply(p.ctx, isMaxKey, valueDiffKey, p.rKey, tmpKey, tag, func(err error) {
					if err != nil {
						p.fail(fmt.Errorf("round: PMGM Updating phase (tmp): %w", err))
						return
					}
					if _, err := mpc.SecureAdd(p.ctx, p.currValueKey(p.ctx.Self), tmpKey, finalValueKey, tag, func(_ string, err error) {
						if err != nil {
							p.fail(fmt.Errorf("round: PMGM Updating phase (finalValue): %w", err))
							return
						}
						p.onFinalValueReady(finalValueKey)
					}); err != nil {
						p.fail(fmt.Errorf("round: PMGM Updating phase (finalValue): %w", err))
					}
				}); err != nil {
					p.fail(fmt.Errorf("round: PMGM Updating phase (tmp): %w", err))
				}
			}); err != nil {
				p.fail(fmt.Errorf("round: PMGM Updating phase (valueDiff): %w", err))
			}
		}); err != nil {
			p.fail(fmt.Errorf("round: PMGM Updating phase (isMax): %w", err))
		}
	}); err != nil {
		p.fail(fmt.Errorf("round: PMGM Updating phase (diff): %w", err))
	}
}

func (p *PMGM) onFinalValueReady(finalValueKey string) {
	if _, err := mpc.Reconstruct(p.ctx, finalValueKey, func(v field.Elem, err error) {
		if err != nil {
			p.fail(fmt.Errorf("round: PMGM Updating phase (reconstruct): %w", err))
			return
		}
		p.complete(int(v))
	}); err != nil {
		p.fail(fmt.Errorf("round: PMGM Updating phase (reconstruct): %w", err))
	}
}

func (p *PMGM) complete(newValue int) {
	p.phase = PhaseComplete
	if p.onComplete != nil {
		p.onComplete(newValue, nil)
	}
}

func (p *PMGM) fail(err error) {
	p.phase = PhaseFailed
	if p.onComplete != nil {
		p.onComplete(p.initial, err)
	}
}
