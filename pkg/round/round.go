// Package round implements the three privacy-preserving DCOP round
// protocols of spec.md §4.8-4.10 — PDSA, PMGM, PMAXSUM — each a state
// machine that sequences pkg/huddle and pkg/mpc primitives and reports a
// new value per agent per round. Grounded on the teacher's phase-tagged
// protocol state machines (protocols/lss/keygen's round1/round2/round3
// split, protocols/cmp/sign's multi-round signing session), generalized
// from the teacher's fixed three-round shape to this module's
// variable-length, named-phase state machines.
package round

import (
	"fmt"

	"github.com/luxfi/pdcop/pkg/field"
	"github.com/luxfi/pdcop/pkg/party"
)

// CostSource is the view a round protocol needs of the DCOP problem: its
// domain size, connectivity, and per-agent cost contribution rows. Kept as
// an interface (rather than importing pkg/dcop directly) so round state
// machines can be tested against a fake without constructing a full
// Problem.
type CostSource interface {
	DomainSize() int
	IsConnected(a, b party.ID) bool
	CostRow(from, to party.ID, fromValue int) []field.Elem
}

// Phase is a round protocol's current named state, surfaced mainly for
// logging and tests; callers should not branch on it directly since
// advancement is driven entirely by completion callbacks.
type Phase int

const (
	PhaseInitializing Phase = iota
	PhaseSharing
	PhaseDeciding
	PhaseFindingBest
	PhaseComputingGain
	PhaseSelecting
	PhaseUpdating
	PhaseComplete
	PhaseFailed
)

// Round is the common shape of PDSA, PMGM, and PMAXSUM: something the
// agent orchestrator (pkg/agent) can start once per DCOP round and be
// notified on completion, without needing to know which of the three it
// holds.
type Round interface {
	Phase() Phase
	Start(onComplete func(newValue int, err error)) error
}

func (p Phase) String() string {
	switch p {
	case PhaseInitializing:
		return "Initializing"
	case PhaseSharing:
		return "Sharing"
	case PhaseDeciding:
		return "Deciding"
	case PhaseFindingBest:
		return "FindingBest"
	case PhaseComputingGain:
		return "ComputingGain"
	case PhaseSelecting:
		return "Selecting"
	case PhaseUpdating:
		return "Updating"
	case PhaseComplete:
		return "Complete"
	case PhaseFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}
