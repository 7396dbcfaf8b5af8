// Package fault defines the fatal-condition error type shared by the MPC
// engine, round protocols, and agent orchestrator, per spec.md §7's error
// taxonomy: missing share, wrong-round completion, reconstruction failure,
// and unreachable recipient are all raised as a Fault identifying the
// offending protocol, agent, and round, then propagated without retry.
// Grounded on pkg/protocol.Error in the teacher
// (github.com/luxfi/threshold/pkg/protocol.MultiHandler's h.err field,
// carrying Culprits + wrapped Err), adapted from "culprit party ids" to the
// (agent, round, protocol id) triple this spec's fatal conditions name.
package fault

import "fmt"

// Fault is a fatal, unrecoverable condition raised by a protocol instance
// or round state machine. Per spec.md §7, the core never attempts recovery
// from its own Faults — it raises immediately and the embedding aborts the
// current iteration.
type Fault struct {
	Agent      int
	Round      int
	ProtocolID string
	Err        error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("fault: agent %d round %d protocol %q: %v", f.Agent, f.Round, f.ProtocolID, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// New constructs a Fault wrapping err with the given provenance.
func New(agent, round int, protocolID string, err error) *Fault {
	return &Fault{Agent: agent, Round: round, ProtocolID: protocolID, Err: err}
}

// Missingf builds a Fault for a missing-share condition, identifying the key.
func Missingf(agent, round int, protocolID, key string) *Fault {
	return New(agent, round, protocolID, fmt.Errorf("missing share for key %q", key))
}

// WrongRound builds a Fault for a sub-protocol reporting a round number that
// does not match its parent.
func WrongRound(agent, round int, protocolID string, got int) *Fault {
	return New(agent, round, protocolID, fmt.Errorf("sub-protocol completed for round %d, expected %d", got, round))
}
