// Package barrier implements the all-agent rendezvous point between DCOP
// rounds described in spec.md §4.7: every agent announces arrival for the
// current round, and none proceeds until all N announcements (including its
// own) are in. Unlike pkg/mpc's primitives there is no initiator/responder
// split here — every agent plays an identical role, symmetric rendezvous
// being the one shape none of those primitives need — so all N agents
// start their own local instance under the same round-derived id before any
// network draining happens; the agent orchestrator (pkg/agent) is
// responsible for preserving that ordering (register for every agent, then
// drain), which is what lets barrier skip the responder-factory machinery
// every other protocol type in this module registers. Grounded on the same
// broadcast-and-collect shape as pkg/mpc, simplified to drop the ack phase
// since there is no local computation to acknowledge.
package barrier

import (
	"fmt"

	"github.com/luxfi/pdcop/pkg/party"
	"github.com/luxfi/pdcop/pkg/protocol"
)

// ID returns the deterministic protocol id every agent uses for round's
// barrier, so each agent's local Start call and every peer's arrival
// message agree on the same dispatcher key without coordination.
func ID(round int) string {
	return fmt.Sprintf("barrier-%d", round)
}

type op struct {
	id           string
	self         party.ID
	participants party.Set
	arrived      map[party.ID]bool
	onComplete   func(error)
	done         bool
}

func (o *op) ProtocolID() string { return o.id }

func (o *op) Initialize(params protocol.InitParams) error {
	o.id = params.ProtocolID
	o.self = params.Self
	o.participants = params.Participants
	o.arrived = make(map[party.ID]bool, o.participants.Len())
	return nil
}

func (o *op) Handle(msg *protocol.Message, sender party.ID) error {
	if msg.IsCompletionMessage {
		return fmt.Errorf("barrier: unexpected completion message for %q", o.id)
	}
	o.record(sender)
	return nil
}

func (o *op) record(id party.ID) {
	if o.done {
		return
	}
	o.arrived[id] = true
	if len(o.arrived) < o.participants.Len() {
		return
	}
	o.done = true
	if o.onComplete != nil {
		o.onComplete(nil)
	}
}

// Barrier is a registered-but-not-yet-announced instance, letting the
// agent orchestrator register round's rendezvous before it has anything to
// announce — so a faster peer's early arrival is never dropped for lack of
// a local instance — and only broadcast its own arrival once its round
// protocol actually completes (spec.md §4.11 step 3's "signal barrier",
// distinct from step 2's "start a new barrier").
type Barrier struct {
	id   string
	self party.ID
}

// Register starts this agent's local instance for round's barrier without
// announcing arrival. Callers must invoke Register for every agent before
// draining the transport's queued sends, so no arrival message ever
// reaches a dispatcher with no local instance registered yet.
func Register(transport protocol.Transport, dispatcher *protocol.Dispatcher, self party.ID, participants party.Set, round int, onComplete func(error)) (*Barrier, error) {
	id := ID(round)
	o := &op{onComplete: onComplete}
	if _, err := dispatcher.Start(o, protocol.InitParams{
		Transport:    transport,
		Self:         self,
		Participants: participants,
		ProtocolID:   id,
	}, round, "barrier"); err != nil {
		return nil, err
	}
	return &Barrier{id: id, self: self}, nil
}

// Announce broadcasts this agent's own arrival at the barrier. onComplete
// (passed to Register) fires once every participant, including self, has
// done the same.
func (b *Barrier) Announce(transport protocol.Transport, round int) error {
	msg := &protocol.Message{ProtocolID: b.id, Type: "barrier", From: b.self, Round: round}
	return transport.Broadcast(msg)
}

// Await is Register immediately followed by Announce, for callers (tests,
// simple symmetric rendezvous points) with no need to separate the two.
func Await(transport protocol.Transport, dispatcher *protocol.Dispatcher, self party.ID, participants party.Set, round int, onComplete func(error)) (string, error) {
	b, err := Register(transport, dispatcher, self, participants, round, onComplete)
	if err != nil {
		return "", err
	}
	if err := b.Announce(transport, round); err != nil {
		return "", err
	}
	return b.id, nil
}
