package sim

import (
	"fmt"

	"github.com/luxfi/pdcop/pkg/party"
	"github.com/luxfi/pdcop/pkg/protocol"
)

// localTransport is the per-agent protocol.Transport handle backed by a
// shared Network. A self-addressed Send bypasses the network entirely and
// invokes the registered local callback synchronously, matching spec.md §9's
// "local fast path" note and letting an agent's own instances handle the
// self-addressed leg of a broadcast (e.g. an MPC initiator's own share
// request) without a network round-trip.
type localTransport struct {
	self         party.ID
	participants party.Set
	net          *Network
	local        func(msg *protocol.Message)
}

func newLocalTransport(self party.ID, participants party.Set, net *Network) *localTransport {
	return &localTransport{self: self, participants: participants, net: net}
}

func (t *localTransport) LocalID() party.ID { return t.self }

func (t *localTransport) Neighbors() party.Set {
	out := make(party.Set, 0, len(t.participants))
	for _, id := range t.participants {
		if id != t.self {
			out = append(out, id)
		}
	}
	return out
}

func (t *localTransport) Participants() party.Set {
	return t.participants
}

func (t *localTransport) Send(msg *protocol.Message, recipient party.ID) error {
	if !t.participants.Contains(recipient) {
		return fmt.Errorf("sim: send to unknown participant %d", recipient)
	}
	if recipient == t.self {
		if t.local == nil {
			return fmt.Errorf("sim: agent %d has no local callback registered", t.self)
		}
		t.local(msg)
		return nil
	}
	t.net.enqueue(t.self, recipient, msg)
	return nil
}

func (t *localTransport) Multicast(msg *protocol.Message, ids party.Set) error {
	for _, id := range ids {
		if err := t.Send(msg, id); err != nil {
			return err
		}
	}
	return nil
}

func (t *localTransport) Broadcast(msg *protocol.Message) error {
	return t.Multicast(msg, t.participants)
}

func (t *localTransport) SetLocalCallback(fn func(msg *protocol.Message)) {
	t.local = fn
}
