package protocol

import "github.com/luxfi/pdcop/pkg/party"

// Transport is the §4.5 transport adapter contract. The core only ever
// consumes this interface; pkg/sim provides the in-process reference
// implementation used by tests and the demo CLI, while a real embedding is
// expected to wrap the external stepper's direct-send primitive, per
// spec.md §6.
type Transport interface {
	// LocalID returns the agent this transport belongs to.
	LocalID() party.ID
	// Neighbors returns the sorted list of peer ids (excludes self).
	Neighbors() party.Set
	// Participants returns Neighbors() union {LocalID()}, sorted.
	Participants() party.Set
	// Send delivers msg to recipient. A send to LocalID() is delivered
	// synchronously through the registered local callback if one is set;
	// otherwise it is routed the same way as a remote send.
	Send(msg *Message, recipient party.ID) error
	// Multicast sends msg to every id in ids.
	Multicast(msg *Message, ids party.Set) error
	// Broadcast sends msg to every participant, including self.
	Broadcast(msg *Message) error
	// SetLocalCallback registers the function invoked for self-addressed
	// sends, bypassing the network fast path described in spec.md §9.
	SetLocalCallback(fn func(msg *Message))
}
