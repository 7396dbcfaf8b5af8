// Package sim implements the in-process reference transport and stepper
// spec.md §1 puts out of scope as an external collaborator, but which this
// module still needs to drive pkg/agent.Agent through real PDSA/PMGM/PMAXSUM
// rounds in tests and the demo CLI (§6's "step scheduler" and §4.5
// "message transport" contracts). Grounded on the teacher's in-memory test
// network (protocols/lss/test_helpers.go's map-of-channels party
// simulation), generalized here to the FIFO-per-pair, local-callback-aware
// shape spec.md §4.5/§5 specify instead of the teacher's raw channel fan-out.
package sim

import (
	"sort"
	"sync"

	"github.com/luxfi/pdcop/pkg/party"
	"github.com/luxfi/pdcop/pkg/protocol"
)

type pairKey struct {
	from, to party.ID
}

// Network is the shared, in-process message fabric every localTransport in
// one Simulator sends through: one FIFO queue per ordered (sender,
// recipient) pair, matching spec.md §5's "FIFO per sender-receiver pair"
// ordering guarantee. Simulator.Step fans independent agents' PreStep/
// PostStep hooks out across goroutines (spec.md §4 DOMAIN STACK's
// errgroup-bounded fan-out), so enqueue/drain take a mutex rather than
// assuming single-threaded access.
type Network struct {
	mu     sync.Mutex
	queues map[pairKey][]*protocol.Message
}

// NewNetwork returns an empty Network.
func NewNetwork() *Network {
	return &Network{queues: make(map[pairKey][]*protocol.Message)}
}

func (n *Network) enqueue(from, to party.ID, msg *protocol.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	key := pairKey{from, to}
	n.queues[key] = append(n.queues[key], msg)
}

// drain removes and returns every message currently queued for recipient,
// across every sender, sender-ids visited in ascending order so draining
// is deterministic. A message that the delivery of this batch enqueues for
// another agent (a chained ack, a responder's reply) is delivered in the
// same Simulator Step if that agent is drained later in Simulator.Step's
// order, and in the next Step otherwise.
func (n *Network) drain(recipient party.ID) []*protocol.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	var senders []party.ID
	for k := range n.queues {
		if k.to == recipient && len(n.queues[k]) > 0 {
			senders = append(senders, k.from)
		}
	}
	sort.Slice(senders, func(i, j int) bool { return senders[i] < senders[j] })

	var out []*protocol.Message
	for _, from := range senders {
		key := pairKey{from, recipient}
		out = append(out, n.queues[key]...)
		delete(n.queues, key)
	}
	return out
}

// Pending reports whether any message is currently queued for any
// recipient. Simulator.NetworkIdle exposes this to callers that want to
// confirm a completed run left nothing undelivered.
func (n *Network) Pending() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, q := range n.queues {
		if len(q) > 0 {
			return true
		}
	}
	return false
}
