// Package huddle implements the cost-contribution exchange of spec.md §4.7:
// after every agent has chosen a current value, each agent privately shares
// its per-neighbor cost contribution with every other agent, and every
// agent assembles a running, Shamir-shared work-benefit vector Wb_i[x] for
// each target i (itself included) — the total cost i would pay for
// switching to candidate value x while everyone else keeps its current
// value. Grounded on the same scatter-and-fold shape pkg/mpc's
// ShareDistribution uses, but specialized: huddle's fold-on-receipt
// (summing an incoming contribution straight into a running accumulator)
// is a single-party-local operation on two already-held share values, so it
// runs here as plain field addition rather than round-tripping through
// pkg/mpc's SecureAdd broadcast/ack primitive — SecureAdd's acknowledgment
// phase exists to synchronize a multi-party computation, but no other
// agent's cooperation is needed to add two numbers one agent already holds.
package huddle

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/luxfi/pdcop/pkg/field"
	"github.com/luxfi/pdcop/pkg/party"
	"github.com/luxfi/pdcop/pkg/protocol"
	"github.com/luxfi/pdcop/pkg/shamir"
	"github.com/luxfi/pdcop/pkg/store"
)

// ID returns the deterministic protocol id every agent uses for round's
// huddle, mirroring pkg/barrier.ID: every agent starts its own instance
// under this id before any huddle message is drained, so (like barrier) no
// on-demand responder factory is needed.
func ID(round int) string {
	return fmt.Sprintf("huddle-%d", round)
}

// WbKey returns the storage key for target's accumulator entry x, e.g. for
// use by the round protocols once huddle completes.
func WbKey(target party.ID, x int) string {
	return fmt.Sprintf("Wb_%d[%d]", target, x)
}

type vectorPayload struct {
	Target int32
	From   int32
	Values []field.Elem
}

type op struct {
	id           string
	self         party.ID
	participants party.Set
	domainSize   int
	storage      *store.ShareStorage

	received   map[party.ID]int
	onComplete func(error)
	done       bool
}

func (o *op) ProtocolID() string { return o.id }

func (o *op) Initialize(params protocol.InitParams) error {
	o.id = params.ProtocolID
	o.self = params.Self
	o.participants = params.Participants
	if o.storage == nil {
		o.storage = params.Storage
	}
	o.received = make(map[party.ID]int, o.participants.Len())
	return nil
}

func (o *op) Handle(msg *protocol.Message, sender party.ID) error {
	var p vectorPayload
	if err := protocol.DecodePayload(msg.Payload, &p); err != nil {
		return fmt.Errorf("huddle: decoding contribution from %d: %w", sender, err)
	}
	target := party.ID(p.Target)
	if len(p.Values) != o.domainSize {
		return fmt.Errorf("huddle: contribution for target %d from %d has %d entries, want %d", target, sender, len(p.Values), o.domainSize)
	}

	for x, v := range p.Values {
		key := WbKey(target, x)
		cur, err := o.storage.MustGet(key)
		if err != nil {
			return fmt.Errorf("huddle: accumulator %q not initialized: %w", key, err)
		}
		folded := cur.Add(shamir.Share{Index: o.self, Value: v})
		if err := o.storage.Store(key, folded, tagFor(o.id)); err != nil {
			return err
		}
	}

	o.received[target]++
	if o.done || target != o.self {
		return nil
	}
	if o.received[o.self] >= o.participants.Len()-1 {
		o.done = true
		if o.onComplete != nil {
			o.onComplete(nil)
		}
	}
	return nil
}

func tagFor(id string) string { return id }

// CostRowFunc returns, for a given target agent, the M-length vector of
// the cost contribution self makes to target's per-candidate-value cost —
// cost(self,target)[v_self][x] for x in [0,domainSize) — as plaintext
// field elements (self knows both its own chosen value and its own cost
// matrix rows; only the resulting shares are ever sent to peers).
type CostRowFunc func(target party.ID) []field.Elem

// Run starts self's huddle participation for round: it zero-initializes
// every target's Wb accumulator, shares self's contribution to every other
// target with every participant, and completes once self has received and
// folded a full contribution vector from each of the other N-1
// participants. Other targets' accumulators keep being folded into as their
// contributions arrive, independent of onComplete, exactly as spec.md §4.7
// describes ("other agents' accumulations continue as their own huddles").
func Run(transport protocol.Transport, dispatcher *protocol.Dispatcher, storage *store.ShareStorage, self party.ID, participants party.Set, round, domainSize int, costRow CostRowFunc, rng io.Reader, onComplete func(error)) (string, error) {
	if rng == nil {
		rng = rand.Reader
	}
	id := ID(round)
	tag := tagFor(id)

	o := &op{storage: storage, domainSize: domainSize, onComplete: onComplete}
	if _, err := dispatcher.Start(o, protocol.InitParams{
		Transport:    transport,
		Self:         self,
		Participants: participants,
		ProtocolID:   id,
	}, round, "huddle"); err != nil {
		return "", err
	}

	for _, target := range participants {
		for x := 0; x < domainSize; x++ {
			if err := storage.Store(WbKey(target, x), shamir.Share{Index: self, Value: 0}, tag); err != nil {
				return "", err
			}
		}
	}

	threshold := participants.Threshold()
	if threshold < 1 {
		threshold = 1
	}

	for _, target := range participants {
		if target == self {
			continue
		}
		row := costRow(target)
		if len(row) != domainSize {
			return "", fmt.Errorf("huddle: cost row for target %d has %d entries, want %d", target, len(row), domainSize)
		}

		sharings := make([][]shamir.Share, domainSize)
		for x, v := range row {
			shares, err := shamir.GenerateShares(v, threshold, participants, rng)
			if err != nil {
				return "", fmt.Errorf("huddle: sharing contribution to %d entry %d: %w", target, x, err)
			}
			sharings[x] = shares
		}

		for ri, recipient := range participants {
			values := make([]field.Elem, domainSize)
			for x := 0; x < domainSize; x++ {
				values[x] = sharings[x][ri].Value
			}
			payload, err := protocol.EncodePayload(vectorPayload{Target: int32(target), From: int32(self), Values: values})
			if err != nil {
				return "", err
			}
			msg := &protocol.Message{ProtocolID: id, Type: "huddle", From: self, Round: round, Payload: payload}
			if err := transport.Send(msg, recipient); err != nil {
				return "", err
			}
		}
	}

	return id, nil
}
