package mpc

import (
	"fmt"

	"github.com/luxfi/pdcop/pkg/field"
	"github.com/luxfi/pdcop/pkg/party"
	"github.com/luxfi/pdcop/pkg/protocol"
	"github.com/luxfi/pdcop/pkg/shamir"
	"github.com/luxfi/pdcop/pkg/store"
)

// scatterOp is ShareDistribution's wire shape: unlike broadcastOp, every
// recipient gets a distinct, personalized payload (its own share), so the
// initiator sends N point-to-point messages instead of one broadcast.
type scatterOp struct {
	id           string
	self         party.ID
	participants party.Set
	transport    protocol.Transport
	dispatcher   *protocol.Dispatcher
	storage      *store.ShareStorage

	isInitiator bool
	acked       map[party.ID]bool
	failed      error
	done        bool
	onComplete  func(error)
}

func (op *scatterOp) ProtocolID() string { return op.id }

func (op *scatterOp) Initialize(params protocol.InitParams) error {
	op.id = params.ProtocolID
	op.dispatcher = params.Dispatcher
	op.self = params.Self
	op.participants = params.Participants
	op.transport = params.Transport
	if op.storage == nil {
		op.storage = params.Storage
	}
	if op.isInitiator {
		op.acked = make(map[party.ID]bool, op.participants.Len())
	}
	return nil
}

func (op *scatterOp) Handle(msg *protocol.Message, sender party.ID) error {
	if msg.IsCompletionMessage {
		return op.handleAck(msg, sender)
	}

	var sp sharePayload
	if err := protocol.DecodePayload(msg.Payload, &sp); err != nil {
		return err
	}
	sh := shamir.Share{Index: party.ID(sp.Index), Value: sp.Value}
	var storeErr error
	if sp.Sticky {
		op.storage.StoreSticky(sp.Output, sh)
	} else {
		storeErr = op.storage.Store(sp.Output, sh, sp.Tag)
	}

	if op.isInitiator && msg.From == op.self {
		op.recordAck(op.self, storeErr)
		return storeErr
	}

	ack := ackPayload{OK: storeErr == nil}
	if storeErr != nil {
		ack.Err = storeErr.Error()
	}
	payload, err := protocol.EncodePayload(ack)
	if err != nil {
		return err
	}
	reply := &protocol.Message{ProtocolID: op.id, Type: msg.Type, From: op.self, Round: msg.Round, Payload: payload, IsCompletionMessage: true}
	if err := op.transport.Send(reply, msg.From); err != nil {
		return err
	}
	if op.dispatcher != nil {
		op.dispatcher.Remove(op.id)
	}
	return storeErr
}

func (op *scatterOp) handleAck(msg *protocol.Message, sender party.ID) error {
	if !op.isInitiator {
		return nil
	}
	var ack ackPayload
	if err := protocol.DecodePayload(msg.Payload, &ack); err != nil {
		return err
	}
	var ackErr error
	if !ack.OK {
		ackErr = fmt.Errorf("mpc: agent %d reported: %s", sender, ack.Err)
	}
	op.recordAck(sender, ackErr)
	return nil
}

func (op *scatterOp) recordAck(id party.ID, err error) {
	if op.done {
		return
	}
	if err != nil && op.failed == nil {
		op.failed = err
	}
	op.acked[id] = true
	if len(op.acked) < op.participants.Len() {
		return
	}
	op.done = true
	if op.dispatcher != nil {
		op.dispatcher.Remove(op.id)
	}
	if op.onComplete != nil {
		op.onComplete(op.failed)
	}
}

// ShareDistribution generates a fresh (threshold, N)-Shamir sharing of
// secret and sends each participant its own share as key output, tagged
// tag. onComplete fires once every participant (including self) has stored
// its share.
func ShareDistribution(ctx *Context, secret field.Elem, output, tag string, onComplete func(error)) (string, error) {
	return shareDistribution(ctx, secret, output, tag, false, onComplete)
}

// StickyShareDistribution is ShareDistribution for the one-time bootstrap
// secrets of spec.md §3 (r-key and its bit shares, PMGM's topology
// indicators): the distributed shares are stored sticky, surviving every
// inter-round ClearNonSticky.
func StickyShareDistribution(ctx *Context, secret field.Elem, output string, onComplete func(error)) (string, error) {
	return shareDistribution(ctx, secret, output, "", true, onComplete)
}

func shareDistribution(ctx *Context, secret field.Elem, output, tag string, sticky bool, onComplete func(error)) (string, error) {
	shares, err := shamir.GenerateShares(secret, ctx.Threshold(), ctx.Participants, ctx.RNG)
	if err != nil {
		return "", err
	}

	op := &scatterOp{isInitiator: true, storage: ctx.Storage}
	id, err := ctx.Dispatcher.Start(op, protocol.InitParams{
		Transport:    ctx.Transport,
		Self:         ctx.Self,
		Participants: ctx.Participants,
	}, ctx.Round, "mpc-scatter")
	if err != nil {
		return "", err
	}
	op.onComplete = onComplete

	for _, sh := range shares {
		payload, err := protocol.EncodePayload(sharePayload{Index: int32(sh.Index), Value: sh.Value, Output: output, Tag: tag, Sticky: sticky})
		if err != nil {
			return "", err
		}
		msg := &protocol.Message{ProtocolID: id, Type: "mpc-scatter", From: ctx.Self, Round: ctx.Round, Payload: payload}
		if err := ctx.Transport.Send(msg, sh.Index); err != nil {
			return "", err
		}
	}
	return id, nil
}

// VectorShareDistribution runs one ShareDistribution per entry of values,
// all fired concurrently (no ordering dependency between entries), and
// calls onComplete once every entry has finished. Output keys are
// fmt.Sprintf("%s[%d]", outputPrefix, i).
func VectorShareDistribution(ctx *Context, values []field.Elem, outputPrefix, tag string, onComplete func(error)) error {
	return vectorShareDistribution(ctx, values, outputPrefix, tag, false, onComplete)
}

// StickyVectorShareDistribution is VectorShareDistribution for a vector of
// one-time bootstrap secrets (e.g. r-key's 31 bit shares).
func StickyVectorShareDistribution(ctx *Context, values []field.Elem, outputPrefix string, onComplete func(error)) error {
	return vectorShareDistribution(ctx, values, outputPrefix, "", true, onComplete)
}

func vectorShareDistribution(ctx *Context, values []field.Elem, outputPrefix, tag string, sticky bool, onComplete func(error)) error {
	n := len(values)
	if n == 0 {
		onComplete(nil)
		return nil
	}
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
		if remaining == 0 {
			done = true
			onComplete(firstErr)
		}
	}
	for i, v := range values {
		key := fmt.Sprintf("%s[%d]", outputPrefix, i)
		if _, err := shareDistribution(ctx, v, key, tag, sticky, join); err != nil {
			return err
		}
	}
	return nil
}
