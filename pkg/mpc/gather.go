package mpc

import (
	"fmt"
	"sort"

	"github.com/luxfi/pdcop/pkg/field"
	"github.com/luxfi/pdcop/pkg/party"
	"github.com/luxfi/pdcop/pkg/protocol"
	"github.com/luxfi/pdcop/pkg/shamir"
	"github.com/luxfi/pdcop/pkg/store"
)

// reconstructOp is Reconstruct's wire shape: the initiator broadcasts a
// request naming the key to open, every participant replies with its own
// share of that key, and once all N have replied the initiator runs
// Lagrange interpolation over all N of them (sorted by index, for
// determinism). Interpolating every share rather than only threshold of
// them is what lets SecureMultiply open its masked product, whose sharing
// polynomial has degree 2(t-1) and so needs more than t points; the
// reference stepper never drops messages, so waiting for all N is simplest.
type reconstructOp struct {
	key       string
	threshold int

	id           string
	self         party.ID
	participants party.Set
	transport    protocol.Transport
	dispatcher   *protocol.Dispatcher
	storage      *store.ShareStorage

	isInitiator bool
	collected   []shamir.Share
	seen        map[party.ID]bool
	failed      error
	done        bool
	onComplete  func(field.Elem, error)
}

func (op *reconstructOp) ProtocolID() string { return op.id }

func (op *reconstructOp) Initialize(params protocol.InitParams) error {
	op.id = params.ProtocolID
	op.dispatcher = params.Dispatcher
	op.self = params.Self
	op.participants = params.Participants
	op.transport = params.Transport
	if op.storage == nil {
		op.storage = params.Storage
	}
	if op.isInitiator {
		op.seen = make(map[party.ID]bool, op.participants.Len())
	}
	return nil
}

func (op *reconstructOp) Handle(msg *protocol.Message, sender party.ID) error {
	if msg.IsCompletionMessage {
		return op.handleReply(msg, sender)
	}

	var key string
	if err := protocol.DecodePayload(msg.Payload, &key); err != nil {
		return err
	}
	sh, getErr := op.storage.MustGet(key)
	reply := reconstructAck{Index: int32(op.self), OK: getErr == nil}
	if getErr == nil {
		reply.Value = sh.Value
	} else {
		reply.Err = getErr.Error()
	}

	if op.isInitiator && msg.From == op.self {
		op.record(op.self, sh, getErr)
		return getErr
	}

	payload, err := protocol.EncodePayload(reply)
	if err != nil {
		return err
	}
	out := &protocol.Message{ProtocolID: op.id, Type: msg.Type, From: op.self, Round: msg.Round, Payload: payload, IsCompletionMessage: true}
	if err := op.transport.Send(out, msg.From); err != nil {
		return err
	}
	if op.dispatcher != nil {
		op.dispatcher.Remove(op.id)
	}
	return getErr
}

func (op *reconstructOp) handleReply(msg *protocol.Message, sender party.ID) error {
	if !op.isInitiator {
		return nil
	}
	var reply reconstructAck
	if err := protocol.DecodePayload(msg.Payload, &reply); err != nil {
		return err
	}
	var replyErr error
	if !reply.OK {
		replyErr = fmt.Errorf("mpc: agent %d reported: %s", sender, reply.Err)
	}
	op.record(sender, shamir.Share{Index: party.ID(reply.Index), Value: reply.Value}, replyErr)
	return nil
}

func (op *reconstructOp) record(id party.ID, sh shamir.Share, err error) {
	if op.done || op.seen[id] {
		return
	}
	op.seen[id] = true
	if err != nil {
		if op.failed == nil {
			op.failed = err
		}
	} else {
		op.collected = append(op.collected, sh)
	}
	if len(op.seen) < op.participants.Len() {
		return
	}
	op.done = true
	if op.dispatcher != nil {
		op.dispatcher.Remove(op.id)
	}
	if op.onComplete == nil {
		return
	}
	if op.failed != nil {
		op.onComplete(0, op.failed)
		return
	}
	sort.Slice(op.collected, func(i, j int) bool { return op.collected[i].Index < op.collected[j].Index })
	secret, err := shamir.Reconstruct(op.collected)
	op.onComplete(secret, err)
}

// Reconstruct opens the secret shared under key, gathering every
// participant's share and interpolating at x=0. onComplete fires once all
// replies are in.
func Reconstruct(ctx *Context, key string, onComplete func(field.Elem, error)) (string, error) {
	op := &reconstructOp{key: key, threshold: ctx.Threshold(), isInitiator: true, storage: ctx.Storage, onComplete: onComplete}
	id, err := ctx.Dispatcher.Start(op, protocol.InitParams{
		Transport:    ctx.Transport,
		Self:         ctx.Self,
		Participants: ctx.Participants,
	}, ctx.Round, "mpc-gather")
	if err != nil {
		return "", err
	}
	payload, err := protocol.EncodePayload(key)
	if err != nil {
		return "", err
	}
	msg := &protocol.Message{ProtocolID: id, Type: "mpc-gather", From: ctx.Self, Round: ctx.Round, Payload: payload}
	if err := ctx.Transport.Broadcast(msg); err != nil {
		return "", err
	}
	return id, nil
}
