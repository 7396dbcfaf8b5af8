package mpc

import (
	"fmt"

	"github.com/luxfi/pdcop/pkg/party"
	"github.com/luxfi/pdcop/pkg/protocol"
	"github.com/luxfi/pdcop/pkg/shamir"
	"github.com/luxfi/pdcop/pkg/store"
)

// broadcastOp implements the "identical request to every participant, each
// computes locally, acks, initiator waits for all N acks" shape shared by
// SecureAdd, SecureSub, SecureKnownSub, SecureInvert, ScalarMultiply,
// SecureCopyShare and the internal mask/finalize-mul/sum steps. One type
// plays both initiator and on-demand responder, mirroring
// pkg/protocol.MultiHandler in the teacher, which routes every round message
// of a session through one handler regardless of which party originated it.
type broadcastOp struct {
	req Request

	id           string
	self         party.ID
	participants party.Set
	transport    protocol.Transport
	dispatcher   *protocol.Dispatcher
	storage      *store.ShareStorage
	round        int

	isInitiator bool
	acked       map[party.ID]bool
	failed      error
	done        bool
	onComplete  func(output string, err error)
}

func (op *broadcastOp) ProtocolID() string { return op.id }

func (op *broadcastOp) Initialize(params protocol.InitParams) error {
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

func (op *broadcastOp) Handle(msg *protocol.Message, sender party.ID) error {
	if msg.IsCompletionMessage {
		return op.handleAck(msg, sender)
	}

	var req Request
	if err := protocol.DecodePayload(msg.Payload, &req); err != nil {
		return fmt.Errorf("mpc: decoding request for %q: %w", op.id, err)
	}

	val, computeErr := computeLocal(op.storage, op.self, req)
	if computeErr == nil {
		computeErr = op.storage.Store(req.Output, shamir.Share{Index: op.self, Value: val}, req.Tag)
	}

	if op.isInitiator && msg.From == op.self {
		op.recordAck(op.self, computeErr)
		return computeErr
	}

	ack := ackPayload{OK: computeErr == nil}
	if computeErr != nil {
		ack.Err = computeErr.Error()
	}
	payload, err := protocol.EncodePayload(ack)
	if err != nil {
		return err
	}
	reply := &protocol.Message{
		ProtocolID:          op.id,
		Type:                msg.Type,
		From:                op.self,
		Round:                msg.Round,
		Payload:              payload,
		IsCompletionMessage: true,
	}
	if err := op.transport.Send(reply, msg.From); err != nil {
		return err
	}
	if op.dispatcher != nil {
		op.dispatcher.Remove(op.id)
	}
	return computeErr
}

func (op *broadcastOp) handleAck(msg *protocol.Message, sender party.ID) error {
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

func (op *broadcastOp) recordAck(id party.ID, err error) {
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
		if op.failed != nil {
			op.onComplete("", op.failed)
		} else {
			op.onComplete(op.req.Output, nil)
		}
	}
}

// broadcastCompute launches a broadcastOp as initiator: starts it on the
// dispatcher, then broadcasts req to every participant (including self,
// which loops back through the transport's local callback per
// spec.md §4.4). onComplete fires once every participant has acked.
func broadcastCompute(ctx *Context, req Request, onComplete func(output string, err error)) (string, error) {
	op := &broadcastOp{req: req, isInitiator: true, round: ctx.Round, onComplete: onComplete, storage: ctx.Storage}
	id, err := ctx.Dispatcher.Start(op, protocol.InitParams{
		Transport:    ctx.Transport,
		Self:         ctx.Self,
		Participants: ctx.Participants,
	}, ctx.Round, "mpc")
	if err != nil {
		return "", err
	}
	payload, err := protocol.EncodePayload(req)
	if err != nil {
		return "", err
	}
	msg := &protocol.Message{ProtocolID: id, Type: "mpc", From: ctx.Self, Round: ctx.Round, Payload: payload}
	if err := ctx.Transport.Broadcast(msg); err != nil {
		return "", err
	}
	return id, nil
}
