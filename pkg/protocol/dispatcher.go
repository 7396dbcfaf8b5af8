package protocol

import (
	"fmt"

	"github.com/luxfi/pdcop/internal/xlog"
	"github.com/luxfi/pdcop/pkg/party"
	"github.com/luxfi/pdcop/pkg/store"
)

// Instance is anything the dispatcher can route messages to: MPC
// primitives, the huddle protocol, the barrier, and the per-round state
// machines all implement it. This is the "tagged state machine with a
// handle method" shape spec.md §9 recommends as the natural, most portable
// port of the source's callback chains.
type Instance interface {
	// ProtocolID returns this instance's id, assigned during Initialize.
	ProtocolID() string
	// Initialize wires the instance to its runtime context. Called once,
	// either by the code that starts an initiator or by the dispatcher when
	// constructing a responder on demand.
	Initialize(params InitParams) error
	// Handle processes one incoming message from sender. Implementations
	// must not re-enter the dispatcher for their own inbound messages
	// (spec.md §4.4): further sends to other agents triggered from within
	// Handle are queued on the transport, while a self-addressed send is
	// delivered synchronously through the transport's local callback and so
	// re-enters Deliver before Send returns.
	Handle(msg *Message, sender party.ID) error
}

// InitParams is the uniform plumbing every instance receives on
// initialization: transport, the owning dispatcher (so an instance may
// register further sub-protocols), the local agent id, and the
// participant set for this computation. Protocol-specific parameters
// (prime, RNG, share storage, round number, input secret ids, ...) are
// carried on the concrete Instance type itself, constructed by its caller
// before Start is invoked — a params map would only erase the static
// typing Go already gives us for free.
type InitParams struct {
	Transport    Transport
	Dispatcher   *Dispatcher
	Self         party.ID
	Participants party.Set
	ProtocolID   string // empty for a fresh initiator; Start fills it in.
	// Storage carries the agent's share storage through to responders
	// constructed on demand by the dispatcher, which otherwise have no way
	// to reach it. Initiators, already holding a reference to the same
	// storage, may ignore this field.
	Storage *store.ShareStorage
}

// Factory constructs a zero-value Instance ready for Initialize, used by
// the dispatcher to build a responder on demand when a message arrives for
// an unknown protocol id of a registered type.
type Factory func() Instance

type registration struct {
	initiator Factory
	responder Factory
}

// Dispatcher is the per-agent registry of active protocol instances
// described in spec.md §4.4: it routes inbound messages to the right
// instance, creates responders on demand, and supports the bulk cleanup the
// agent orchestrator performs between rounds.
type Dispatcher struct {
	self      party.ID
	transport Transport
	storage   *store.ShareStorage
	active    map[string]Instance
	factories map[string]registration
	log       *xlog.Logger
}

// New returns an empty Dispatcher for agent self, routing responder-side
// sends through transport and giving on-demand responders access to
// storage (the same ShareStorage the agent itself reads and writes).
func New(self party.ID, transport Transport, storage *store.ShareStorage, log *xlog.Logger) *Dispatcher {
	if log == nil {
		log = xlog.Nop()
	}
	return &Dispatcher{
		self:      self,
		transport: transport,
		storage:   storage,
		active:    make(map[string]Instance),
		factories: make(map[string]registration),
		log:       log,
	}
}

// Register associates a protocol type tag with optional initiator and
// responder factories. A nil responder factory means messages arriving for
// an unknown id of that type are dropped with a warning, matching
// spec.md §4.4.
func (d *Dispatcher) Register(protoType string, initiator, responder Factory) {
	d.factories[protoType] = registration{initiator: initiator, responder: responder}
}

// Start registers instance as active, assigning it a protocol id if params
// doesn't already carry one, then calls Initialize.
func (d *Dispatcher) Start(instance Instance, params InitParams, round int, kind string) (string, error) {
	if params.ProtocolID == "" {
		params.ProtocolID = NewID(round, params.Self, kind)
	}
	params.Dispatcher = d
	if err := instance.Initialize(params); err != nil {
		return "", fmt.Errorf("protocol: starting %s: %w", kind, err)
	}
	d.active[params.ProtocolID] = instance
	return params.ProtocolID, nil
}

// Deliver routes msg to the instance identified by msg.ProtocolID. If no
// such instance is active and a responder factory is registered for
// msg.Type, a fresh responder is constructed, initialized, registered, and
// the message is delivered to it. A completion message targeting an
// unknown id is always dropped (dead-letter), never spawns a responder.
func (d *Dispatcher) Deliver(msg *Message, sender party.ID) error {
	if inst, ok := d.active[msg.ProtocolID]; ok {
		return inst.Handle(msg, sender)
	}

	if msg.IsCompletionMessage {
		d.log.Warnf("dispatcher: dropping completion message for unknown protocol id %q (type %s) from agent %d", msg.ProtocolID, msg.Type, sender)
		return nil
	}

	reg, ok := d.factories[msg.Type]
	if !ok || reg.responder == nil {
		d.log.Warnf("dispatcher: no responder factory for protocol type %q, dropping message for id %q from agent %d", msg.Type, msg.ProtocolID, sender)
		return nil
	}

	responder := reg.responder()
	var participants party.Set
	if d.transport != nil {
		participants = d.transport.Participants()
	}
	params := InitParams{
		Self:         d.self,
		Transport:    d.transport,
		Participants: participants,
		Storage:      d.storage,
		ProtocolID:   msg.ProtocolID,
	}
	if _, err := d.Start(responder, params, msg.Round, msg.Type); err != nil {
		return fmt.Errorf("protocol: constructing responder for %q: %w", msg.ProtocolID, err)
	}
	return responder.Handle(msg, sender)
}

// Remove explicitly drops a completed instance.
func (d *Dispatcher) Remove(protocolID string) {
	delete(d.active, protocolID)
}

// ClearAll drops every active instance, used by the agent orchestrator's
// inter-round cleanup (spec.md §4.11).
func (d *Dispatcher) ClearAll() {
	d.active = make(map[string]Instance)
}

// Active returns the number of currently active instances, used by tests
// to assert that cleanup actually ran.
func (d *Dispatcher) Active() int {
	return len(d.active)
}

// Log returns the dispatcher's logger, for instances that want to report
// non-fatal conditions (e.g. a wrong-phase callback) at debug level.
func (d *Dispatcher) Log() *xlog.Logger {
	return d.log
}
