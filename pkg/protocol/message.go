// Package protocol provides the dispatcher, transport contract, and wire
// message envelope shared by every sub-protocol (MPC primitives, huddle,
// barrier, round state machines). Grounded on
// github.com/luxfi/threshold/pkg/protocol.MultiHandler's message routing and
// CBOR-encoded round.Message.Content, generalized from that package's
// single-protocol-execution handler into the multi-instance dispatcher
// spec.md §4.4 calls for (many concurrent protocol instances per agent,
// not one).
package protocol

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/luxfi/pdcop/pkg/party"
)

// Message is the in-process wire envelope every sub-protocol sends and
// receives. No bytes-on-wire format is mandated by spec.md §6 since the
// transport is in-process, but messages are still routed through CBOR
// (as the teacher's MultiHandler does for round.Message.Content) so a
// dispatcher can log, diff, or replay payloads uniformly regardless of
// which primitive produced them.
type Message struct {
	// ProtocolID identifies the protocol instance this message belongs to;
	// globally unique per initiator invocation.
	ProtocolID string
	// Type is the short protocol-type tag used to find a responder factory
	// for unknown protocol ids (e.g. "mpc", "huddle", "barrier",
	// "pmaxsum-decide").
	Type string
	// From is the sending agent.
	From party.ID
	// Round is the DCOP round this message belongs to, used to detect
	// wrong-round deliveries.
	Round int
	// Payload is the CBOR-encoded, protocol-specific body.
	Payload []byte
	// IsCompletionMessage flags acks, so the dispatcher can drop (with a
	// warning) a completion arriving for an unknown id instead of
	// spawning a new, pointless responder.
	IsCompletionMessage bool
}

// EncodePayload CBOR-marshals v into a Message's Payload field.
func EncodePayload(v interface{}) ([]byte, error) {
	b, err := cbor.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshaling payload: %w", err)
	}
	return b, nil
}

// DecodePayload CBOR-unmarshals a Message's Payload field into v.
func DecodePayload(payload []byte, v interface{}) error {
	if err := cbor.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("protocol: unmarshaling payload: %w", err)
	}
	return nil
}
