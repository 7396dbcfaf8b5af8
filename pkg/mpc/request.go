package mpc

import "github.com/luxfi/pdcop/pkg/field"

// Request is the CBOR payload broadcast (or scattered) by an initiator to
// kick off one MPC primitive round. Every broadcast-shaped primitive
// (SecureAdd, SecureSub, SecureKnownSub, SecureInvert, ScalarMultiply,
// SecureCopyShare, and the internal "mask"/"finalize-mul"/"sum" steps used by
// SecureMultiply and SecureDotProduct) shares this one envelope, switching
// behavior on Kind; this mirrors the teacher's single Message.Content
// envelope in pkg/protocol/handler.go dispatching on a round type tag rather
// than growing one struct per message kind.
type Request struct {
	Kind    string      // which local computation to run, e.g. "add", "sub".
	Inputs  []string    // storage keys of the operand shares, in order.
	Output  string      // storage key to store the result share under.
	Tag     string      // tag applied when storing Output (for ClearByTag).
	Scalar  field.Elem  // public constant operand, when Kind needs one.
	Swapped bool        // for "known-sub": true means Output = Inputs[0] - Scalar.
}

// ackPayload is the completion message a responder (including the
// initiator's own self-addressed loopback) sends back once its local
// computation and store have finished.
type ackPayload struct {
	OK  bool
	Err string
}

// sharePayload is what ShareDistribution scatters: one personalized Shamir
// share per recipient. Sticky mirrors store.ShareStorage's sticky/tagged
// split for the one-time bootstrap secrets (r-key, PMGM's topology
// indicators) that must survive ClearNonSticky between rounds; Tag is
// ignored when Sticky is set.
type sharePayload struct {
	Index  int32
	Value  field.Elem
	Output string
	Tag    string
	Sticky bool
}

// reconstructAck is what a Reconstruct responder sends back: its own share
// of the value being opened.
type reconstructAck struct {
	Index int32
	Value field.Elem
	OK    bool
	Err   string
}
