package protocol

import (
	"encoding/hex"
	"fmt"
	"sync/atomic"

	"github.com/luxfi/pdcop/pkg/party"
	"github.com/zeebo/blake3"
)

// seq is a process-wide monotonically increasing counter folded into every
// generated protocol id so that two instances started in the same round by
// the same agent never collide.
var seq uint64

// NewID renders a protocol id as blake3(round, agent, kind, seq), per the
// design note in spec.md §9. seq is this process's own counter, so other
// participants cannot recompute the id; a responder learns it from the
// ProtocolID of the message that spawned it. The id is unique per initiator
// invocation.
func NewID(round int, self party.ID, kind string) string {
	n := atomic.AddUint64(&seq, 1)
	h := blake3.New()
	fmt.Fprintf(h, "round:%d|agent:%d|kind:%s|seq:%d", round, self, kind, n)
	sum := h.Sum(nil)
	return kind + "-" + hex.EncodeToString(sum[:8])
}

// DeriveID renders a deterministic sub-protocol id from a parent id and a
// locally-known suffix, so every participant can compute the same id for a
// sub-protocol (e.g. one SecureMultiply inside a SecureFindMin tournament)
// without any extra coordination message.
func DeriveID(parentID, suffix string) string {
	h := blake3.New()
	fmt.Fprintf(h, "parent:%s|suffix:%s", parentID, suffix)
	sum := h.Sum(nil)
	return parentID + "/" + suffix + "-" + hex.EncodeToString(sum[:4])
}
