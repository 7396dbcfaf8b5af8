package mpc_test

import (
	"crypto/rand"
	"fmt"
	"io"
	mathrand "math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/pdcop/internal/xlog"
	"github.com/luxfi/pdcop/pkg/field"
	"github.com/luxfi/pdcop/pkg/mpc"
	"github.com/luxfi/pdcop/pkg/party"
	"github.com/luxfi/pdcop/pkg/protocol"
	"github.com/luxfi/pdcop/pkg/store"
)

// network is a synchronous, single-threaded reference transport used only
// by this package's tests: sends to other agents queue for later delivery,
// sends to self invoke the local callback immediately, matching the
// fast-path contract pkg/protocol.Transport documents. A full discrete-event
// stepper with proper per-round ordering lives in pkg/sim; this harness
// exists so pkg/mpc's primitives can be tested in isolation from it.
type network struct {
	queue       []queued
	dispatchers map[party.ID]*protocol.Dispatcher
}

type queued struct {
	to  party.ID
	msg *protocol.Message
}

func (n *network) drain(t *testing.T) {
	t.Helper()
	for len(n.queue) > 0 {
		d := n.queue[0]
		n.queue = n.queue[1:]
		disp := n.dispatchers[d.to]
		require.NotNil(t, disp, "no dispatcher registered for agent %d", d.to)
		require.NoError(t, disp.Deliver(d.msg, d.msg.From))
	}
}

type testTransport struct {
	self         party.ID
	participants party.Set
	net          *network
	local        func(msg *protocol.Message)
}

func (tt *testTransport) LocalID() party.ID                              { return tt.self }
func (tt *testTransport) Neighbors() party.Set                           { return tt.participants.Without(tt.self) }
func (tt *testTransport) Participants() party.Set                        { return tt.participants }
func (tt *testTransport) SetLocalCallback(fn func(msg *protocol.Message)) { tt.local = fn }

func (tt *testTransport) Send(msg *protocol.Message, recipient party.ID) error {
	if recipient == tt.self && tt.local != nil {
		tt.local(msg)
		return nil
	}
	tt.net.queue = append(tt.net.queue, queued{to: recipient, msg: msg})
	return nil
}

func (tt *testTransport) Multicast(msg *protocol.Message, ids party.Set) error {
	for _, id := range ids {
		if err := tt.Send(msg, id); err != nil {
			return err
		}
	}
	return nil
}

func (tt *testTransport) Broadcast(msg *protocol.Message) error {
	return tt.Multicast(msg, tt.participants)
}

// harness builds n agents, each with its own storage, dispatcher and
// mpc.Context, wired to a shared network.
type harness struct {
	net  *network
	ctxs map[party.ID]*mpc.Context
	ids  party.Set
}

func newHarness(t *testing.T, n int) *harness {
	t.Helper()
	ids := make([]party.ID, n)
	for i := 0; i < n; i++ {
		ids[i] = party.ID(i + 1)
	}
	set := party.NewSet(ids...)

	net := &network{dispatchers: make(map[party.ID]*protocol.Dispatcher)}
	h := &harness{net: net, ctxs: make(map[party.ID]*mpc.Context), ids: set}

	for _, id := range ids {
		storage := store.New()
		tt := &testTransport{self: id, participants: set, net: net}
		disp := protocol.New(id, tt, storage, xlog.Nop())
		mpc.RegisterResponders(disp)
		tt.SetLocalCallback(func(msg *protocol.Message) {
			_ = disp.Deliver(msg, msg.From)
		})
		net.dispatchers[id] = disp
		h.ctxs[id] = &mpc.Context{
			Transport:    tt,
			Dispatcher:   disp,
			Storage:      storage,
			Self:         id,
			Participants: set,
			Round:        1,
			RNG:          rand.Reader,
		}
	}
	return h
}

// shareSecret runs ShareDistribution from the perspective of agent ids[0]
// and drains the network until every agent has stored its share under key.
func (h *harness) shareSecret(t *testing.T, secret field.Elem, key, tag string) {
	t.Helper()
	initiator := h.ids[0]
	done := false
	_, err := mpc.ShareDistribution(h.ctxs[initiator], secret, key, tag, func(err error) {
		require.NoError(t, err)
		done = true
	})
	require.NoError(t, err)
	h.net.drain(t)
	require.True(t, done, "ShareDistribution never completed")
}

// reconstructFrom runs Reconstruct from the perspective of agent id and
// drains the network until it completes, returning the opened value.
func (h *harness) reconstructFrom(t *testing.T, id party.ID, key string) field.Elem {
	t.Helper()
	var got field.Elem
	var gotErr error
	done := false
	_, err := mpc.Reconstruct(h.ctxs[id], key, func(v field.Elem, err error) {
		got, gotErr = v, err
		done = true
	})
	require.NoError(t, err)
	h.net.drain(t)
	require.True(t, done, "Reconstruct never completed")
	require.NoError(t, gotErr)
	return got
}

func randomFieldElem(t *testing.T, rng io.Reader) field.Elem {
	t.Helper()
	var buf [8]byte
	_, err := io.ReadFull(rng, buf[:])
	require.NoError(t, err)
	var v uint64
	for _, b := range buf {
		v = (v << 8) | uint64(b)
	}
	return field.Elem(v % field.Prime)
}

// bootstrapMaskingSecret shares a fresh random field element under rKey,
// the "r-key" sticky bootstrap secret spec.md §3 describes, used to mask
// every SecureMultiply in these tests.
func (h *harness) bootstrapMaskingSecret(t *testing.T, rKey string) {
	t.Helper()
	r := randomFieldElem(t, rand.Reader)
	h.shareSecret(t, r, rKey, "bootstrap")
}

// bootstrapMaskingSecretWithBits shares a fresh random r under rKey exactly
// like bootstrapMaskingSecret, and additionally shares each of its 31 bits
// under rKeyBits(i), the r-key[0..30] companion bootstrap SecureLSB and
// SecureCompare need.
func (h *harness) bootstrapMaskingSecretWithBits(t *testing.T, rKey string) []string {
	t.Helper()
	r := randomFieldElem(t, rand.Reader)
	h.shareSecret(t, r, rKey, "bootstrap")

	bits := field.Bits(r, 31)
	keys := make([]string, 31)
	for i, b := range bits {
		keys[i] = rKeyBitKey(rKey, i)
		h.shareSecret(t, b, keys[i], "bootstrap")
	}
	return keys
}

func rKeyBitKey(rKey string, i int) string {
	return fmt.Sprintf("%s[%d]", rKey, i)
}

func TestShareDistributionAndReconstructRoundTrip(t *testing.T) {
	h := newHarness(t, 5)
	secret := field.New(424242)
	h.shareSecret(t, secret, "x", "t")

	for _, id := range h.ids {
		got := h.reconstructFrom(t, id, "x")
		require.Equal(t, secret, got, "agent %d reconstructed the wrong value", id)
	}
}

func TestSecureAdd(t *testing.T) {
	h := newHarness(t, 4)
	h.shareSecret(t, field.New(10), "a", "t")
	h.shareSecret(t, field.New(32), "b", "t")

	initiator := h.ids[0]
	done := false
	_, err := mpc.SecureAdd(h.ctxs[initiator], "a", "b", "sum", "t", func(_ string, err error) {
		require.NoError(t, err)
		done = true
	})
	require.NoError(t, err)
	h.net.drain(t)
	require.True(t, done)

	got := h.reconstructFrom(t, initiator, "sum")
	require.Equal(t, field.New(42), got)
}

func TestSecureMultiply(t *testing.T) {
	h := newHarness(t, 4)
	h.bootstrapMaskingSecret(t, "r-key")
	h.shareSecret(t, field.New(6), "a", "t")
	h.shareSecret(t, field.New(7), "b", "t")

	initiator := h.ids[0]
	done := false
	_, err := mpc.SecureMultiply(h.ctxs[initiator], "a", "b", "r-key", "prod", "t", func(err error) {
		require.NoError(t, err)
		done = true
	})
	require.NoError(t, err)
	h.net.drain(t)
	require.True(t, done)

	got := h.reconstructFrom(t, initiator, "prod")
	require.Equal(t, field.New(42), got)
}

func TestSecureDotProduct(t *testing.T) {
	h := newHarness(t, 4)
	h.bootstrapMaskingSecret(t, "r-key")
	h.shareSecret(t, field.New(1), "a0", "t")
	h.shareSecret(t, field.New(2), "a1", "t")
	h.shareSecret(t, field.New(3), "b0", "t")
	h.shareSecret(t, field.New(4), "b1", "t")

	initiator := h.ids[0]
	done := false
	err := mpc.SecureDotProduct(h.ctxs[initiator], []string{"a0", "a1"}, []string{"b0", "b1"}, "r-key", "dot", "t", func(err error) {
		require.NoError(t, err)
		done = true
	})
	require.NoError(t, err)
	h.net.drain(t)
	require.True(t, done)

	// 1*3 + 2*4 = 11
	require.Equal(t, field.New(11), h.reconstructFrom(t, initiator, "dot"))
}

func TestSecureIsZero(t *testing.T) {
	h := newHarness(t, 4)
	h.bootstrapMaskingSecret(t, "r-key")
	h.shareSecret(t, field.New(0), "zero", "t")
	h.shareSecret(t, field.New(17), "nonzero", "t")

	initiator := h.ids[0]

	var doneZero bool
	require.NoError(t, mpc.SecureIsZero(h.ctxs[initiator], "zero", "r-key", "isz-zero", "t", func(err error) {
		require.NoError(t, err)
		doneZero = true
	}))
	h.net.drain(t)
	require.True(t, doneZero)
	require.Equal(t, field.New(1), h.reconstructFrom(t, initiator, "isz-zero"))

	var doneNonZero bool
	require.NoError(t, mpc.SecureIsZero(h.ctxs[initiator], "nonzero", "r-key", "isz-nonzero", "t", func(err error) {
		require.NoError(t, err)
		doneNonZero = true
	}))
	h.net.drain(t)
	require.True(t, doneNonZero)
	require.Equal(t, field.New(0), h.reconstructFrom(t, initiator, "isz-nonzero"))
}

func TestSecureCompare(t *testing.T) {
	h := newHarness(t, 4)
	rBits := h.bootstrapMaskingSecretWithBits(t, "r-key")
	h.shareSecret(t, field.New(3), "small", "t")
	h.shareSecret(t, field.New(9), "big", "t")

	initiator := h.ids[0]

	var doneLT bool
	require.NoError(t, mpc.SecureCompare(h.ctxs[initiator], "small", "big", "r-key", rBits, "lt", "t", func(err error) {
		require.NoError(t, err)
		doneLT = true
	}))
	h.net.drain(t)
	require.True(t, doneLT)
	require.Equal(t, field.New(1), h.reconstructFrom(t, initiator, "lt"))

	var doneGE bool
	require.NoError(t, mpc.SecureCompare(h.ctxs[initiator], "big", "small", "r-key", rBits, "ge", "t", func(err error) {
		require.NoError(t, err)
		doneGE = true
	}))
	h.net.drain(t)
	require.True(t, doneGE)
	require.Equal(t, field.New(0), h.reconstructFrom(t, initiator, "ge"))
}

func TestSecureFindMin(t *testing.T) {
	h := newHarness(t, 4)
	rBits := h.bootstrapMaskingSecretWithBits(t, "r-key")

	values := []field.Elem{field.New(9), field.New(2), field.New(7), field.New(5), field.New(11)}
	keys := make([]string, len(values))
	for i, v := range values {
		keys[i] = fmt.Sprintf("fm-%d", i)
		h.shareSecret(t, v, keys[i], "t")
	}

	initiator := h.ids[0]
	done := false
	require.NoError(t, mpc.SecureFindMin(h.ctxs[initiator], keys, "r-key", rBits, "min", "min-idx", "t", func(err error) {
		require.NoError(t, err)
		done = true
	}))
	h.net.drain(t)
	require.True(t, done)
	require.Equal(t, field.New(2), h.reconstructFrom(t, initiator, "min"))
	require.Equal(t, field.New(1), h.reconstructFrom(t, initiator, "min-idx"))
}

func TestSecureFindMax(t *testing.T) {
	h := newHarness(t, 4)
	rBits := h.bootstrapMaskingSecretWithBits(t, "r-key")

	values := []field.Elem{field.New(9), field.New(2), field.New(7), field.New(5), field.New(11)}
	keys := make([]string, len(values))
	for i, v := range values {
		keys[i] = fmt.Sprintf("fx-%d", i)
		h.shareSecret(t, v, keys[i], "t")
	}

	initiator := h.ids[0]
	done := false
	require.NoError(t, mpc.SecureFindMax(h.ctxs[initiator], keys, "r-key", rBits, "max", "max-idx", "t", func(err error) {
		require.NoError(t, err)
		done = true
	}))
	h.net.drain(t)
	require.True(t, done)
	require.Equal(t, field.New(11), h.reconstructFrom(t, initiator, "max"))
	require.Equal(t, field.New(4), h.reconstructFrom(t, initiator, "max-idx"))
}

// TestSecureMultiplyE2 is spec.md §8's E2 worked example: SecureMultiply on
// N=5 agents over field.Prime (2^31-1), A=7, B=11, with the masking secret r
// drawn from a fixed seed rather than crypto/rand, and every agent's
// reconstructed output checked, not just the initiator's.
func TestSecureMultiplyE2(t *testing.T) {
	h := newHarness(t, 5)
	require.Equal(t, uint64(1<<31-1), uint64(field.Prime))

	seeded := mathrand.New(mathrand.NewSource(20260730))
	r := randomFieldElem(t, seeded)
	h.shareSecret(t, r, "r-key", "bootstrap")

	h.shareSecret(t, field.New(7), "a", "t")
	h.shareSecret(t, field.New(11), "b", "t")

	initiator := h.ids[0]
	done := false
	_, err := mpc.SecureMultiply(h.ctxs[initiator], "a", "b", "r-key", "prod", "t", func(err error) {
		require.NoError(t, err)
		done = true
	})
	require.NoError(t, err)
	h.net.drain(t)
	require.True(t, done)

	for _, id := range h.ids {
		got := h.reconstructFrom(t, id, "prod")
		require.Equal(t, field.New(77), got, "agent %d reconstructed the wrong product", id)
	}
}
