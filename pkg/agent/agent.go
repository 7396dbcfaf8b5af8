// Package agent implements the per-agent orchestrator of spec.md §4.11:
// the round loop that seeds and drives PDSA/PMGM/PMAXSUM, rendezvouses at
// a barrier between rounds, and purges non-sticky state so a simulation of
// thousands of sequential rounds does not grow without bound. Grounded on
// the teacher's session-lifecycle shape (protocols/lss/keygen's
// round1/round2/round3 handler threading a single session struct through
// callbacks), generalized from a fixed three-round handshake to this
// module's open-ended, externally-stepped round loop.
package agent

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"runtime"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/pdcop/internal/xlog"
	"github.com/luxfi/pdcop/pkg/barrier"
	"github.com/luxfi/pdcop/pkg/fault"
	"github.com/luxfi/pdcop/pkg/field"
	"github.com/luxfi/pdcop/pkg/mpc"
	"github.com/luxfi/pdcop/pkg/paillier"
	"github.com/luxfi/pdcop/pkg/party"
	"github.com/luxfi/pdcop/pkg/protocol"
	"github.com/luxfi/pdcop/pkg/round"
	"github.com/luxfi/pdcop/pkg/store"
)

// Algorithm selects which round protocol an Agent drives.
type Algorithm int

const (
	PDSA Algorithm = iota
	PMGM
	PMAXSUM
)

func (a Algorithm) String() string {
	switch a {
	case PDSA:
		return "pdsa"
	case PMGM:
		return "pmgm"
	case PMAXSUM:
		return "pmaxsum"
	default:
		return fmt.Sprintf("Algorithm(%d)", int(a))
	}
}

// rKeyBits is the number of bits r-key is decomposed into for the MPC
// comparison primitives, covering the full range of Prime (a 31-bit prime).
const rKeyBits = 31

// Config describes one agent's static parameters for a single DCOP
// iteration, fixed for the iteration's lifetime.
type Config struct {
	Algorithm    Algorithm
	BaseSeed     uint64
	MaxRounds    int
	InitialValue int

	// Stochastic is PDSA's per-round update probability; unused otherwise.
	Stochastic float64
	// LastRound is PMAXSUM's Q/R subround count; unused otherwise.
	LastRound int
	// PaillierBits sizes PMAXSUM's two key pairs; unused otherwise.
	PaillierBits int
}

// Agent is the per-agent orchestrator described in spec.md §4.11. One
// Agent is constructed per participant; pkg/sim steps every agent's
// PreStep/Deliver/PostStep in the cooperative order spec.md §5 describes,
// running PreStep and PostStep of different agents concurrently and
// Deliver sequentially.
type Agent struct {
	id           party.ID
	participants party.Set
	transport    protocol.Transport
	dispatcher   *protocol.Dispatcher
	storage      *store.ShareStorage
	costs        round.CostSource
	log          *xlog.Logger
	cfg          Config

	algoRNG   *rand.Rand
	cryptoRNG *ctrReader

	keys   *paillier.KeyManager
	eKeyID string
	fKeyID string

	rKey  string
	rBits []string

	phase            lifecyclePhase
	bootstrapStarted bool

	round     int
	value     int
	activeSig round.Round
	barrier   *barrier.Barrier
	stopped   bool
	lastFault error
}

type lifecyclePhase int

const (
	phaseBootstrapping lifecyclePhase = iota
	phaseRunning
	phaseDone
)

// New constructs an Agent for self, wired to transport, sharing the
// process-wide Paillier key manager keys (required, and populated by this
// call, only when cfg.Algorithm is PMAXSUM — spec.md §5's sole shared-state
// exception).
func New(self party.ID, participants party.Set, transport protocol.Transport, costs round.CostSource, keys *paillier.KeyManager, log *xlog.Logger, cfg Config) *Agent {
	if log == nil {
		log = xlog.Nop()
	}
	log = log.With(fmt.Sprintf("agent %d", self))
	storage := store.New()
	dispatcher := protocol.New(self, transport, storage, log)
	mpc.RegisterResponders(dispatcher)
	if cfg.Algorithm == PMAXSUM {
		round.RegisterPMAXSUMResponders(dispatcher, keys)
	}

	a := &Agent{
		id: self, participants: participants,
		transport: transport, dispatcher: dispatcher, storage: storage,
		costs: costs, log: log, cfg: cfg,
		keys:   keys,
		eKeyID: round.EKeyID(self),
		fKeyID: round.FKeyID(self),
		rKey:   "r-key",
		value:  cfg.InitialValue,
		phase:  phaseBootstrapping,
	}
	a.algoRNG = rand.New(rand.NewSource(deriveSeed(cfg.BaseSeed, self, "algorithm")))
	a.cryptoRNG = newCTRReader(deriveKey(cfg.BaseSeed, self, "crypto"))
	a.rBits = make([]string, rKeyBits)
	for i := range a.rBits {
		a.rBits[i] = fmt.Sprintf("%s[%d]", a.rKey, i)
	}
	return a
}

// ID returns the agent's participant identity.
func (a *Agent) ID() party.ID { return a.id }

// Value returns the agent's current selected value.
func (a *Agent) Value() int { return a.value }

// Round returns the agent's current round counter.
func (a *Agent) Round() int { return a.round }

// Done reports whether the agent has stopped, either because it reached
// cfg.MaxRounds or because a Fault halted it.
func (a *Agent) Done() bool { return a.stopped }

// Err returns the Fault that stopped the agent, if any.
func (a *Agent) Err() error { return a.lastFault }

func (a *Agent) ctx() *mpc.Context {
	return &mpc.Context{
		Transport: a.transport, Dispatcher: a.dispatcher, Storage: a.storage,
		Self: a.id, Participants: a.participants, Round: a.round, RNG: a.cryptoRNG,
	}
}

// PreStep is the scheduler's (a) hook: it drives bootstrap to completion,
// then (once running) seeds a fresh barrier and round protocol whenever
// neither is already in flight (spec.md §4.11 steps 1-2).
func (a *Agent) PreStep() {
	if a.stopped {
		return
	}
	switch a.phase {
	case phaseBootstrapping:
		a.stepBootstrap()
	case phaseRunning:
		a.stepRunning()
	}
}

// Deliver is the scheduler's (b) hook: route one inbound message to the
// agent's dispatcher.
func (a *Agent) Deliver(msg *protocol.Message, sender party.ID) error {
	if a.stopped {
		return nil
	}
	if err := a.dispatcher.Deliver(msg, sender); err != nil {
		a.fail(err)
	}
	return nil
}

// PostStep is the scheduler's (c) hook. Every state advance in this module
// happens from completion callbacks fired during Deliver, so PostStep has
// nothing of its own to do; it exists to keep the pre-step/inbox/post-step
// shape spec.md §5 names explicit at the call site.
func (a *Agent) PostStep() {}

func (a *Agent) stepRunning() {
	if a.cfg.MaxRounds > 0 && a.round >= a.cfg.MaxRounds {
		a.phase = phaseDone
		a.stopped = true
		return
	}
	if a.activeSig != nil || a.barrier != nil {
		return
	}
	a.startRound()
}

func (a *Agent) startRound() {
	b, err := barrier.Register(a.transport, a.dispatcher, a.id, a.participants, a.round, a.onBarrierComplete)
	if err != nil {
		a.fail(fmt.Errorf("registering barrier: %w", err))
		return
	}
	a.barrier = b

	r, err := a.newRound()
	if err != nil {
		a.fail(err)
		return
	}
	a.activeSig = r
	if err := r.Start(a.onRoundComplete); err != nil {
		a.fail(fmt.Errorf("starting round: %w", err))
	}
}

func (a *Agent) newRound() (round.Round, error) {
	ctx := a.ctx()
	switch a.cfg.Algorithm {
	case PDSA:
		return round.NewPDSA(ctx, a.costs, a.algoRNG, a.rKey, a.rBits, a.value, a.cfg.Stochastic), nil
	case PMGM:
		return round.NewPMGM(ctx, a.costs, a.rKey, a.rBits, a.value), nil
	case PMAXSUM:
		if a.cfg.LastRound <= 0 {
			return nil, fmt.Errorf("agent: PMAXSUM requires LastRound > 0")
		}
		return round.NewPMAXSUM(ctx, a.costs, a.keys, a.eKeyID, a.fKeyID, a.value, a.cfg.LastRound), nil
	default:
		return nil, fmt.Errorf("agent: unknown algorithm %v", a.cfg.Algorithm)
	}
}

func (a *Agent) onRoundComplete(newValue int, err error) {
	if err != nil {
		a.fail(fmt.Errorf("round %d: %w", a.round, err))
		return
	}
	a.value = newValue
	a.activeSig = nil
	if a.barrier == nil {
		a.fail(fmt.Errorf("round %d completed with no barrier pending", a.round))
		return
	}
	if err := a.barrier.Announce(a.transport, a.round); err != nil {
		a.fail(fmt.Errorf("announcing barrier for round %d: %w", a.round, err))
	}
}

func (a *Agent) onBarrierComplete(err error) {
	if err != nil {
		a.fail(fmt.Errorf("barrier for round %d: %w", a.round, err))
		return
	}
	a.barrier = nil
	a.storage.ClearNonSticky()
	a.dispatcher.ClearAll()
	a.round++
}

func (a *Agent) fail(err error) {
	if a.stopped {
		return
	}
	protocolID := ""
	f := fault.New(int(a.id), a.round, protocolID, err)
	a.lastFault = f
	a.stopped = true
	a.phase = phaseDone
	a.log.Warnf("stopping: %v", f)
}

// Reset performs the deep cleanup spec.md §4.11 requires between entire
// DCOP problem instances: drop every share (sticky included), drop every
// protocol instance, forget the transport, and hint the garbage collector,
// so running many iterations back to back does not grow memory
// unboundedly. The Agent is unusable after Reset; construct a fresh one for
// the next iteration.
func (a *Agent) Reset() {
	a.storage.ClearAll()
	a.dispatcher.ClearAll()
	a.transport = nil
	a.activeSig = nil
	a.barrier = nil
	runtime.GC()
}

// --- bootstrap: sticky r-key + bit shares, topology indicators (PMGM), and
// per-agent Paillier key pairs (PMAXSUM) registered into the shared
// KeyManager. Every agent calls this identically; which side originates
// each distribution is decided deterministically (lowest participant id
// for r-key, lower-of-pair for topology) so only one side of each exchange
// ever sends, while every side — including originators, via the
// synchronous local-callback fast path — ends up satisfying bootstrapReady().

func (a *Agent) stepBootstrap() {
	if !a.bootstrapStarted {
		a.bootstrapStarted = true
		if err := a.startBootstrap(); err != nil {
			a.fail(fmt.Errorf("bootstrap: %w", err))
			return
		}
	}
	if a.bootstrapReady() {
		a.phase = phaseRunning
	}
}

func (a *Agent) startBootstrap() error {
	ctx := a.ctx()

	if a.isLowest() {
		r := field.New(int64(a.cryptoRNG.drawUint32()))
		if _, err := mpc.StickyShareDistribution(ctx, r, a.rKey, func(err error) {
			if err != nil {
				a.fail(fmt.Errorf("bootstrap: distributing r-key: %w", err))
			}
		}); err != nil {
			return fmt.Errorf("distributing r-key: %w", err)
		}
		bits := field.Bits(r, rKeyBits)
		if err := mpc.StickyVectorShareDistribution(ctx, bits, a.rKey, func(err error) {
			if err != nil {
				a.fail(fmt.Errorf("bootstrap: distributing r-key bits: %w", err))
			}
		}); err != nil {
			return fmt.Errorf("distributing r-key bits: %w", err)
		}
	}

	if a.cfg.Algorithm == PMGM {
		if err := round.BootstrapTopology(ctx, a.costs, func(err error) {
			if err != nil {
				a.fail(fmt.Errorf("bootstrap: topology: %w", err))
			}
		}); err != nil {
			return fmt.Errorf("bootstrapping topology: %w", err)
		}
	}

	if a.cfg.Algorithm == PMAXSUM {
		if err := a.generatePaillierKeys(); err != nil {
			return fmt.Errorf("generating Paillier keys: %w", err)
		}
	}

	return nil
}

func (a *Agent) isLowest() bool {
	for _, p := range a.participants {
		if p < a.id {
			return false
		}
	}
	return true
}

func (a *Agent) bootstrapReady() bool {
	if !a.storage.Has(a.rKey) {
		return false
	}
	for _, k := range a.rBits {
		if !a.storage.Has(k) {
			return false
		}
	}
	if a.cfg.Algorithm == PMGM {
		for _, j := range a.participants {
			if j == a.id {
				continue
			}
			if !a.storage.Has(round.NKey(a.id, j)) {
				return false
			}
		}
	}
	if a.cfg.Algorithm == PMAXSUM {
		if _, err := a.keys.PublicKey(a.eKeyID); err != nil {
			return false
		}
		if _, err := a.keys.PublicKey(a.fKeyID); err != nil {
			return false
		}
	}
	return true
}

// generatePaillierKeys runs this agent's two independent keygens (E-key,
// F-key) concurrently via an errgroup, grounded on spec.md §4 DOMAIN
// STACK's instruction to fan independent per-agent CPU-bound work out this
// way, then registers both into the shared KeyManager. Each keygen draws
// from its own HKDF-derived stream (rather than sharing a.cryptoRNG across
// goroutines, since cipher.Stream is not safe for concurrent use).
func (a *Agent) generatePaillierKeys() error {
	bits := a.cfg.PaillierBits
	if bits <= 0 {
		bits = 256
	}
	eRNG := newCTRReader(deriveKey(a.cfg.BaseSeed, a.id, "paillier-e"))
	fRNG := newCTRReader(deriveKey(a.cfg.BaseSeed, a.id, "paillier-f"))

	var g errgroup.Group
	var ePriv, fPriv *paillier.PrivateKey
	g.Go(func() error {
		priv, err := paillier.GenerateKeyPair(bits, eRNG)
		if err != nil {
			return err
		}
		ePriv = priv
		return nil
	})
	g.Go(func() error {
		priv, err := paillier.GenerateKeyPair(bits, fRNG)
		if err != nil {
			return err
		}
		fPriv = priv
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	a.keys.Register(a.eKeyID, ePriv)
	a.keys.Register(a.fKeyID, fPriv)
	return nil
}

// --- deterministic, seed-derived PRNG streams (spec.md §5): algoRNG via
// math/rand seeded from an HKDF-derived int64, cryptoRNG via AES-256-CTR
// keyed by a separate HKDF-derived 32-byte key, so the two streams can
// never accidentally correlate for adjacent agent ids even though both
// trace back to the same baseSeed.

func deriveSeed(baseSeed uint64, id party.ID, purpose string) int64 {
	var buf [8]byte
	if _, err := hkdfReader(baseSeed, id, purpose).Read(buf[:]); err != nil {
		panic(fmt.Sprintf("agent: deriving %s seed for agent %d: %v", purpose, id, err))
	}
	return int64(binary.BigEndian.Uint64(buf[:]))
}

func deriveKey(baseSeed uint64, id party.ID, purpose string) [32]byte {
	var key [32]byte
	if _, err := hkdfReader(baseSeed, id, purpose).Read(key[:]); err != nil {
		panic(fmt.Sprintf("agent: deriving %s key for agent %d: %v", purpose, id, err))
	}
	return key
}

// hkdfReader derives a bounded pseudorandom stream from (baseSeed, id,
// purpose) via HKDF-SHA256, per spec.md §4 DOMAIN STACK's instruction to
// use golang.org/x/crypto/hkdf for seed derivation rather than naive
// addition of agent id into the seed.
func hkdfReader(baseSeed uint64, id party.ID, purpose string) io.Reader {
	var secret [8]byte
	binary.BigEndian.PutUint64(secret[:], baseSeed)
	info := []byte(fmt.Sprintf("pdcop/%s/agent-%d", purpose, id))
	return hkdf.New(sha256.New, secret[:], nil, info)
}

// ctrReader is an unbounded deterministic byte stream keyed by an
// HKDF-derived 256-bit key: AES-CTR from a fixed (zero) counter is a
// standard CSPRNG construction, used here instead of reading hkdf.Expand
// directly because an HKDF reader over SHA-256 is bounded to 255*32 bytes —
// too little for a simulation of thousands of sequential rounds' worth of
// polynomial coefficients and Paillier blinding factors.
type ctrReader struct {
	stream cipher.Stream
}

func newCTRReader(key [32]byte) *ctrReader {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		panic(fmt.Sprintf("agent: building crypto RNG stream: %v", err))
	}
	iv := make([]byte, aes.BlockSize)
	return &ctrReader{stream: cipher.NewCTR(block, iv)}
}

func (r *ctrReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	r.stream.XORKeyStream(p, p)
	return len(p), nil
}

func (r *ctrReader) drawUint32() uint32 {
	var b [4]byte
	_, _ = r.Read(b[:])
	return binary.BigEndian.Uint32(b[:])
}
