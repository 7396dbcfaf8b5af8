package round

import (
	cryptorand "crypto/rand"
	"fmt"
	"math/big"

	"github.com/luxfi/pdcop/pkg/mpc"
	"github.com/luxfi/pdcop/pkg/paillier"
	"github.com/luxfi/pdcop/pkg/party"
	"github.com/luxfi/pdcop/pkg/protocol"
)

// EKeyID and FKeyID name the two Paillier key pairs spec.md §4.10 requires
// every agent to own, for lookup in the shared paillier.KeyManager: E-key
// carries the additive message-passing pipeline (Q/R), F-key is used only
// for the final masked-marginal reveal, so that a chosen decryptor
// neighbor, to whom F-key's private half is made available, never gains
// the ability to read any agent's ordinary Q/R traffic.
func EKeyID(agent party.ID) string { return fmt.Sprintf("agent-%d-E", agent) }
func FKeyID(agent party.ID) string { return fmt.Sprintf("agent-%d-F", agent) }

// PMAXSUM implements Max-Sum message passing over a factor graph (spec.md
// §4.10): the dedicated function node for constrained pair (i,j) is
// realized here as code run locally at each endpoint, since both already
// know the shared cost matrix (spec.md §3). Each round, every agent
// exchanges one additively-combinable Q ciphertext vector with each
// neighbor (Q is a running sum of the R's received from every OTHER
// neighbor, so it never needs to be decrypted by the agent folding
// contributions in); R, which needs a min rather than a sum, is computed
// by decrypting the incoming Q (mediated by the shared paillier.KeyManager
// "function node" lookup) against the plainly-known cost matrix, then
// re-encrypted under this agent's own E-key so it can rejoin the
// homomorphic running sum. After lastRound rounds, the final marginal is
// masked by a single random shift (identical at every candidate value, so
// the argmin survives) and handed to a chosen neighbor to decrypt and
// report back only the winning index.
type PMAXSUM struct {
	ctx       *mpc.Context
	costs     CostSource
	keys      *paillier.KeyManager
	eKeyID    string
	fKeyID    string
	initial   int
	lastRound int

	neighbors party.Set
	subround  int

	phase      Phase
	onComplete func(newValue int, err error)
}

// NewPMAXSUM builds a PMAXSUM round for ctx.Self, starting from
// initialValue and running lastRound rounds of Q/R message passing before
// deciding. eKeyID and fKeyID (normally EKeyID(ctx.Self)/FKeyID(ctx.Self))
// must already be registered in keys, and every neighbor's E-key must be
// reachable through the same keys manager, which the chosen decryptor also
// uses to decrypt with this agent's F-key.
func NewPMAXSUM(ctx *mpc.Context, costs CostSource, keys *paillier.KeyManager, eKeyID, fKeyID string, initialValue, lastRound int) *PMAXSUM {
	return &PMAXSUM{
		ctx: ctx, costs: costs, keys: keys,
		eKeyID: eKeyID, fKeyID: fKeyID,
		initial: initialValue, lastRound: lastRound,
		phase: PhaseInitializing,
	}
}

// Phase returns the round's current state.
func (p *PMAXSUM) Phase() Phase { return p.phase }

// Start runs the round to completion, invoking onComplete exactly once
// with the agent's new value.
func (p *PMAXSUM) Start(onComplete func(newValue int, err error)) error {
	p.onComplete = onComplete
	p.phase = PhaseSharing
	p.neighbors = p.computeNeighbors()
	if len(p.neighbors) == 0 {
		p.complete(p.initial)
		return nil
	}
	if p.lastRound <= 0 {
		return fmt.Errorf("round: PMAXSUM agent %d requires lastRound > 0, got %d", p.ctx.Self, p.lastRound)
	}
	p.subround = 0
	out, err := p.zeroOutgoing()
	if err != nil {
		return fmt.Errorf("round: PMAXSUM agent %d zero-initializing Q: %w", p.ctx.Self, err)
	}
	return p.sendAndAwait(out)
}

func (p *PMAXSUM) computeNeighbors() party.Set {
	var ns party.Set
	for _, j := range p.ctx.Participants {
		if j != p.ctx.Self && p.costs.IsConnected(p.ctx.Self, j) {
			ns = append(ns, j)
		}
	}
	return ns
}

func (p *PMAXSUM) ePub() (*paillier.PublicKey, error) { return p.keys.PublicKey(p.eKeyID) }

// zeroOutgoing builds round 0's Q vectors: an encryption of 0 at every
// candidate for every neighbor, since no R's exist yet to sum. Using the
// package's EncryptZero (rather than a stray plaintext 1) is the
// correctness invariant spec.md §4.10 calls out by name.
func (p *PMAXSUM) zeroOutgoing() (map[party.ID][]*big.Int, error) {
	ePub, err := p.ePub()
	if err != nil {
		return nil, err
	}
	domainSize := p.costs.DomainSize()
	out := make(map[party.ID][]*big.Int, len(p.neighbors))
	for _, j := range p.neighbors {
		vals := make([]*big.Int, domainSize)
		for x := range vals {
			c, err := paillier.EncryptZero(ePub, p.ctx.RNG)
			if err != nil {
				return nil, err
			}
			vals[x] = c
		}
		out[j] = vals
	}
	return out, nil
}

func (p *PMAXSUM) sendAndAwait(out map[party.ID][]*big.Int) error {
	if err := runQExchange(p.ctx, p.neighbors, p.ctx.Round, p.subround, out, p.onQExchangeDone); err != nil {
		return fmt.Errorf("round: PMAXSUM Q exchange round %d subround %d: %w", p.ctx.Round, p.subround, err)
	}
	return nil
}

func (p *PMAXSUM) onQExchangeDone(received map[party.ID][]*big.Int, err error) {
	if err != nil {
		p.fail(fmt.Errorf("round: PMAXSUM message passing: %w", err))
		return
	}
	ePub, err := p.ePub()
	if err != nil {
		p.fail(err)
		return
	}
	domainSize := p.costs.DomainSize()

	rCipher := make(map[party.ID][]*big.Int, len(p.neighbors))
	for _, j := range p.neighbors {
		qCipher := received[j]
		if len(qCipher) != domainSize {
			p.fail(fmt.Errorf("round: PMAXSUM Q from %d has %d entries, want %d", j, len(qCipher), domainSize))
			return
		}
		q := make([]int64, domainSize)
		for y, c := range qCipher {
			plain, err := p.keys.Decrypt(EKeyID(j), c)
			if err != nil {
				p.fail(fmt.Errorf("round: PMAXSUM decrypting Q from %d: %w", j, err))
				return
			}
			q[y] = plain.Int64()
		}
		rx := make([]*big.Int, domainSize)
		for x := 0; x < domainSize; x++ {
			row := p.costs.CostRow(p.ctx.Self, j, x)
			if len(row) != domainSize {
				p.fail(fmt.Errorf("round: PMAXSUM cost row (%d,%d,%d) has %d entries, want %d", p.ctx.Self, j, x, len(row), domainSize))
				return
			}
			var best int64
			for y, cv := range row {
				v := int64(cv) + q[y]
				if y == 0 || v < best {
					best = v
				}
			}
			c, err := paillier.EncryptInt64(ePub, best, p.ctx.RNG)
			if err != nil {
				p.fail(fmt.Errorf("round: PMAXSUM encrypting R toward %d: %w", j, err))
				return
			}
			rx[x] = c
		}
		rCipher[j] = rx
	}

	s := make([]*big.Int, domainSize)
	for x := 0; x < domainSize; x++ {
		var acc *big.Int
		for _, j := range p.neighbors {
			if acc == nil {
				acc = rCipher[j][x]
				continue
			}
			acc = paillier.HomomorphicAdd(ePub, acc, rCipher[j][x])
		}
		s[x] = acc
	}

	p.subround++
	if p.subround < p.lastRound {
		out := make(map[party.ID][]*big.Int, len(p.neighbors))
		for _, j := range p.neighbors {
			qOut := make([]*big.Int, domainSize)
			for x := 0; x < domainSize; x++ {
				qOut[x] = paillier.HomomorphicSub(ePub, s[x], rCipher[j][x])
			}
			out[j] = qOut
		}
		if err := p.sendAndAwait(out); err != nil {
			p.fail(err)
		}
		return
	}

	p.onMarginalReady(s)
}

func (p *PMAXSUM) onMarginalReady(marginal []*big.Int) {
	p.phase = PhaseDeciding
	plainZ := make([]int64, len(marginal))
	for x, c := range marginal {
		v, err := p.keys.Decrypt(p.eKeyID, c)
		if err != nil {
			p.fail(fmt.Errorf("round: PMAXSUM decrypting own marginal: %w", err))
			return
		}
		plainZ[x] = v.Int64()
	}

	fPub, err := p.keys.PublicKey(p.fKeyID)
	if err != nil {
		p.fail(err)
		return
	}
	shiftBig, err := cryptorand.Int(p.ctx.RNG, big.NewInt(1<<20))
	if err != nil {
		p.fail(fmt.Errorf("round: PMAXSUM drawing mask shift: %w", err))
		return
	}
	shift := shiftBig.Int64()

	masked := make([]*big.Int, len(plainZ))
	for x, v := range plainZ {
		c, err := paillier.EncryptInt64(fPub, v+shift, p.ctx.RNG)
		if err != nil {
			p.fail(fmt.Errorf("round: PMAXSUM masking marginal: %w", err))
			return
		}
		masked[x] = c
	}

	decryptor := p.chooseDecryptor()
	if err := p.sendDecryptRequest(decryptor, masked); err != nil {
		p.fail(fmt.Errorf("round: PMAXSUM Deciding phase: %w", err))
	}
}

// chooseDecryptor picks the lowest-id neighbor, deterministically, as the
// "chosen function node" spec.md §4.10 has decrypt the masked marginal.
func (p *PMAXSUM) chooseDecryptor() party.ID {
	best := p.neighbors[0]
	for _, j := range p.neighbors[1:] {
		if j < best {
			best = j
		}
	}
	return best
}

func (p *PMAXSUM) sendDecryptRequest(decryptor party.ID, masked []*big.Int) error {
	id := decideID(p.ctx.Round, p.ctx.Self)
	op := &decideOp{isInitiator: true, keys: p.keys}
	if _, err := p.ctx.Dispatcher.Start(op, protocol.InitParams{
		Transport:    p.ctx.Transport,
		Self:         p.ctx.Self,
		Participants: p.ctx.Participants,
		ProtocolID:   id,
	}, p.ctx.Round, "pmaxsum-decide"); err != nil {
		return err
	}
	op.onComplete = func(idx int, err error) {
		if err != nil {
			p.fail(fmt.Errorf("round: PMAXSUM Updating phase: %w", err))
			return
		}
		p.onArgminReady(idx)
	}
	raw := make([][]byte, len(masked))
	for i, c := range masked {
		raw[i] = c.Bytes()
	}
	payload, err := protocol.EncodePayload(decideRequestPayload{FKeyID: p.fKeyID, Values: raw})
	if err != nil {
		return err
	}
	msg := &protocol.Message{ProtocolID: id, Type: "pmaxsum-decide", From: p.ctx.Self, Round: p.ctx.Round, Payload: payload}
	return p.ctx.Transport.Send(msg, decryptor)
}

func (p *PMAXSUM) onArgminReady(idx int) {
	p.phase = PhaseUpdating
	p.complete(idx)
}

func (p *PMAXSUM) complete(newValue int) {
	p.phase = PhaseComplete
	if p.onComplete != nil {
		p.onComplete(newValue, nil)
	}
}

func (p *PMAXSUM) fail(err error) {
	p.phase = PhaseFailed
	if p.onComplete != nil {
		p.onComplete(p.initial, err)
	}
}

// --- Q-vector exchange: every agent pre-registers its own instance under
// a deterministic id before any message for it is sent or drained, the
// same pattern pkg/huddle and pkg/barrier use, since every participant
// already knows which neighbors it must hear from this subround.

func qID(round, subround int) string {
	return fmt.Sprintf("pmaxsum-q-%d-%d", round, subround)
}

type qPayload struct {
	From   int32
	Values [][]byte
}

type qOp struct {
	id         string
	neighbors  party.Set
	received   map[party.ID][]*big.Int
	onComplete func(map[party.ID][]*big.Int, error)
	dispatcher *protocol.Dispatcher
	done       bool
}

func (o *qOp) ProtocolID() string { return o.id }

func (o *qOp) Initialize(params protocol.InitParams) error {
	o.id = params.ProtocolID
	o.dispatcher = params.Dispatcher
	return nil
}

func (o *qOp) Handle(msg *protocol.Message, sender party.ID) error {
	var p qPayload
	if err := protocol.DecodePayload(msg.Payload, &p); err != nil {
		return fmt.Errorf("round: pmaxsum decoding Q from %d: %w", sender, err)
	}
	values := make([]*big.Int, len(p.Values))
	for i, b := range p.Values {
		values[i] = new(big.Int).SetBytes(b)
	}
	o.received[sender] = values
	if o.done || len(o.received) < len(o.neighbors) {
		return nil
	}
	o.done = true
	if o.dispatcher != nil {
		o.dispatcher.Remove(o.id)
	}
	if o.onComplete != nil {
		o.onComplete(o.received, nil)
	}
	return nil
}

// runQExchange sends self's per-neighbor outgoing vector out[neighbor] to
// each neighbor and completes once self has received an incoming vector
// from every one of them.
func runQExchange(ctx *mpc.Context, neighbors party.Set, round, subround int, out map[party.ID][]*big.Int, onComplete func(map[party.ID][]*big.Int, error)) error {
	id := qID(round, subround)
	op := &qOp{neighbors: neighbors, received: make(map[party.ID][]*big.Int, len(neighbors)), onComplete: onComplete}
	if _, err := ctx.Dispatcher.Start(op, protocol.InitParams{
		Transport:    ctx.Transport,
		Self:         ctx.Self,
		Participants: ctx.Participants,
		ProtocolID:   id,
	}, round, "pmaxsum-q"); err != nil {
		return err
	}

	for _, n := range neighbors {
		vals := out[n]
		raw := make([][]byte, len(vals))
		for i, v := range vals {
			raw[i] = v.Bytes()
		}
		payload, err := protocol.EncodePayload(qPayload{From: int32(ctx.Self), Values: raw})
		if err != nil {
			return err
		}
		msg := &protocol.Message{ProtocolID: id, Type: "pmaxsum-q", From: ctx.Self, Round: round, Payload: payload}
		if err := ctx.Transport.Send(msg, n); err != nil {
			return err
		}
	}
	return nil
}

// --- Final masked-marginal decrypt request/reply.

func decideID(round int, requester party.ID) string {
	return fmt.Sprintf("pmaxsum-decide-%d-%d", round, requester)
}

type decideRequestPayload struct {
	FKeyID string
	Values [][]byte
}

type decideReplyPayload struct {
	Index int32
}

type decideOp struct {
	id          string
	self        party.ID
	isInitiator bool
	keys        *paillier.KeyManager
	transport   protocol.Transport
	dispatcher  *protocol.Dispatcher
	onComplete  func(int, error)
}

func (o *decideOp) ProtocolID() string { return o.id }

func (o *decideOp) Initialize(params protocol.InitParams) error {
	o.id = params.ProtocolID
	o.self = params.Self
	o.transport = params.Transport
	o.dispatcher = params.Dispatcher
	return nil
}

func (o *decideOp) Handle(msg *protocol.Message, sender party.ID) error {
	if msg.IsCompletionMessage {
		var reply decideReplyPayload
		if err := protocol.DecodePayload(msg.Payload, &reply); err != nil {
			return err
		}
		if o.dispatcher != nil {
			o.dispatcher.Remove(o.id)
		}
		if o.onComplete != nil {
			o.onComplete(int(reply.Index), nil)
		}
		return nil
	}

	var req decideRequestPayload
	if err := protocol.DecodePayload(msg.Payload, &req); err != nil {
		return err
	}
	best := -1
	var bestVal *big.Int
	for i, raw := range req.Values {
		c := new(big.Int).SetBytes(raw)
		v, err := o.keys.Decrypt(req.FKeyID, c)
		if err != nil {
			return fmt.Errorf("round: pmaxsum decryptor could not decrypt entry %d: %w", i, err)
		}
		if best == -1 || v.Cmp(bestVal) < 0 {
			best, bestVal = i, v
		}
	}
	payload, err := protocol.EncodePayload(decideReplyPayload{Index: int32(best)})
	if err != nil {
		return err
	}
	reply := &protocol.Message{ProtocolID: o.id, Type: "pmaxsum-decide", From: o.self, Round: msg.Round, Payload: payload, IsCompletionMessage: true}
	if err := o.transport.Send(reply, sender); err != nil {
		return err
	}
	if o.dispatcher != nil {
		o.dispatcher.Remove(o.id)
	}
	return nil
}

// RegisterPMAXSUMResponders wires the "pmaxsum-decide" protocol type into
// d, so a decrypt request arriving for an unknown instance spawns a fresh
// responder backed by keys. Call once per agent at setup, alongside
// mpc.RegisterResponders.
func RegisterPMAXSUMResponders(d *protocol.Dispatcher, keys *paillier.KeyManager) {
	d.Register("pmaxsum-decide", nil, func() protocol.Instance { return &decideOp{keys: keys} })
}
