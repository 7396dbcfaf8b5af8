// Package paillier implements the Paillier additively-homomorphic
// cryptosystem used by PMAXSUM (spec.md §4.10): keygen, encrypt, decrypt,
// and ciphertext-space addition/scalar-multiplication, all on math/big —
// the same way the teacher's own signing path
// (protocols/lss/sign/sign.go) drops to math/big for modular scalar
// arithmetic the field/ring packages don't cover. Two invariants this
// package exists specifically to get right, per a known reference
// implementation bug the source material explicitly calls out: an
// encrypted "zero" must be EncryptZero's actual encryption of 0, never a
// stand-in plaintext of 1; and HomomorphicAdd/HomomorphicScalarMultiply
// always reduce modulo the PublicKey's own N², so two ciphertexts can only
// ever be combined under the key that produced them.
package paillier

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

var one = big.NewInt(1)

// PublicKey is (N, N², G) for G = N+1, the standard simplification that
// turns encryption into (1+mN)·r^N mod N² without an explicit modular
// exponentiation of G itself.
type PublicKey struct {
	N        *big.Int
	NSquared *big.Int
	G        *big.Int
}

// PrivateKey adds the Carmichael totient Lambda and its modular inverse Mu
// (mod N) needed to invert L(c^Lambda mod N²) back to the plaintext.
type PrivateKey struct {
	PublicKey
	Lambda *big.Int
	Mu     *big.Int
}

// GenerateKeyPair returns a fresh Paillier key pair over two random
// bits/2-bit primes. Reasonable sizes for this module's simulated,
// in-process ciphertexts are far smaller than production Paillier
// deployments would use (those typically run 2048+ bits); callers choose
// their own size via bits.
func GenerateKeyPair(bits int, rng io.Reader) (*PrivateKey, error) {
	if rng == nil {
		rng = rand.Reader
	}
	if bits < 16 {
		return nil, fmt.Errorf("paillier: key size %d bits is too small", bits)
	}
	for {
		p, err := rand.Prime(rng, bits/2)
		if err != nil {
			return nil, err
		}
		q, err := rand.Prime(rng, bits/2)
		if err != nil {
			return nil, err
		}
		if p.Cmp(q) == 0 {
			continue
		}
		n := new(big.Int).Mul(p, q)
		pm1 := new(big.Int).Sub(p, one)
		qm1 := new(big.Int).Sub(q, one)
		lambda := lcm(pm1, qm1)
		mu := new(big.Int).ModInverse(lambda, n)
		if mu == nil {
			continue
		}
		nSquared := new(big.Int).Mul(n, n)
		pub := PublicKey{N: n, NSquared: nSquared, G: new(big.Int).Add(n, one)}
		return &PrivateKey{PublicKey: pub, Lambda: lambda, Mu: mu}, nil
	}
}

func lcm(a, b *big.Int) *big.Int {
	g := new(big.Int).GCD(nil, nil, a, b)
	l := new(big.Int).Div(a, g)
	return l.Mul(l, b)
}

// Encrypt returns a fresh ciphertext for plaintext m under pub, using a
// random blinding factor drawn from rng.
func Encrypt(pub *PublicKey, m *big.Int, rng io.Reader) (*big.Int, error) {
	if rng == nil {
		rng = rand.Reader
	}
	mm := new(big.Int).Mod(m, pub.N)
	for {
		r, err := rand.Int(rng, pub.N)
		if err != nil {
			return nil, err
		}
		if r.Sign() == 0 {
			continue
		}
		if new(big.Int).GCD(nil, nil, r, pub.N).Cmp(one) != 0 {
			continue
		}
		base := new(big.Int).Mul(mm, pub.N)
		base.Add(base, one)
		base.Mod(base, pub.NSquared)
		rn := new(big.Int).Exp(r, pub.N, pub.NSquared)
		c := base.Mul(base, rn)
		c.Mod(c, pub.NSquared)
		return c, nil
	}
}

// EncryptInt64 is Encrypt for a plain int64 plaintext.
func EncryptInt64(pub *PublicKey, m int64, rng io.Reader) (*big.Int, error) {
	return Encrypt(pub, big.NewInt(m), rng)
}

// EncryptZero encrypts the plaintext 0 — the correct form of the "zero
// ciphertext" PMAXSUM's message-passing initializers need. Call sites must
// use this (not a hand-rolled Encrypt(pub, big.NewInt(1), ...)) to avoid
// the off-by-one the source's reference implementation shipped with.
func EncryptZero(pub *PublicKey, rng io.Reader) (*big.Int, error) {
	return Encrypt(pub, big.NewInt(0), rng)
}

// Decrypt recovers the plaintext m = L(c^Lambda mod N²) · Mu mod N.
func Decrypt(priv *PrivateKey, c *big.Int) *big.Int {
	cLambda := new(big.Int).Exp(c, priv.Lambda, priv.NSquared)
	l := lFunction(cLambda, priv.N)
	m := l.Mul(l, priv.Mu)
	return m.Mod(m, priv.N)
}

// DecryptInt64 is Decrypt returning a native int64, valid only when the
// plaintext (reduced mod N) fits — true for every value this module ever
// encrypts (small DCOP costs and marginals).
func DecryptInt64(priv *PrivateKey, c *big.Int) int64 {
	return Decrypt(priv, c).Int64()
}

func lFunction(x, n *big.Int) *big.Int {
	t := new(big.Int).Sub(x, one)
	return t.Div(t, n)
}

// HomomorphicAdd returns an encryption of m1+m2 given encryptions c1, c2 of
// m1, m2 under the SAME pub: Paillier's additive homomorphism is plain
// ciphertext multiplication mod N². Both ciphertexts must have been
// produced under pub specifically — combining ciphertexts encrypted under
// two different keys' moduli silently produces garbage, the second
// reference bug this package exists to avoid.
func HomomorphicAdd(pub *PublicKey, c1, c2 *big.Int) *big.Int {
	c := new(big.Int).Mul(c1, c2)
	return c.Mod(c, pub.NSquared)
}

// HomomorphicScalarMultiply returns an encryption of k*m given an
// encryption c of m under pub, for a non-negative scalar k (reduced mod
// pub.N internally, so callers representing a negation as N-1 get the
// expected encryption of -m mod N).
func HomomorphicScalarMultiply(pub *PublicKey, c, k *big.Int) *big.Int {
	kk := new(big.Int).Mod(k, pub.N)
	return new(big.Int).Exp(c, kk, pub.NSquared)
}

// HomomorphicSub returns an encryption of m1-m2 given encryptions c1, c2 of
// m1, m2 under the same pub, via HomomorphicScalarMultiply(c2, N-1) to
// negate before adding — Paillier ciphertexts have no direct subtraction.
func HomomorphicSub(pub *PublicKey, c1, c2 *big.Int) *big.Int {
	negOne := new(big.Int).Sub(pub.N, one)
	negC2 := HomomorphicScalarMultiply(pub, c2, negOne)
	return HomomorphicAdd(pub, c1, negC2)
}
