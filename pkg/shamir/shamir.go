// Package shamir implements Shamir secret sharing over pkg/field's prime:
// polynomial evaluation to generate shares, and Lagrange interpolation at
// x=0 to reconstruct. Grounded on the polynomial-evaluation/Lagrange shape
// of github.com/luxfi/threshold/pkg/math/polynomial (exercised, though not
// itself present in the retrieval pack, by its own Lagrange test and by
// protocols/lss/jvss.CombineShares) and on the plain integer-field variants
// under other_examples (aquarelle-tech-darkmatter/shamir, etiennebch-shamir-sss),
// adapted from GF(256)/byte secrets to this module's 31-bit prime field.
package shamir

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/luxfi/pdcop/pkg/field"
	"github.com/luxfi/pdcop/pkg/party"
)

// Share is an immutable point (index, value) on a degree-(t-1) polynomial,
// plus a debug-secret that mirrors the arithmetic for test assertions only;
// reconstruction must never depend on it.
type Share struct {
	Index party.ID
	Value field.Elem
	Debug field.Elem
}

// Add returns a Share for the same index carrying the sum of the two
// operands' values (and debug secrets), used by SecureAdd's local step.
func (s Share) Add(o Share) Share {
	s.requireSameIndex(o)
	return Share{Index: s.Index, Value: field.Add(s.Value, o.Value), Debug: field.Add(s.Debug, o.Debug)}
}

// Sub returns a Share carrying s-o.
func (s Share) Sub(o Share) Share {
	s.requireSameIndex(o)
	return Share{Index: s.Index, Value: field.Sub(s.Value, o.Value), Debug: field.Sub(s.Debug, o.Debug)}
}

// ScalarMul returns a Share carrying c*s.
func (s Share) ScalarMul(c field.Elem) Share {
	return Share{Index: s.Index, Value: field.Mul(c, s.Value), Debug: field.Mul(c, s.Debug)}
}

// OneMinus returns a Share carrying 1-s.
func (s Share) OneMinus() Share {
	return Share{Index: s.Index, Value: field.OneMinus(s.Value), Debug: field.OneMinus(s.Debug)}
}

func (s Share) requireSameIndex(o Share) {
	if s.Index != o.Index && s.Index != 0 && o.Index != 0 {
		panic(fmt.Sprintf("shamir: share index mismatch %d != %d", s.Index, o.Index))
	}
}

// GenerateShares samples a random degree-(threshold-1) polynomial with
// constant term secret, and evaluates it at every index in ids, returning
// one Share per id. threshold must be >=1; for threshold=1 the polynomial
// is simply the constant secret, so every share equals it.
func GenerateShares(secret field.Elem, threshold int, ids []party.ID, rng io.Reader) ([]Share, error) {
	if threshold < 1 {
		return nil, fmt.Errorf("shamir: threshold must be >= 1, got %d", threshold)
	}
	if rng == nil {
		rng = rand.Reader
	}
	coeffs := make([]field.Elem, threshold)
	coeffs[0] = secret
	for i := 1; i < threshold; i++ {
		c, err := randomElem(rng)
		if err != nil {
			return nil, fmt.Errorf("shamir: sampling coefficient %d: %w", i, err)
		}
		coeffs[i] = c
	}
	shares := make([]Share, len(ids))
	for i, id := range ids {
		if id < 1 {
			return nil, fmt.Errorf("shamir: invalid share index %d, must be >= 1", id)
		}
		shares[i] = Share{
			Index: id,
			Value: evalHorner(coeffs, field.New(int64(id))),
			Debug: secret,
		}
	}
	return shares, nil
}

// evalHorner evaluates the polynomial with the given coefficients (low to
// high degree) at x using Horner's method.
func evalHorner(coeffs []field.Elem, x field.Elem) field.Elem {
	var acc field.Elem
	for i := len(coeffs) - 1; i >= 0; i-- {
		acc = field.Add(field.Mul(acc, x), coeffs[i])
	}
	return acc
}

// Reconstruct recovers the polynomial's constant term from the given shares
// via Lagrange interpolation at x=0. The caller is responsible for
// supplying at least the sharing's threshold number of shares; fewer shares
// silently (and, by the information-theoretic guarantee, correctly)
// reconstruct to an unrelated value, and duplicate indices are rejected.
func Reconstruct(shares []Share) (field.Elem, error) {
	if len(shares) == 0 {
		return 0, fmt.Errorf("shamir: cannot reconstruct from zero shares")
	}
	seen := make(map[party.ID]struct{}, len(shares))
	for _, s := range shares {
		if _, dup := seen[s.Index]; dup {
			return 0, fmt.Errorf("shamir: duplicate share index %d", s.Index)
		}
		seen[s.Index] = struct{}{}
	}

	var secret field.Elem
	for i, si := range shares {
		coeff, err := lagrangeCoefficientAtZero(shares, i)
		if err != nil {
			return 0, err
		}
		secret = field.Add(secret, field.Mul(coeff, si.Value))
	}
	return secret, nil
}

// lagrangeCoefficientAtZero computes L_i(0) = prod_{j!=i} (0-x_j)/(x_i-x_j).
func lagrangeCoefficientAtZero(shares []Share, i int) (field.Elem, error) {
	xi := field.New(int64(shares[i].Index))
	num := field.Elem(1)
	den := field.Elem(1)
	for j, sj := range shares {
		if i == j {
			continue
		}
		xj := field.New(int64(sj.Index))
		num = field.Mul(num, field.Neg(xj))
		diff := field.Sub(xi, xj)
		if diff == 0 {
			return 0, fmt.Errorf("shamir: duplicate x-coordinate %d during reconstruction", shares[i].Index)
		}
		den = field.Mul(den, diff)
	}
	denInv, ok := field.Inverse(den)
	if !ok {
		return 0, fmt.Errorf("shamir: modular inverse undefined during reconstruction")
	}
	return field.Mul(num, denInv), nil
}

func randomElem(rng io.Reader) (field.Elem, error) {
	var buf [8]byte
	if _, err := io.ReadFull(rng, buf[:]); err != nil {
		return 0, err
	}
	var v uint64
	for _, b := range buf {
		v = (v << 8) | uint64(b)
	}
	return field.Elem(v % field.Prime), nil
}
