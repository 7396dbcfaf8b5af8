// Package field implements arithmetic in Z/pZ for the Mersenne prime
// p = 2^31 - 1, the prime shared by every MPC primitive and round protocol
// in this module.
package field

import "fmt"

// Prime is the Mersenne prime 2^31 - 1 all secret sharing in this module is
// defined over. It is small enough that every element and every partial
// product during multiplication fits comfortably in a uint64.
const Prime uint64 = (1 << 31) - 1

// Elem is a field element, always held normalized into [0, Prime).
type Elem uint64

// New normalizes v into [0, Prime) and returns the corresponding Elem.
func New(v int64) Elem {
	m := int64(Prime)
	v %= m
	if v < 0 {
		v += m
	}
	return Elem(v)
}

// Add returns a+b mod p.
func Add(a, b Elem) Elem {
	return Elem((uint64(a) + uint64(b)) % Prime)
}

// Sub returns a-b mod p.
func Sub(a, b Elem) Elem {
	return Elem((uint64(a) + Prime - uint64(b)%Prime) % Prime)
}

// Neg returns -a mod p.
func Neg(a Elem) Elem {
	return Sub(0, a)
}

// Mul returns a*b mod p, safe against overflow of 64-bit intermediate
// products: since both operands are below 2^31, the naive product fits in
// 62 bits, well inside uint64's range, so no shift-and-add decomposition is
// actually required for this prime. Both operands are reduced mod Prime
// before mulWide runs, so its shift-and-add branch is never taken from here.
func Mul(a, b Elem) Elem {
	return mulWide(uint64(a)%Prime, uint64(b)%Prime)
}

// mulWide multiplies two values already reduced mod Prime using
// shift-and-add so that callers passing a value with an extra bit of slack
// (e.g. 2x before reduction) never silently overflow a uint64 multiply.
func mulWide(a, b uint64) Elem {
	if a < (1<<31) && b < (1<<31) {
		return Elem((a * b) % Prime)
	}
	var result uint64
	a %= Prime
	for b > 0 {
		if b&1 == 1 {
			result = (result + a) % Prime
		}
		a = (a * 2) % Prime
		b >>= 1
	}
	return Elem(result)
}

// ScalarMul is an alias for Mul kept for call sites that want to express
// "multiply a share by a public scalar" rather than "multiply two field
// elements", matching the vocabulary of spec's ScalarMultiply primitive.
func ScalarMul(c, a Elem) Elem {
	return Mul(c, a)
}

// OneMinus returns 1-a mod p.
func OneMinus(a Elem) Elem {
	return Sub(1, a)
}

// Inverse returns the multiplicative inverse of a mod p via the extended
// Euclidean algorithm. It fails (ok=false) only for a=0, since p is prime.
func Inverse(a Elem) (Elem, bool) {
	if a == 0 {
		return 0, false
	}
	g, x, _ := extendedGCD(int64(a), int64(Prime))
	if g != 1 {
		return 0, false
	}
	return New(x), true
}

func extendedGCD(a, b int64) (gcd, x, y int64) {
	old_r, r := a, b
	old_s, s := int64(1), int64(0)
	old_t, t := int64(0), int64(1)
	for r != 0 {
		q := old_r / r
		old_r, r = r, old_r-q*r
		old_s, s = s, old_s-q*s
		old_t, t = t, old_t-q*t
	}
	return old_r, old_s, old_t
}

// Bit returns the i-th bit (0 = LSB) of a's canonical representative.
func Bit(a Elem, i int) Elem {
	return Elem((uint64(a) >> uint(i)) & 1)
}

// Bits returns the s bits (0 = LSB) of a's canonical representative, most
// often s=31 since Prime = 2^31-1.
func Bits(a Elem, s int) []Elem {
	out := make([]Elem, s)
	for i := 0; i < s; i++ {
		out[i] = Bit(a, i)
	}
	return out
}

func (e Elem) String() string {
	return fmt.Sprintf("%d", uint64(e))
}
