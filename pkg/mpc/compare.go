package mpc

import (
	"fmt"

	"github.com/luxfi/pdcop/pkg/field"
)

// SecureKnownSecretCompare computes a share of 1 if the public constant a is
// strictly less than the secret shared bitwise under bBits (31 shares,
// bBits[i] holding bit i, LSB first), else 0. It scans bits from MSB to LSB
// maintaining e, a share of "the bits seen so far are still equal": at the
// first bit where a's (public) bit is 0 and b's (secret) bit is 1, a<b is
// decided and its contribution is folded into the running result; e is
// then multiplied down for every remaining bit regardless of outcome so
// only the first differing bit ever contributes.
func SecureKnownSecretCompare(ctx *Context, a field.Elem, bBits []string, rKey, output, tag string, onComplete func(error)) error {
	n := len(bBits)
	if n == 0 {
		return fmt.Errorf("mpc: SecureKnownSecretCompare requires at least one bit")
	}
	aBits := field.Bits(a, n)

	resultKey := output + "/cmp-result0"
	eKey := output + "/cmp-e0"
	if err := ctx.Storage.Store(resultKey, zeroShare(ctx.Self), tag); err != nil {
		return err
	}
	if err := ctx.Storage.Store(eKey, oneShare(ctx.Self), tag); err != nil {
		return err
	}

	var step func(i int, result, e string)
	step = func(i int, result, e string) {
		if i < 0 {
			if _, err := SecureCopyShare(ctx, result, output, tag, func(_ string, err error) { onComplete(err) }); err != nil {
				onComplete(err)
			}
			return
		}

		// diffKey: local share of (a_i XOR b_i). a_i is public, so this is
		// entirely local: a_i==0 -> b_i itself, a_i==1 -> 1-b_i.
		diffKey := fmt.Sprintf("%s/cmp-diff%d", output, i)
		var diffErr error
		if aBits[i] == 0 {
			diffErr = copyLocal(ctx, bBits[i], diffKey, tag)
		} else {
			diffErr = invertLocal(ctx, bBits[i], diffKey, tag)
		}
		if diffErr != nil {
			onComplete(diffErr)
			return
		}

		// contribKey: local share of (1-a_i)*diff_i, a public-scalar
		// multiply since (1-a_i) is known, folded with e via one
		// SecureMultiply below to get this bit's contribution to result.
		localTermKey := fmt.Sprintf("%s/cmp-term%d", output, i)
		if err := scalarMulLocal(ctx, field.OneMinus(aBits[i]), diffKey, localTermKey, tag); err != nil {
			onComplete(err)
			return
		}

		contribKey := fmt.Sprintf("%s/cmp-contrib%d", output, i)
		if _, err := SecureMultiply(ctx, e, localTermKey, rKey, contribKey, tag, func(err error) {
			if err != nil {
				onComplete(fmt.Errorf("mpc: SecureKnownSecretCompare contribution at bit %d: %w", i, err))
				return
			}
			newResultKey := fmt.Sprintf("%s/cmp-result%d", output, i+1)
			if _, err := SecureAdd(ctx, result, contribKey, newResultKey, tag, func(_ string, err error) {
				if err != nil {
					onComplete(err)
					return
				}
				notDiffKey := fmt.Sprintf("%s/cmp-notdiff%d", output, i)
				if err := invertLocal(ctx, diffKey, notDiffKey, tag); err != nil {
					onComplete(err)
					return
				}
				newEKey := fmt.Sprintf("%s/cmp-e%d", output, i+1)
				if _, err := SecureMultiply(ctx, e, notDiffKey, rKey, newEKey, tag, func(err error) {
					if err != nil {
						onComplete(err)
						return
					}
					step(i-1, newResultKey, newEKey)
				}); err != nil {
					onComplete(err)
				}
			}); err != nil {
				onComplete(err)
			}
		}); err != nil {
			onComplete(err)
		}
	}
	step(n-1, resultKey, eKey)
	return nil
}

// SecureCompareHalfPrime computes a share of 1 if the secret under xKey,
// interpreted as a signed value in (-p/2, p/2], is negative, else 0: since p
// is odd, 2x mod p is odd exactly when x lies above p/2, so the
// least-significant bit of 2x mod p is that sign bit and this reduces to
// one local doubling followed by SecureLSB.
func SecureCompareHalfPrime(ctx *Context, xKey, rKey string, rBits []string, output, tag string, onComplete func(error)) error {
	doubledKey := output + "/doubled"
	if err := scalarMulLocal(ctx, field.New(2), xKey, doubledKey, tag); err != nil {
		return err
	}
	return SecureLSB(ctx, doubledKey, rKey, rBits, output, tag, onComplete)
}

// SecureCompare computes a share of 1 if the secret under aKey is strictly
// less than the secret under bKey, else 0, via SecureCompareHalfPrime on
// their difference (a<b iff a-b, read as signed, is negative).
func SecureCompare(ctx *Context, aKey, bKey, rKey string, rBits []string, output, tag string, onComplete func(error)) error {
	diffKey := output + "/ab-diff"
	if _, err := SecureSub(ctx, aKey, bKey, diffKey, tag, func(_ string, err error) {
		if err != nil {
			onComplete(err)
			return
		}
		if err := SecureCompareHalfPrime(ctx, diffKey, rKey, rBits, output, tag, onComplete); err != nil {
			onComplete(err)
		}
	}); err != nil {
		return err
	}
	return nil
}

// SecureLSB computes a share of the least-significant bit of the secret
// under xKey, using the masked-reveal technique: c = x+r is reconstructed
// in the clear, giving d0 = c0 XOR r0 locally from the public bit c0 and
// the secret bit share r-key[0]; e = [c < r] is obtained by comparing the
// now-public c against the secret bits of r via
// SecureKnownSecretCompare; and lsb(x) = d0 XOR e, expanded to the
// arithmetic XOR formula e + d0 - 2*e*d0 to stay within one SecureMultiply.
func SecureLSB(ctx *Context, xKey, rKey string, rBits []string, output, tag string, onComplete func(error)) error {
	cShareKey := output + "/lsb-c"
	if _, err := SecureAdd(ctx, xKey, rKey, cShareKey, tag, func(_ string, err error) {
		if err != nil {
			onComplete(err)
			return
		}
		if _, err := Reconstruct(ctx, cShareKey, func(c field.Elem, err error) {
			if err != nil {
				onComplete(err)
				return
			}
			c0 := field.Bit(c, 0)
			d0Key := output + "/lsb-d0"
			var d0Err error
			if c0 == 0 {
				d0Err = copyLocal(ctx, rBits[0], d0Key, tag)
			} else {
				d0Err = invertLocal(ctx, rBits[0], d0Key, tag)
			}
			if d0Err != nil {
				onComplete(d0Err)
				return
			}
			eKey := output + "/lsb-e"
			if err := SecureKnownSecretCompare(ctx, c, rBits, rKey, eKey, tag, func(err error) {
				if err != nil {
					onComplete(err)
					return
				}
				// lsb = e + d0 - 2*e*d0
				prodKey := output + "/lsb-prod"
				if _, err := SecureMultiply(ctx, eKey, d0Key, rKey, prodKey, tag, func(err error) {
					if err != nil {
						onComplete(err)
						return
					}
					doubleProdKey := output + "/lsb-2prod"
					if err := scalarMulLocal(ctx, field.New(2), prodKey, doubleProdKey, tag); err != nil {
						onComplete(err)
						return
					}
					sumKey := output + "/lsb-sum"
					if _, err := SecureAdd(ctx, eKey, d0Key, sumKey, tag, func(_ string, err error) {
						if err != nil {
							onComplete(err)
							return
						}
						if _, err := SecureSub(ctx, sumKey, doubleProdKey, output, tag, func(_ string, err error) {
							onComplete(err)
						}); err != nil {
							onComplete(err)
						}
					}); err != nil {
						onComplete(err)
					}
				}); err != nil {
					onComplete(err)
				}
			}); err != nil {
				onComplete(err)
			}
		}); err != nil {
			onComplete(err)
		}
	}); err != nil {
		return err
	}
	return nil
}
