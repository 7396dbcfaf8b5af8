package mpc

import "github.com/luxfi/pdcop/pkg/field"

// SecureAdd computes a share of A+B from shares stored under aKey, bKey,
// storing the result under output. A local operation at every participant,
// wrapped in a broadcast round only so every peer is notified of the new
// stored value in lockstep with the rest of the protocol suite.
func SecureAdd(ctx *Context, aKey, bKey, output, tag string, onComplete func(string, error)) (string, error) {
	return broadcastCompute(ctx, Request{Kind: "add", Inputs: []string{aKey, bKey}, Output: output, Tag: tag}, onComplete)
}

// SecureSub computes a share of A-B.
func SecureSub(ctx *Context, aKey, bKey, output, tag string, onComplete func(string, error)) (string, error) {
	return broadcastCompute(ctx, Request{Kind: "sub", Inputs: []string{aKey, bKey}, Output: output, Tag: tag}, onComplete)
}

// SecureKnownSub computes a share of k-B (swapped=false) or B-k
// (swapped=true) for a public constant k. Every participant uses the same
// public k directly — equivalent to treating k as a degree-0 sharing whose
// value is k at every index — rather than only the index-1 participant
// contributing it, since the latter is only valid for additive (not
// Shamir) sharing.
func SecureKnownSub(ctx *Context, k field.Elem, bKey string, swapped bool, output, tag string, onComplete func(string, error)) (string, error) {
	return broadcastCompute(ctx, Request{Kind: "known-sub", Inputs: []string{bKey}, Scalar: k, Swapped: swapped, Output: output, Tag: tag}, onComplete)
}

// SecureInvert computes a share of 1-A.
func SecureInvert(ctx *Context, aKey, output, tag string, onComplete func(string, error)) (string, error) {
	return broadcastCompute(ctx, Request{Kind: "invert", Inputs: []string{aKey}, Output: output, Tag: tag}, onComplete)
}

// ScalarMultiply computes a share of c*A for a public constant c.
func ScalarMultiply(ctx *Context, c field.Elem, aKey, output, tag string, onComplete func(string, error)) (string, error) {
	return broadcastCompute(ctx, Request{Kind: "scalar-mul", Inputs: []string{aKey}, Scalar: c, Output: output, Tag: tag}, onComplete)
}

// SecureCopyShare republishes the share under aKey as a new share under
// output, e.g. to give a value a second, independently-clearable tag.
func SecureCopyShare(ctx *Context, aKey, output, tag string, onComplete func(string, error)) (string, error) {
	return broadcastCompute(ctx, Request{Kind: "copy", Inputs: []string{aKey}, Output: output, Tag: tag}, onComplete)
}
