package mpc

import (
	"fmt"

	"github.com/luxfi/pdcop/pkg/field"
	"github.com/luxfi/pdcop/pkg/party"
	"github.com/luxfi/pdcop/pkg/shamir"
	"github.com/luxfi/pdcop/pkg/store"
)

// computeLocal runs the "each peer locally computes" half of one broadcast
// round, reading req.Inputs out of storage and returning the new share
// value self should store under req.Output. This is where every
// broadcast-shaped primitive's actual arithmetic lives; the wire plumbing
// around it (broadcastOp) never looks inside Kind.
func computeLocal(storage *store.ShareStorage, self party.ID, req Request) (field.Elem, error) {
	get := func(i int) (shamir.Share, error) {
		if i >= len(req.Inputs) {
			return shamir.Share{}, fmt.Errorf("mpc: kind %q needs input %d, got %d inputs", req.Kind, i, len(req.Inputs))
		}
		sh, err := storage.MustGet(req.Inputs[i])
		if err != nil {
			return shamir.Share{}, err
		}
		return sh, nil
	}

	switch req.Kind {
	case "add":
		a, err := get(0)
		if err != nil {
			return 0, err
		}
		b, err := get(1)
		if err != nil {
			return 0, err
		}
		return a.Add(b).Value, nil

	case "sub":
		a, err := get(0)
		if err != nil {
			return 0, err
		}
		b, err := get(1)
		if err != nil {
			return 0, err
		}
		return a.Sub(b).Value, nil

	case "known-sub":
		a, err := get(0)
		if err != nil {
			return 0, err
		}
		if req.Swapped {
			return field.Sub(a.Value, req.Scalar), nil
		}
		return field.Sub(req.Scalar, a.Value), nil

	case "invert":
		a, err := get(0)
		if err != nil {
			return 0, err
		}
		return field.OneMinus(a.Value), nil

	case "scalar-mul":
		a, err := get(0)
		if err != nil {
			return 0, err
		}
		return field.ScalarMul(req.Scalar, a.Value), nil

	case "copy":
		a, err := get(0)
		if err != nil {
			return 0, err
		}
		return a.Value, nil

	case "mask":
		// SecureMultiply phase 1: locally mask the degree-2t product with a
		// pre-shared random share so the public reconstruction in phase 2
		// leaks nothing about A or B individually.
		a, err := get(0)
		if err != nil {
			return 0, err
		}
		b, err := get(1)
		if err != nil {
			return 0, err
		}
		r, err := get(2)
		if err != nil {
			return 0, err
		}
		return field.Add(field.Mul(a.Value, b.Value), r.Value), nil

	case "finalize-mul":
		// SecureMultiply phase 3: subtract the same random share back out of
		// the now-public masked product, recovering a fresh degree-t share
		// of A*B without ever reconstructing A*B itself.
		r, err := get(0)
		if err != nil {
			return 0, err
		}
		return field.Sub(req.Scalar, r.Value), nil

	case "sum":
		var total field.Elem
		for i := range req.Inputs {
			sh, err := get(i)
			if err != nil {
				return 0, err
			}
			total = field.Add(total, sh.Value)
		}
		return total, nil

	default:
		return 0, fmt.Errorf("mpc: unknown local op kind %q", req.Kind)
	}
}
