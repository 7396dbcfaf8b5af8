package dcop

import (
	"math/rand"

	"github.com/luxfi/pdcop/pkg/party"
)

// GenerateRandom builds a Problem over n agents (ids 1..n) and the given
// domain size, wiring each unordered pair with probability density to an
// independently drawn integer cost matrix in [0,maxCost). This is a small
// stand-in for a real topology generator, deliberately not the
// Erdős–Rényi/Barabási–Albert constructions spec.md §1 puts out of scope —
// just enough connectivity variety to drive cmd/pdcop-sim and exercise
// pkg/round's three protocols against something other than a fixed test
// fixture. rng is supplied by the caller so a run stays reproducible given
// the same seed.
func GenerateRandom(rng *rand.Rand, n, domainSize int, density float64, maxCost int64) *Problem {
	participants := make(party.Set, n)
	for i := range participants {
		participants[i] = party.ID(i + 1)
	}
	p := New(participants, domainSize)
	if maxCost <= 0 {
		maxCost = 10
	}
	for i, a := range participants {
		for _, b := range participants[i+1:] {
			if rng.Float64() >= density {
				continue
			}
			matrix := make([][]int64, domainSize)
			for x := range matrix {
				matrix[x] = make([]int64, domainSize)
				for y := range matrix[x] {
					matrix[x][y] = rng.Int63n(maxCost)
				}
			}
			_ = p.SetMatrix(a, b, matrix)
		}
	}
	return p
}
