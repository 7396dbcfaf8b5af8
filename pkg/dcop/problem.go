// Package dcop implements the problem model of spec.md §3: N agents, each
// with a value domain of size M, connected by a symmetric set of pairwise
// M×M integer cost matrices. Grounded on the teacher's plain-struct
// configuration types (protocols/lss/config.Config), adapted from signing
// session parameters to a DCOP instance's agents/domain/cost-matrix triple.
package dcop

import (
	"fmt"

	"github.com/luxfi/pdcop/pkg/field"
	"github.com/luxfi/pdcop/pkg/party"
)

type pairKey struct {
	lo, hi party.ID
}

func canonicalPair(a, b party.ID) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

// Problem is an immutable N-agent, M-value DCOP instance: a symmetric
// constraint set where each unordered pair (i,j) either has no constraint
// (treated internally as an all-zero M×M matrix, per spec.md §3's
// full-mesh view) or an explicit cost matrix whose [vi][vj] entry is the
// cost incurred when i picks vi and j picks vj.
type Problem struct {
	participants party.Set
	domainSize   int
	matrices     map[pairKey][][]int64
}

// New returns an empty Problem over participants with the given domain
// size; every pair starts unconstrained.
func New(participants party.Set, domainSize int) *Problem {
	if domainSize <= 0 {
		panic(fmt.Sprintf("dcop: domain size must be positive, got %d", domainSize))
	}
	return &Problem{participants: participants, domainSize: domainSize, matrices: make(map[pairKey][][]int64)}
}

// Participants returns the problem's agent set.
func (p *Problem) Participants() party.Set { return p.participants }

// DomainSize returns M, the number of candidate values per agent.
func (p *Problem) DomainSize() int { return p.domainSize }

// SetMatrix records an M×M cost matrix for the unordered pair (a,b):
// matrix[va][vb] is the cost incurred when a picks va and b picks vb.
// matrix[vb][va] (the transposed lookup used when the roles are swapped)
// is derived automatically from the same entries.
func (p *Problem) SetMatrix(a, b party.ID, matrix [][]int64) error {
	if a == b {
		return fmt.Errorf("dcop: cannot constrain agent %d against itself", a)
	}
	if len(matrix) != p.domainSize {
		return fmt.Errorf("dcop: matrix for (%d,%d) has %d rows, want %d", a, b, len(matrix), p.domainSize)
	}
	for _, row := range matrix {
		if len(row) != p.domainSize {
			return fmt.Errorf("dcop: matrix for (%d,%d) has a row of length %d, want %d", a, b, len(row), p.domainSize)
		}
	}
	key := canonicalPair(a, b)
	// Store the matrix oriented (lo,hi): if the caller passed (a,b) already
	// in canonical order keep it as-is, else transpose so [v_lo][v_hi] is
	// always the row-major convention internally.
	if a == key.lo {
		p.matrices[key] = matrix
		return nil
	}
	transposed := make([][]int64, p.domainSize)
	for i := range transposed {
		transposed[i] = make([]int64, p.domainSize)
		for j := range transposed[i] {
			transposed[i][j] = matrix[j][i]
		}
	}
	p.matrices[key] = transposed
	return nil
}

// IsConnected reports whether (a,b) carries an explicit constraint.
func (p *Problem) IsConnected(a, b party.ID) bool {
	if a == b {
		return false
	}
	_, ok := p.matrices[canonicalPair(a, b)]
	return ok
}

// CostMatrix returns the M×M matrix oriented [v_from][v_to]: entry [x][y]
// is the cost incurred when from picks x and to picks y. Unconnected pairs
// return an all-zero matrix, per spec.md §3's full-mesh view, so every
// caller can treat the graph as complete.
func (p *Problem) CostMatrix(from, to party.ID) [][]int64 {
	zero := func() [][]int64 {
		m := make([][]int64, p.domainSize)
		for i := range m {
			m[i] = make([]int64, p.domainSize)
		}
		return m
	}
	if from == to {
		return zero()
	}
	key := canonicalPair(from, to)
	m, ok := p.matrices[key]
	if !ok {
		return zero()
	}
	if from == key.lo {
		return m
	}
	transposed := make([][]int64, p.domainSize)
	for i := range transposed {
		transposed[i] = make([]int64, p.domainSize)
		for j := range transposed[i] {
			transposed[i][j] = m[j][i]
		}
	}
	return transposed
}

// CostRow returns the M-length vector cost(from,to)[fromValue][x] for x in
// [0,M): the contribution agent from makes to agent to's per-candidate
// cost, as field elements ready for Shamir sharing — huddle's primary
// consumer (spec.md §4.7).
func (p *Problem) CostRow(from, to party.ID, fromValue int) []field.Elem {
	row := p.CostMatrix(from, to)[fromValue]
	out := make([]field.Elem, len(row))
	for i, v := range row {
		out[i] = field.New(v)
	}
	return out
}

// CostView is the full N×N matrix-of-matrices materialization of a Problem:
// View[a][b] is CostMatrix(a,b), with unconnected pairs and the diagonal
// substituted by an all-zero matrix, so callers never need IsConnected
// checks of their own.
type CostView struct {
	Participants party.Set
	View         map[party.ID]map[party.ID][][]int64
}

// FullMesh materializes the complete N×N cost view described in spec.md §3:
// every pair, connected or not, resolves to an M×M matrix.
func (p *Problem) FullMesh() CostView {
	view := make(map[party.ID]map[party.ID][][]int64, len(p.participants))
	for _, a := range p.participants {
		row := make(map[party.ID][][]int64, len(p.participants))
		for _, b := range p.participants {
			row[b] = p.CostMatrix(a, b)
		}
		view[a] = row
	}
	return CostView{Participants: p.participants, View: view}
}

// TotalCost sums CostMatrix lookups over every connected pair for the
// given assignment (agent id -> chosen value), per spec.md §3.
func (p *Problem) TotalCost(assignment map[party.ID]int) (int64, error) {
	var total int64
	for i, a := range p.participants {
		for _, b := range p.participants[i+1:] {
			if !p.IsConnected(a, b) {
				continue
			}
			va, ok := assignment[a]
			if !ok {
				return 0, fmt.Errorf("dcop: assignment missing agent %d", a)
			}
			vb, ok := assignment[b]
			if !ok {
				return 0, fmt.Errorf("dcop: assignment missing agent %d", b)
			}
			total += p.CostMatrix(a, b)[va][vb]
		}
	}
	return total, nil
}
