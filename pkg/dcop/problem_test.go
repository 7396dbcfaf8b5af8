package dcop_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/pdcop/pkg/dcop"
	"github.com/luxfi/pdcop/pkg/party"
)

func triangle(t *testing.T) *dcop.Problem {
	t.Helper()
	p := dcop.New(party.NewSet(1, 2, 3), 2)
	require.NoError(t, p.SetMatrix(1, 2, [][]int64{{0, 1}, {2, 0}}))
	require.NoError(t, p.SetMatrix(2, 3, [][]int64{{0, 3}, {4, 0}}))
	return p
}

func TestCostMatrixTransposesForReversedPair(t *testing.T) {
	p := triangle(t)
	require.Equal(t, [][]int64{{0, 1}, {2, 0}}, p.CostMatrix(1, 2))
	require.Equal(t, [][]int64{{0, 2}, {1, 0}}, p.CostMatrix(2, 1))
}

func TestFullMeshSubstitutesZeroForUnconnectedPairs(t *testing.T) {
	p := triangle(t)
	view := p.FullMesh()
	require.False(t, p.IsConnected(1, 3))
	require.Equal(t, [][]int64{{0, 0}, {0, 0}}, view.View[1][3])
	require.Equal(t, [][]int64{{0, 1}, {2, 0}}, view.View[1][2])
}

func TestTotalCostSumsConnectedPairsOnly(t *testing.T) {
	p := triangle(t)
	total, err := p.TotalCost(map[party.ID]int{1: 1, 2: 0, 3: 1})
	require.NoError(t, err)
	// (1,2): from=1 picks v=1, to=2 picks v=0 -> CostMatrix(1,2)[1][0] = 2
	// (2,3): from=2 picks v=0, to=3 picks v=1 -> CostMatrix(2,3)[0][1] = 3
	require.Equal(t, int64(5), total)
}

func TestTotalCostRejectsMissingAssignment(t *testing.T) {
	p := triangle(t)
	_, err := p.TotalCost(map[party.ID]int{1: 0})
	require.Error(t, err)
}

func TestCostRowReturnsFieldElements(t *testing.T) {
	p := triangle(t)
	row := p.CostRow(1, 2, 1)
	require.Len(t, row, 2)
}
