package dcop_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/pdcop/pkg/dcop"
	"github.com/luxfi/pdcop/pkg/party"
)

func TestGenerateRandomIsDeterministicForSameSeed(t *testing.T) {
	a := dcop.GenerateRandom(rand.New(rand.NewSource(7)), 5, 3, 0.6, 10)
	b := dcop.GenerateRandom(rand.New(rand.NewSource(7)), 5, 3, 0.6, 10)

	for i := 1; i <= 5; i++ {
		for j := 1; j <= 5; j++ {
			require.Equal(t, a.CostMatrix(party.ID(i), party.ID(j)), b.CostMatrix(party.ID(i), party.ID(j)))
		}
	}
}

func TestGenerateRandomRespectsDomainSize(t *testing.T) {
	p := dcop.GenerateRandom(rand.New(rand.NewSource(1)), 4, 3, 1, 10)
	require.Equal(t, 3, p.DomainSize())
	for i := 1; i <= 4; i++ {
		for j := 1; j <= 4; j++ {
			m := p.CostMatrix(party.ID(i), party.ID(j))
			require.Len(t, m, 3)
			for _, row := range m {
				require.Len(t, row, 3)
			}
		}
	}
}

func TestGenerateRandomZeroDensityIsUnconnected(t *testing.T) {
	p := dcop.GenerateRandom(rand.New(rand.NewSource(1)), 4, 3, 0, 10)
	for i := 1; i <= 4; i++ {
		for j := 1; j <= 4; j++ {
			if i == j {
				continue
			}
			require.False(t, p.IsConnected(party.ID(i), party.ID(j)))
		}
	}
}
