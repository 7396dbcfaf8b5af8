package round_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/pdcop/pkg/round"
)

func TestNKeyIsSymmetric(t *testing.T) {
	require.Equal(t, round.NKey(1, 2), round.NKey(2, 1))
	require.NotEqual(t, round.NKey(1, 2), round.NKey(1, 3))
}

func TestPhaseString(t *testing.T) {
	require.Equal(t, "Complete", round.PhaseComplete.String())
	require.Equal(t, "Failed", round.PhaseFailed.String())
	require.Contains(t, round.Phase(99).String(), "Phase(99)")
}

func TestEKeyAndFKeyIDsAreDistinctPerAgent(t *testing.T) {
	require.NotEqual(t, round.EKeyID(1), round.EKeyID(2))
	require.NotEqual(t, round.EKeyID(1), round.FKeyID(1))
}
