package sim_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/pdcop/internal/xlog"
	"github.com/luxfi/pdcop/pkg/agent"
	"github.com/luxfi/pdcop/pkg/dcop"
	"github.com/luxfi/pdcop/pkg/paillier"
	"github.com/luxfi/pdcop/pkg/party"
	"github.com/luxfi/pdcop/pkg/protocol"
	"github.com/luxfi/pdcop/pkg/sim"
)

func lineProblem(t *testing.T) *dcop.Problem {
	t.Helper()
	participants := party.NewSet(1, 2, 3)
	problem := dcop.New(participants, 3)
	// A 3-value line: agent i prefers to disagree with its neighbor,
	// cost 0 off-diagonal and 5 on-diagonal.
	matrix := [][]int64{{5, 0, 0}, {0, 5, 0}, {0, 0, 5}}
	require.NoError(t, problem.SetMatrix(1, 2, matrix))
	require.NoError(t, problem.SetMatrix(2, 3, matrix))
	return problem
}

func TestSimulatorRunsPDSAToCompletion(t *testing.T) {
	problem := lineProblem(t)
	participants := problem.Participants()

	s := sim.New(participants, xlog.Nop(), func(self party.ID, transport protocol.Transport) *agent.Agent {
		cfg := agent.Config{
			Algorithm:    agent.PDSA,
			BaseSeed:     42,
			MaxRounds:    5,
			InitialValue: int(self) % problem.DomainSize(),
			Stochastic:   0.7,
		}
		return agent.New(self, participants, transport, problem, nil, xlog.Nop(), cfg)
	})

	require.NoError(t, s.Run(500))
	require.True(t, s.Done())
	require.Empty(t, s.Faults())
	require.True(t, s.NetworkIdle())

	values := s.Values()
	require.Len(t, values, 3)
	for _, id := range participants {
		v := values[id]
		require.GreaterOrEqual(t, v, 0)
		require.Less(t, v, problem.DomainSize())
	}
}

func TestSimulatorRunsPMGMToCompletion(t *testing.T) {
	problem := lineProblem(t)
	participants := problem.Participants()

	s := sim.New(participants, xlog.Nop(), func(self party.ID, transport protocol.Transport) *agent.Agent {
		cfg := agent.Config{
			Algorithm:    agent.PMGM,
			BaseSeed:     7,
			MaxRounds:    5,
			InitialValue: int(self) % problem.DomainSize(),
		}
		return agent.New(self, participants, transport, problem, nil, xlog.Nop(), cfg)
	})

	require.NoError(t, s.Run(500))
	require.True(t, s.Done())
	require.Empty(t, s.Faults())
}

func TestSimulatorRunsPMAXSUMToCompletion(t *testing.T) {
	problem := lineProblem(t)
	participants := problem.Participants()
	keys := paillier.NewKeyManager()

	s := sim.New(participants, xlog.Nop(), func(self party.ID, transport protocol.Transport) *agent.Agent {
		cfg := agent.Config{
			Algorithm:    agent.PMAXSUM,
			BaseSeed:     99,
			MaxRounds:    3,
			InitialValue: int(self) % problem.DomainSize(),
			LastRound:    2,
			PaillierBits: 128,
		}
		return agent.New(self, participants, transport, problem, keys, xlog.Nop(), cfg)
	})

	require.NoError(t, s.Run(2000))
	require.True(t, s.Done())
	require.Empty(t, s.Faults())
}

// TestPDSAConvergesE4 is spec.md §8's E4 worked example: a 2-agent, 3-value
// constraint with a single fixed cost matrix. With stochastic=1 (every
// agent always attempts an update), a single PDSA round from (0,0) must
// converge both agents to the pair realizing the matrix's global minimum.
func TestPDSAConvergesE4(t *testing.T) {
	participants := party.NewSet(1, 2)
	problem := dcop.New(participants, 3)
	require.NoError(t, problem.SetMatrix(1, 2, [][]int64{
		{5, 1, 4},
		{2, 0, 7},
		{3, 6, 8},
	}))

	s := sim.New(participants, xlog.Nop(), func(self party.ID, transport protocol.Transport) *agent.Agent {
		cfg := agent.Config{
			Algorithm:    agent.PDSA,
			BaseSeed:     1,
			MaxRounds:    1,
			InitialValue: 0,
			Stochastic:   1,
		}
		return agent.New(self, participants, transport, problem, nil, xlog.Nop(), cfg)
	})

	require.NoError(t, s.Run(200))
	require.True(t, s.Done())
	require.Empty(t, s.Faults())

	values := s.Values()
	require.Equal(t, 1, values[1])
	require.Equal(t, 1, values[2])

	cost, err := problem.TotalCost(values)
	require.NoError(t, err)
	require.Equal(t, int64(0), cost)
}

// trianglePMGMProblem is spec.md §8's E5 setup: a 3-agent triangle where,
// starting every agent at value 0, agent 2 is the only one with a positive
// switching gain (agents 1 and 3 are already at their own cost minimum).
func trianglePMGMProblem(t *testing.T) *dcop.Problem {
	t.Helper()
	participants := party.NewSet(1, 2, 3)
	problem := dcop.New(participants, 2)
	require.NoError(t, problem.SetMatrix(1, 2, [][]int64{{0, 3}, {1, 3}}))
	require.NoError(t, problem.SetMatrix(2, 3, [][]int64{{10, 10}, {0, 0}}))
	require.NoError(t, problem.SetMatrix(1, 3, [][]int64{{1, 1}, {1, 1}}))
	return problem
}

// TestPMGMOnlyMaxGainAgentUpdatesE5 is spec.md §8's E5 worked example:
// after one PMGM round over trianglePMGMProblem, only agent 2 (the sole
// positive-gain agent) changes its selected value; agents 1 and 3 are
// unchanged.
func TestPMGMOnlyMaxGainAgentUpdatesE5(t *testing.T) {
	problem := trianglePMGMProblem(t)
	participants := problem.Participants()

	s := sim.New(participants, xlog.Nop(), func(self party.ID, transport protocol.Transport) *agent.Agent {
		cfg := agent.Config{
			Algorithm:    agent.PMGM,
			BaseSeed:     11,
			MaxRounds:    1,
			InitialValue: 0,
		}
		return agent.New(self, participants, transport, problem, nil, xlog.Nop(), cfg)
	})

	require.NoError(t, s.Run(500))
	require.True(t, s.Done())
	require.Empty(t, s.Faults())

	values := s.Values()
	require.Equal(t, 0, values[1], "agent 1 has no positive gain and must not move")
	require.Equal(t, 1, values[2], "agent 2 is the sole positive-gain agent and must switch to its best value")
	require.Equal(t, 0, values[3], "agent 3 has no positive gain and must not move")
}

// vanillaMaxSum is a direct plaintext re-implementation of
// pkg/round.PMAXSUM's Q/R/S message-passing arithmetic, without any
// Paillier encryption: same zero-initialized outgoing Q, same per-neighbor
// R computed as min_y(cost(i,j)[x][y] + Q_{j->i}[y]), same marginal
// S_i[x] = sum_j R_{i->j}[x], same next-round Q_{i->j}[x] = S_i[x] -
// R_{i->j}[x]. It exists only to give E6's round-for-round equivalence
// check (spec.md §8) something to compare the encrypted run against.
func vanillaMaxSum(problem *dcop.Problem, lastRound int) map[party.ID]int {
	participants := problem.Participants()
	domainSize := problem.DomainSize()

	neighbors := make(map[party.ID]party.Set, len(participants))
	for _, i := range participants {
		for _, j := range participants {
			if i != j && problem.IsConnected(i, j) {
				neighbors[i] = append(neighbors[i], j)
			}
		}
	}

	q := make(map[party.ID]map[party.ID][]int64, len(participants))
	for _, i := range participants {
		q[i] = make(map[party.ID][]int64, len(neighbors[i]))
		for _, j := range neighbors[i] {
			q[i][j] = make([]int64, domainSize)
		}
	}

	s := make(map[party.ID][]int64, len(participants))
	for sub := 0; sub < lastRound; sub++ {
		r := make(map[party.ID]map[party.ID][]int64, len(participants))
		for _, i := range participants {
			r[i] = make(map[party.ID][]int64, len(neighbors[i]))
			for _, j := range neighbors[i] {
				incoming := q[j][i]
				row := make([]int64, domainSize)
				for x := 0; x < domainSize; x++ {
					costRow := problem.CostRow(i, j, x)
					var best int64
					for y, cv := range costRow {
						v := int64(cv) + incoming[y]
						if y == 0 || v < best {
							best = v
						}
					}
					row[x] = best
				}
				r[i][j] = row
			}
		}

		s = make(map[party.ID][]int64, len(participants))
		for _, i := range participants {
			sv := make([]int64, domainSize)
			for _, j := range neighbors[i] {
				for x := 0; x < domainSize; x++ {
					sv[x] += r[i][j][x]
				}
			}
			s[i] = sv
		}

		if sub < lastRound-1 {
			next := make(map[party.ID]map[party.ID][]int64, len(participants))
			for _, i := range participants {
				next[i] = make(map[party.ID][]int64, len(neighbors[i]))
				for _, j := range neighbors[i] {
					out := make([]int64, domainSize)
					for x := 0; x < domainSize; x++ {
						out[x] = s[i][x] - r[i][j][x]
					}
					next[i][j] = out
				}
			}
			q = next
		}
	}

	result := make(map[party.ID]int, len(participants))
	for _, i := range participants {
		marginal := s[i]
		best, bestX := marginal[0], 0
		for x := 1; x < len(marginal); x++ {
			if marginal[x] < best {
				best, bestX = marginal[x], x
			}
		}
		result[i] = bestX
	}
	return result
}

// TestPMAXSUMMatchesVanillaMaxSumE6 is spec.md §8's E6 worked example: a
// PMAXSUM-driven round over a fixed seed must reach the same per-agent
// decision (and therefore the same total cost) as vanillaMaxSum run with
// the same lastRound over the same problem, proving the Paillier
// homomorphic layer introduces no error beyond plain field arithmetic.
func TestPMAXSUMMatchesVanillaMaxSumE6(t *testing.T) {
	problem := lineProblem(t)
	participants := problem.Participants()
	const lastRound = 10
	keys := paillier.NewKeyManager()

	s := sim.New(participants, xlog.Nop(), func(self party.ID, transport protocol.Transport) *agent.Agent {
		cfg := agent.Config{
			Algorithm:    agent.PMAXSUM,
			BaseSeed:     2026,
			MaxRounds:    1,
			InitialValue: int(self) % problem.DomainSize(),
			LastRound:    lastRound,
			PaillierBits: 128,
		}
		return agent.New(self, participants, transport, problem, keys, xlog.Nop(), cfg)
	})

	require.NoError(t, s.Run(2000))
	require.True(t, s.Done())
	require.Empty(t, s.Faults())

	encrypted := s.Values()
	plaintext := vanillaMaxSum(problem, lastRound)
	for _, id := range participants {
		require.Equal(t, plaintext[id], encrypted[id], "agent %d: encrypted and plaintext MAXSUM disagree", id)
	}

	encryptedCost, err := problem.TotalCost(encrypted)
	require.NoError(t, err)
	plaintextCost, err := problem.TotalCost(plaintext)
	require.NoError(t, err)
	require.Equal(t, plaintextCost, encryptedCost)
}

func TestSimulatorResetAfterRun(t *testing.T) {
	problem := lineProblem(t)
	participants := problem.Participants()

	s := sim.New(participants, xlog.Nop(), func(self party.ID, transport protocol.Transport) *agent.Agent {
		cfg := agent.Config{
			Algorithm:    agent.PDSA,
			BaseSeed:     1,
			MaxRounds:    2,
			InitialValue: 0,
			Stochastic:   0.5,
		}
		return agent.New(self, participants, transport, problem, nil, xlog.Nop(), cfg)
	})
	require.NoError(t, s.Run(200))
	s.Reset()
}
