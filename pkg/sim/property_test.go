package sim_test

import (
	"math/rand"
	"testing/quick"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/luxfi/pdcop/internal/xlog"
	"github.com/luxfi/pdcop/pkg/agent"
	"github.com/luxfi/pdcop/pkg/dcop"
	"github.com/luxfi/pdcop/pkg/party"
	"github.com/luxfi/pdcop/pkg/protocol"
	"github.com/luxfi/pdcop/pkg/sim"
)

var _ = Describe("Simulator property tests", func() {
	Describe("PDSA over random instances", func() {
		It("always reaches a valid, fully-assigned outcome", func() {
			property := func(seedRaw uint32, agentsRaw uint8) bool {
				n := int(agentsRaw%4) + 2 // n in [2,5]
				domain := 3
				seed := uint64(seedRaw)

				problem := dcop.GenerateRandom(rand.New(rand.NewSource(int64(seed))), n, domain, 0.5, 8)
				participants := problem.Participants()

				s := sim.New(participants, xlog.Nop(), func(self party.ID, transport protocol.Transport) *agent.Agent {
					cfg := agent.Config{
						Algorithm:    agent.PDSA,
						BaseSeed:     seed,
						MaxRounds:    6,
						InitialValue: int(self) % domain,
						Stochastic:   0.8,
					}
					return agent.New(self, participants, transport, problem, nil, xlog.Nop(), cfg)
				})

				if err := s.Run(2000); err != nil {
					return false
				}
				if !s.Done() || len(s.Faults()) != 0 {
					return false
				}
				values := s.Values()
				if len(values) != n {
					return false
				}
				for _, v := range values {
					if v < 0 || v >= domain {
						return false
					}
				}
				return true
			}

			Expect(quick.Check(property, &quick.Config{MaxCount: 15})).To(Succeed())
		})
	})
})
