// Command pdcop-sim is a thin demo CLI wiring pkg/config, pkg/dcop,
// pkg/sim, and pkg/agent together: it generates a random DCOP instance,
// drives it to completion with the chosen round protocol, and prints the
// resulting assignment and total cost. Grounded on the teacher's cobra-based
// entry point (cmd/threshold-cli/main.go's single rootCmd with one RunE per
// subcommand), reduced to this module's single "run" operation since there
// is no keygen/sign/reshare/export session lifecycle here to subcommand.
package main

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/spf13/cobra"

	"github.com/luxfi/pdcop/internal/xlog"
	"github.com/luxfi/pdcop/pkg/agent"
	"github.com/luxfi/pdcop/pkg/config"
	"github.com/luxfi/pdcop/pkg/dcop"
	"github.com/luxfi/pdcop/pkg/paillier"
	"github.com/luxfi/pdcop/pkg/party"
	"github.com/luxfi/pdcop/pkg/protocol"
	"github.com/luxfi/pdcop/pkg/sim"
)

var cfg = config.Default()

var rootCmd = &cobra.Command{
	Use:   "pdcop-sim",
	Short: "Run a privacy-preserving DCOP round protocol over a random instance",
	Long: `pdcop-sim generates a random distributed constraint optimization instance,
runs the chosen round protocol (pdsa, pmgm, or pmaxsum) to completion over an
in-process simulated network, and prints the resulting assignment.`,
	RunE: run,
}

func init() {
	cfg.BindFlags(rootCmd.Flags())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	algo, err := cfg.Algo()
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(int64(cfg.Seed)))
	problem := dcop.GenerateRandom(rng, cfg.Agents, cfg.Domain, cfg.Density, 10)
	participants := problem.Participants()

	log := xlog.New(os.Stderr, xlog.Warn, "pdcop-sim")

	var keys *paillier.KeyManager
	if algo == agent.PMAXSUM {
		keys = paillier.NewKeyManager()
	}

	s := sim.New(participants, log, func(self party.ID, transport protocol.Transport) *agent.Agent {
		acfg := agent.Config{
			Algorithm:    algo,
			BaseSeed:     cfg.Seed,
			MaxRounds:    cfg.MaxRounds,
			InitialValue: int(self) % cfg.Domain,
			Stochastic:   cfg.Stochastic,
			LastRound:    cfg.LastRound,
			PaillierBits: cfg.Paillier,
		}
		return agent.New(self, participants, transport, problem, keys, log, acfg)
	})

	if err := s.Run(cfg.MaxSteps); err != nil {
		for id, ferr := range s.Faults() {
			fmt.Fprintf(os.Stderr, "agent %d: %v\n", id, ferr)
		}
		return err
	}

	values := s.Values()
	assignment := make(map[party.ID]int, len(values))
	for id, v := range values {
		assignment[id] = v
	}
	total, err := problem.TotalCost(assignment)
	if err != nil {
		return err
	}

	fmt.Printf("algorithm=%s agents=%d domain=%d steps=%d totalCost=%d\n",
		cfg.Algorithm, cfg.Agents, cfg.Domain, s.Steps(), total)
	for _, id := range participants {
		fmt.Printf("  agent %d -> value %d\n", id, values[id])
	}
	return nil
}
