// Package config describes one runnable DCOP iteration: problem shape,
// algorithm choice, seeds, and per-algorithm tuning knobs, bound to command
// line flags the same way the teacher's CLI binds its keygen/sign/reshare
// parameters (cmd/threshold-cli/main.go's package-level flag variables
// registered via cobra's StringVarP/IntVarP family). Grounded on that file's
// flag layout, adapted from signing-session parameters to a DCOP iteration's
// agent count, domain size, and algorithm selection.
package config

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/luxfi/pdcop/pkg/agent"
)

// Config is a fully-resolved DCOP run: how many agents, how large their
// value domain is, which round protocol to drive them with, and the
// per-algorithm tuning knobs spec.md §4.8-4.10 expose.
type Config struct {
	Agents     int
	Domain     int
	Algorithm  string
	Seed       uint64
	MaxRounds  int
	MaxSteps   int
	Density    float64
	Stochastic float64
	LastRound  int
	Paillier   int
}

// Default returns the flag defaults the CLI starts from, mirroring the
// teacher's practice of pre-populating its package-level flag variables
// before registering them.
func Default() *Config {
	return &Config{
		Agents:     5,
		Domain:     3,
		Algorithm:  "pdsa",
		Seed:       1,
		MaxRounds:  50,
		MaxSteps:   20000,
		Density:    0.5,
		Stochastic: 0.7,
		LastRound:  10,
		Paillier:   256,
	}
}

// BindFlags registers c's fields onto fs, following the teacher's
// StringVarP/IntVarP/Float64VarP binding style so the returned Config is
// mutated in place once fs.Parse runs.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.IntVarP(&c.Agents, "agents", "n", c.Agents, "number of cooperating agents")
	fs.IntVarP(&c.Domain, "domain", "m", c.Domain, "per-agent value domain size")
	fs.StringVarP(&c.Algorithm, "algorithm", "a", c.Algorithm, "round protocol: pdsa, pmgm, pmaxsum")
	fs.Uint64Var(&c.Seed, "seed", c.Seed, "base PRNG seed, deterministic across a run")
	fs.IntVar(&c.MaxRounds, "max-rounds", c.MaxRounds, "halting round count")
	fs.IntVar(&c.MaxSteps, "max-steps", c.MaxSteps, "scheduler step budget before giving up")
	fs.Float64Var(&c.Density, "density", c.Density, "probability any two agents are constrained")
	fs.Float64Var(&c.Stochastic, "stochastic", c.Stochastic, "PDSA's per-round update probability")
	fs.IntVar(&c.LastRound, "pmaxsum-subrounds", c.LastRound, "PMAXSUM's Q/R subround count")
	fs.IntVar(&c.Paillier, "paillier-bits", c.Paillier, "PMAXSUM's Paillier modulus size in bits")
}

// Algo parses Algorithm into an agent.Algorithm, reporting an error for
// anything unrecognized rather than silently defaulting.
func (c *Config) Algo() (agent.Algorithm, error) {
	switch c.Algorithm {
	case "pdsa":
		return agent.PDSA, nil
	case "pmgm":
		return agent.PMGM, nil
	case "pmaxsum":
		return agent.PMAXSUM, nil
	default:
		return 0, fmt.Errorf("config: unknown algorithm %q (want pdsa, pmgm, or pmaxsum)", c.Algorithm)
	}
}

// Validate reports whether c describes a runnable iteration.
func (c *Config) Validate() error {
	if c.Agents < 2 {
		return fmt.Errorf("config: agents must be >= 2, got %d", c.Agents)
	}
	if c.Domain < 2 {
		return fmt.Errorf("config: domain must be >= 2, got %d", c.Domain)
	}
	if _, err := c.Algo(); err != nil {
		return err
	}
	if c.Density < 0 || c.Density > 1 {
		return fmt.Errorf("config: density must be in [0,1], got %f", c.Density)
	}
	if c.Algorithm == "pdsa" && (c.Stochastic <= 0 || c.Stochastic > 1) {
		return fmt.Errorf("config: stochastic must be in (0,1], got %f", c.Stochastic)
	}
	if c.Algorithm == "pmaxsum" && c.LastRound <= 0 {
		return fmt.Errorf("config: pmaxsum-subrounds must be positive, got %d", c.LastRound)
	}
	return nil
}
