package config_test

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/pdcop/pkg/agent"
	"github.com/luxfi/pdcop/pkg/config"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, config.Default().Validate())
}

func TestBindFlagsOverridesDefault(t *testing.T) {
	cfg := config.Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--agents=8", "--algorithm=pmgm"}))

	require.Equal(t, 8, cfg.Agents)
	require.Equal(t, "pmgm", cfg.Algorithm)
	algo, err := cfg.Algo()
	require.NoError(t, err)
	require.Equal(t, agent.PMGM, algo)
}

func TestAlgoRejectsUnknown(t *testing.T) {
	cfg := config.Default()
	cfg.Algorithm = "nope"
	_, err := cfg.Algo()
	require.Error(t, err)
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsTooFewAgents(t *testing.T) {
	cfg := config.Default()
	cfg.Agents = 1
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsBadDensity(t *testing.T) {
	cfg := config.Default()
	cfg.Density = 1.5
	require.Error(t, cfg.Validate())
}

func TestValidatePMAXSUMRequiresSubrounds(t *testing.T) {
	cfg := config.Default()
	cfg.Algorithm = "pmaxsum"
	cfg.LastRound = 0
	require.Error(t, cfg.Validate())
}
