package commands

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cfg "github.com/tendermint/tendermint/config"
	"github.com/tendermint/tendermint/libs/log"
)

var (
	config = cfg.DefaultConfig()
	logger = log.NewTMLogger(log.NewSyncWriter(os.Stdout))

	// flags shared by more than one subcommand
	idx     int64
	chainID string
)

// RootCmd is the base command every subcommand attaches to. cli.PrepareBaseCmd
// (called from main) wires --home/--log_level and binds the loaded config
// file into config via viper before any subcommand runs.
var RootCmd = &cobra.Command{
	Use:   "pbft-core",
	Short: "PBFT consensus node",
}

// deprecateSnakeCase logs a warning when a subcommand is invoked through
// one of its snake_case aliases.
func deprecateSnakeCase(cmd *cobra.Command, args []string) {
	if cmd.CalledAs() != cmd.Name() {
		logger.Info("snake_case commands are deprecated, use dash-case instead", "command", cmd.CalledAs())
	}
}

func init() {
	viper.SetEnvPrefix("PBFT")
	viper.AutomaticEnv()
	if v := viper.GetString("chain_id"); v != "" {
		chainID = v
	}
}
