package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	tmos "github.com/tendermint/tendermint/libs/os"
	tmtime "github.com/tendermint/tendermint/types/time"

	"github.com/chainbft/pbft-core/cryptosign"
	"github.com/chainbft/pbft-core/types"
)

var validatorCount int

// GenGenesisCmd generates a genesis document for a cluster of freshly
// minted validators.
var GenGenesisCmd = &cobra.Command{
	Use:     "gen-genesis-block",
	Aliases: []string{"gen_genesis"},
	Short:   "Generate a genesis document for a cluster",
	RunE:    genGenesisFile,
}

func init() {
	GenGenesisCmd.Flags().StringVar(&chainID, "chain-id", "pbft-chain", "chain identifier for the new cluster")
	GenGenesisCmd.Flags().IntVar(&validatorCount, "validator-count", 4, "number of validators to generate keys for")
}

func genGenesisFile(cmd *cobra.Command, args []string) error {
	genFile := config.GenesisFile()
	if tmos.FileExists(genFile) {
		logger.Info("found genesis file", "path", genFile)
		return nil
	}

	validators := make([]types.GenesisValidator, validatorCount)
	for i := 0; i < validatorCount; i++ {
		pk := cryptosign.GenPrivKey().PubKey()
		validators[i] = types.GenesisValidator{
			Idx:     int32(i),
			Address: types.GetAddress(pk),
			PubKey:  pk,
			Name:    fmt.Sprintf("validator-%d", i),
		}
	}

	genDoc := types.GenesisDoc{
		ChainID:     chainID,
		GenesisTime: tmtime.Now(),
		Validators:  validators,
	}

	if err := genDoc.SaveAs(genFile); err != nil {
		return err
	}
	logger.Info("generated genesis file", "path", genFile)
	return nil
}
