package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	cfg "github.com/tendermint/tendermint/config"
	tmos "github.com/tendermint/tendermint/libs/os"
	tmrand "github.com/tendermint/tendermint/libs/rand"
	"github.com/tendermint/tendermint/p2p"
	tmtime "github.com/tendermint/tendermint/types/time"

	"github.com/chainbft/pbft-core/privval"
	"github.com/chainbft/pbft-core/types"
)

// InitFilesCmd bootstraps a single node's private validator key, node key,
// and (if none of the cluster has one yet) a fresh one-validator genesis
// document.
var InitFilesCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a node's keys and genesis file",
	RunE:  initFiles,
}

func init() {
	InitFilesCmd.Flags().Int64Var(&idx, "idx", 0, "the validator's index in the roster")
}

func initFiles(cmd *cobra.Command, args []string) error {
	return initFilesWithConfig(config)
}

func initFilesWithConfig(config *cfg.Config) error {
	privValKeyFile := config.PrivValidatorKeyFile()

	var pv *privval.FilePV
	if tmos.FileExists(privValKeyFile) {
		pv = privval.LoadFilePV(privValKeyFile)
		logger.Info("found private validator", "keyFile", privValKeyFile)
	} else {
		pv = privval.GenFilePV(int32(idx), privValKeyFile)
		pv.Save()
		logger.Info("generated private validator", "keyFile", privValKeyFile)
	}

	nodeKeyFile := config.NodeKeyFile()
	if tmos.FileExists(nodeKeyFile) {
		logger.Info("found node key", "path", nodeKeyFile)
	} else {
		if _, err := p2p.LoadOrGenNodeKey(nodeKeyFile); err != nil {
			return err
		}
		logger.Info("generated node key", "path", nodeKeyFile)
	}

	genFile := config.GenesisFile()
	if tmos.FileExists(genFile) {
		logger.Info("found genesis file", "path", genFile)
		return nil
	}

	pubKey, err := pv.GetPubKey()
	if err != nil {
		return fmt.Errorf("can't get pubkey: %w", err)
	}

	genDoc := types.GenesisDoc{
		ChainID:     fmt.Sprintf("pbft-chain-%v", tmrand.Str(6)),
		GenesisTime: tmtime.Now(),
		Validators: []types.GenesisValidator{{
			Idx:     pv.Key.Idx,
			Address: types.GetAddress(pubKey),
			PubKey:  pubKey,
		}},
	}

	if err := genDoc.SaveAs(genFile); err != nil {
		return err
	}
	logger.Info("generated genesis file", "path", genFile)
	return nil
}
