package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tendermint/tendermint/libs/log"
	tmos "github.com/tendermint/tendermint/libs/os"

	"github.com/chainbft/pbft-core/backupstore"
	"github.com/chainbft/pbft-core/cryptosign"
	"github.com/chainbft/pbft-core/netio"
	"github.com/chainbft/pbft-core/node"
	"github.com/chainbft/pbft-core/pbft"
	"github.com/chainbft/pbft-core/peerseen"
	"github.com/chainbft/pbft-core/privval"
	"github.com/chainbft/pbft-core/roster"
	"github.com/chainbft/pbft-core/types"
)

// NewRunNodeCmd wraps nodeProvider as the node-start command: it loads
// genesis and the private validator key, assembles the roster, and hands
// the CLI layer's consensus core construction to the provider.
func NewRunNodeCmd(nodeProvider node.Provider) *cobra.Command {
	return &cobra.Command{
		Use:     "start",
		Aliases: []string{"node", "run"},
		Short:   "Run the PBFT node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(nodeProvider)
		},
	}
}

func runNode(nodeProvider node.Provider) error {
	genDoc, err := types.GenesisDocFromFile(config.GenesisFile())
	if err != nil {
		return fmt.Errorf("failed to load genesis file: %w", err)
	}

	privValKeyFile := config.PrivValidatorKeyFile()
	if !tmos.FileExists(privValKeyFile) {
		return fmt.Errorf("private validator key file %s does not exist, run init first", privValKeyFile)
	}
	pv := privval.LoadFilePV(privValKeyFile)

	selfIdx := int32(-1)
	selfAddr := pv.GetAddress()
	for _, v := range genDoc.Validators {
		if v.Address.Equal(selfAddr) {
			selfIdx = v.Idx
			break
		}
	}

	validators := genDoc.ToValidators()
	rst := roster.New(validators, selfIdx)

	store, err := netio.NewStore("chain", config.DBDir())
	if err != nil {
		return fmt.Errorf("failed to open chain store: %w", err)
	}

	backup, err := backupstore.Open(backupStoreName, config.DBDir(), logger)
	if err != nil {
		return fmt.Errorf("failed to open backup store: %w", err)
	}

	var core *pbft.Core
	buildCore := func(peerNet pbft.PeerNet) (*pbft.Core, error) {
		var err error
		core, err = pbft.New(pbft.Options{
			Config:   pbftConfig(genDoc.ChainID),
			Logger:   logger.With("module", "pbft"),
			Metrics:  pbft.NewMetrics(),
			SelfIdx:  selfIdx,
			PrivKey:  pv.Key.PrivKey,
			Roster:   rst,
			Chain:    store,
			Executor: netio.NewExecutor(),
			Crypto:   cryptosign.New(),
			Backup:   backup,
			PeerNet:  peerNet,
			OnSeal: func(sealed *types.SealedBlock, isPrimary bool) {
				onBlockSealed(core, store, rst, validators, selfIdx, sealed, isPrimary, logger)
			},
			Caps: peerseen.DefaultCaps(),
		})
		return core, err
	}

	n, err := nodeProvider(config, logger, rst, buildCore)
	if err != nil {
		return fmt.Errorf("failed to create node: %w", err)
	}

	if err := n.Start(); err != nil {
		return fmt.Errorf("failed to start node: %w", err)
	}
	logger.Info("started node", "chainID", genDoc.ChainID, "selfIdx", selfIdx)

	if selfIdx >= 0 {
		go sealLoop(n, rst, genDoc.ChainID)
	}

	tmos.TrapSignal(logger, func() {
		if err := n.Stop(); err != nil {
			logger.Error("error stopping node", "err", err)
		}
		store.Close()
		backup.Close()
	})

	select {}
}

func pbftConfig(chainID string) pbft.Config {
	cfg := pbft.DefaultConfig()
	cfg.ChainID = chainID
	return cfg
}

// sealLoop polls ShouldSeal and proposes an empty-bodied block whenever
// this node is the elected primary and has no committed-prepare recorded
// for the current height. There is no transaction queue wired into this module
// (mempool management is out of scope), so every proposal this node
// makes is a heartbeat block; an embedding application with a real
// transaction source calls GenerateSeal/GenerateCommit directly instead
// of running this loop.
func sealLoop(n *node.Node, rst *roster.Roster, chainID string) {
	core := n.Worker().Core()
	ticker := time.NewTicker(pbft.DefaultConfig().BaseTimeout / 2)
	defer ticker.Stop()

	for range ticker.C {
		if !core.ShouldSeal() {
			continue
		}
		header := types.Header{ChainID: chainID}
		block := []byte{}
		if rst.MinerCount() == 1 {
			core.GenerateCommit(header, block, core.CurrentView())
		} else {
			core.GenerateSeal(header, block)
		}
	}
}

// onBlockSealed is the commit tail for a block that has reached sign and
// commit quorum: it persists the block to the chain store, re-snapshots
// the roster at the new height so height-indexed lookups (ForEachMinerPeer,
// ValidatorsHash) follow the live chain instead of the genesis snapshot,
// and tells the core to advance past this height.
func onBlockSealed(core *pbft.Core, store *netio.Store, rst *roster.Roster, validators []*types.Validator, selfIdx int32, sealed *types.SealedBlock, isPrimary bool, logger log.Logger) {
	hash := sealed.Header.Hash()
	store.AddBlockCache(&pbft.ExecutedBlock{Header: sealed.Header, Body: sealed.Body})
	store.Advance(sealed.Header.Height, hash)
	rst.Advance(sealed.Header.Height+1, validators, selfIdx)
	// OnSeal runs while the core holds its mutex, and ReportBlock takes
	// that mutex, so it runs on its own goroutine.
	go core.ReportBlock(sealed.Header.Height, hash)
	logger.Info("committed block", "height", sealed.Header.Height, "isPrimary", isPrimary, "hash", hash)
}
