package commands

import (
	"github.com/spf13/cobra"

	"github.com/chainbft/pbft-core/backupstore"
)

const backupStoreName = "backup"

// RepairBackupCmd attempts to recover a corrupted committed-prepare backup
// store before the node is started again.
var RepairBackupCmd = &cobra.Command{
	Use:   "repair-backup",
	Short: "Repair the committed-prepare backup store",
	RunE:  repairBackup,
}

func repairBackup(cmd *cobra.Command, args []string) error {
	dir := config.DBDir()
	if err := backupstore.Repair(backupStoreName, dir); err != nil {
		return err
	}
	logger.Info("repaired backup store", "dir", dir)
	return nil
}
