package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	tmjson "github.com/tendermint/tendermint/libs/json"

	"github.com/chainbft/pbft-core/privval"
)

// ShowValidatorCmd prints this node's consensus public key, loading or
// generating its private validator key as needed.
var ShowValidatorCmd = &cobra.Command{
	Use:     "show-validator",
	Aliases: []string{"show_validator"},
	Short:   "Show this node's validator key",
	RunE:    showValidator,
}

func showValidator(cmd *cobra.Command, args []string) error {
	pv := privval.LoadOrGenFilePV(int32(idx), config.PrivValidatorKeyFile())
	pubKey, err := pv.GetPubKey()
	if err != nil {
		return fmt.Errorf("can't get pubkey: %w", err)
	}
	bz, err := tmjson.Marshal(pubKey)
	if err != nil {
		return err
	}
	fmt.Println(string(bz))
	return nil
}
