package commands

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/vechain-community/walletkit/thor"
)

var (
	statusWatch    bool
	statusInterval int
)

var statusCmd = &cobra.Command{
	Use:   "status <tx-id>",
	Short: "Check the on-chain status of a transaction",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "Poll until the transaction confirms")
	statusCmd.Flags().IntVar(&statusInterval, "interval", 5, "Polling interval in seconds (when watching)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	network, err := loadNetwork()
	if err != nil {
		return err
	}
	client := thor.NewClient(network.NodeURL, thor.WithLogger(newLogger(cmd)))
	txID := args[0]

	for {
		receipt, err := client.TransactionReceipt(cmd.Context(), txID)
		switch {
		case errors.Is(err, thor.ErrReceiptNotFound):
			if !statusWatch {
				fmt.Println("pending: no receipt yet")
				return nil
			}
			time.Sleep(time.Duration(statusInterval) * time.Second)
			continue
		case err != nil:
			return err
		}

		if receipt.Reverted {
			fmt.Printf("reverted in block %d\n", receipt.Meta.BlockNumber)
			return errors.New("transaction reverted")
		}
		fmt.Printf("confirmed in block %d, gas used %d, paid by %s\n",
			receipt.Meta.BlockNumber, receipt.GasUsed, receipt.GasPayer.Hex())
		return nil
	}
}
