package commands

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/vechain-community/walletkit/swap"
	"github.com/vechain-community/walletkit/thor"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Quote a swap and dry-run its clauses against the node",
	Long: `Fetches a quote, builds the clause set and verifies through a node
dry run that executing it would move only the declared tokens. A failed
simulation means the clause set must not be submitted.`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().AddFlagSet(quoteCmd.Flags())
}

func runSimulate(cmd *cobra.Command, args []string) error {
	network, err := loadNetwork()
	if err != nil {
		return err
	}
	if network.AggregatorURL == "" {
		return errors.New("no aggregator URL configured")
	}
	p, err := swapParamsFromFlags()
	if err != nil {
		return err
	}

	logger := newLogger(cmd)
	aggregator := swap.NewAggregator("aggregator", network.AggregatorURL, network,
		swap.WithLogger(logger))
	client := thor.NewClient(network.NodeURL, thor.WithLogger(logger))

	quote, err := aggregator.GetQuote(cmd.Context(), p)
	if err != nil {
		return err
	}
	simulation, err := aggregator.SimulateSwap(cmd.Context(), client, p, quote)
	if err != nil {
		return err
	}

	encoded, _ := json.MarshalIndent(simulation, "", "  ")
	fmt.Println(string(encoded))
	if !simulation.Success {
		return errors.New("simulation failed; do not submit this swap")
	}
	return nil
}
