package commands

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/vechain-community/walletkit/swap"
)

var (
	quoteFrom     string
	quoteTo       string
	quoteAmount   string
	quoteUser     string
	quoteSlippage uint
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Fetch a swap quote from the configured aggregator",
	RunE:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().StringVar(&quoteFrom, "from", "", "Input token address (zero address for the native coin)")
	quoteCmd.Flags().StringVar(&quoteTo, "to", "", "Output token address")
	quoteCmd.Flags().StringVar(&quoteAmount, "amount", "", "Input amount in the token's smallest unit")
	quoteCmd.Flags().StringVar(&quoteUser, "user", "", "User address receiving the output")
	quoteCmd.Flags().UintVar(&quoteSlippage, "slippage-bps", 50, "Slippage tolerance in basis points")
	_ = quoteCmd.MarkFlagRequired("to")
	_ = quoteCmd.MarkFlagRequired("amount")
	_ = quoteCmd.MarkFlagRequired("user")
}

func swapParamsFromFlags() (swap.Params, error) {
	amount, ok := new(big.Int).SetString(quoteAmount, 10)
	if !ok {
		return swap.Params{}, errors.Errorf("invalid amount %q", quoteAmount)
	}
	p := swap.Params{
		FromTokenAddress: common.HexToAddress(quoteFrom),
		ToTokenAddress:   common.HexToAddress(quoteTo),
		AmountIn:         amount,
		UserAddress:      common.HexToAddress(quoteUser),
		SlippageBps:      quoteSlippage,
	}
	return p, p.Validate()
}

func runQuote(cmd *cobra.Command, args []string) error {
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

	aggregator := swap.NewAggregator("aggregator", network.AggregatorURL, network,
		swap.WithLogger(newLogger(cmd)))
	quote, err := aggregator.GetQuote(cmd.Context(), p)
	if err != nil {
		return err
	}

	out := map[string]interface{}{
		"aggregator":   quote.AggregatorName,
		"outputAmount": quote.OutputAmount.String(),
	}
	if quote.MinimumOutputAmount != nil {
		out["minimumOutputAmount"] = quote.MinimumOutputAmount.String()
	}
	encoded, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(encoded))
	return nil
}
