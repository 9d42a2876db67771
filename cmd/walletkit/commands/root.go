package commands

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/vechain-community/walletkit/params"
)

var rootCmd = &cobra.Command{
	Use:   "walletkit",
	Short: "Inspect swaps and transactions on a clause-based ledger",
	Long: `walletkit is a developer tool around the wallet toolkit library:
fetch swap quotes, dry-run swap clause sets against a node, and check
transaction status.

Examples:
  walletkit quote --from 0x0000... --to 0x5ef7... --amount 1000000000000000000
  walletkit simulate --from 0x0000... --to 0x5ef7... --amount 1000000000000000000 --user 0xf077...
  walletkit status 0xabc123...`,
	Version: "0.1.0",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("node-url", "", "Ledger node base URL")
	rootCmd.PersistentFlags().String("aggregator-url", "", "Swap aggregator base URL")
	rootCmd.PersistentFlags().String("network", "mainnet", "Network preset (mainnet|testnet)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	_ = viper.BindPFlag("node_url", rootCmd.PersistentFlags().Lookup("node-url"))
	_ = viper.BindPFlag("aggregator_url", rootCmd.PersistentFlags().Lookup("aggregator-url"))
	_ = viper.BindPFlag("network", rootCmd.PersistentFlags().Lookup("network"))
}

func initConfig() {
	viper.SetConfigName("walletkit")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.walletkit")
	viper.SetEnvPrefix("WALLETKIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

// loadNetwork resolves the configured network preset and applies overrides.
func loadNetwork() (*params.Network, error) {
	var network *params.Network
	switch viper.GetString("network") {
	case "testnet":
		network = params.TestnetNetwork()
	default:
		network = params.MainnetNetwork()
	}
	if url := viper.GetString("node_url"); url != "" {
		network.NodeURL = url
	}
	if url := viper.GetString("aggregator_url"); url != "" {
		network.AggregatorURL = url
	}
	if err := network.Validate(); err != nil {
		return nil, err
	}
	return network, nil
}

func newLogger(cmd *cobra.Command) *zap.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
