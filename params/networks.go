package params

import "github.com/ethereum/go-ethereum/common"

const (
	MainnetChainTag byte = 0x4a
	TestnetChainTag byte = 0x27
)

// MainnetNetwork returns the default mainnet configuration. Delegator and
// aggregator endpoints are left for the embedding application to fill in.
func MainnetNetwork() *Network {
	return &Network{
		Name:     "mainnet",
		ChainTag: MainnetChainTag,
		ChainID:  100009,
		NodeURL:  "https://mainnet.vechain.org",
		FeeTokens: []FeeToken{
			{
				Symbol:   "VTHO",
				Address:  common.HexToAddress("0x0000000000000000000000000000456E65726779"),
				Decimals: 18,
				Rank:     0,
			},
			{
				Symbol:   "B3TR",
				Address:  common.HexToAddress("0x5ef79995FE8a89e0812330E4378eB2660ceDe699"),
				Decimals: 18,
				Rank:     1,
			},
		},
	}
}

// TestnetNetwork returns the default testnet configuration.
func TestnetNetwork() *Network {
	return &Network{
		Name:     "testnet",
		ChainTag: TestnetChainTag,
		ChainID:  100010,
		NodeURL:  "https://testnet.vechain.org",
		FeeTokens: []FeeToken{
			{
				Symbol:   "VTHO",
				Address:  common.HexToAddress("0x0000000000000000000000000000456E65726779"),
				Decimals: 18,
				Rank:     0,
			},
		},
	}
}
