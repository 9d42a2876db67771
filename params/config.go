package params

import (
	"github.com/ethereum/go-ethereum/common"
	validator "gopkg.in/go-playground/validator.v9"
)

// FeeToken describes an ERC-20 token the generic delegator accepts as fee
// payment. Rank orders fallback candidates: lower ranks are tried first when
// the preferred token cannot cover the estimated cost.
type FeeToken struct {
	Symbol   string         `json:"symbol" validate:"required"`
	Address  common.Address `json:"address" validate:"required"`
	Decimals uint8          `json:"decimals"`
	Rank     int            `json:"rank"`
}

// Network is the static configuration for one chain environment.
type Network struct {
	Name     string `json:"name" validate:"required"`
	ChainTag byte   `json:"chainTag"`
	ChainID  uint64 `json:"chainId" validate:"required"`

	// NodeURL is the base URL of the ledger node REST API.
	NodeURL string `json:"nodeUrl" validate:"required,url"`

	// DelegatorURL, when set, enables sponsor-paid fee delegation. It is the
	// first tier tried for non-extension connections.
	DelegatorURL string `json:"delegatorUrl" validate:"omitempty,url"`

	// GenericDelegatorURL, when set, enables the pay-with-alternate-token
	// delegation tier.
	GenericDelegatorURL string `json:"genericDelegatorUrl" validate:"omitempty,url"`

	// AggregatorURL is the base URL of the swap quote API.
	AggregatorURL string `json:"aggregatorUrl" validate:"omitempty,url"`

	// AllowedSwapContracts restricts which contract addresses clauses
	// returned by the aggregator may target. Empty disables filtering.
	AllowedSwapContracts []common.Address `json:"allowedSwapContracts"`

	// FeeTokens are the tokens accepted by the generic delegator.
	FeeTokens []FeeToken `json:"feeTokens"`

	// AllowedAppIDs is the allow-list of cross-app ecosystem app ids.
	AllowedAppIDs []string `json:"allowedAppIds"`

	// AccountFactory deploys smart accounts for embedded wallets on first
	// use.
	AccountFactory common.Address `json:"accountFactory"`
}

var validate = validator.New()

// Validate checks the configuration for structural problems. It is expected
// to be called once at composition time, before any client is constructed.
func (n *Network) Validate() error {
	return validate.Struct(n)
}

// AppAllowed reports whether the given ecosystem app id may be connected to
// through the cross-app provider.
func (n *Network) AppAllowed(appID string) bool {
	for _, id := range n.AllowedAppIDs {
		if id == appID {
			return true
		}
	}
	return false
}

// SwapContractAllowed reports whether a clause returned by the aggregator may
// target the given address. An empty allow-list permits everything.
func (n *Network) SwapContractAllowed(addr common.Address) bool {
	if len(n.AllowedSwapContracts) == 0 {
		return true
	}
	for _, a := range n.AllowedSwapContracts {
		if a == addr {
			return true
		}
	}
	return false
}

// FeeTokenBySymbol returns the configured fee token with the given symbol.
func (n *Network) FeeTokenBySymbol(symbol string) (FeeToken, bool) {
	for _, t := range n.FeeTokens {
		if t.Symbol == symbol {
			return t, true
		}
	}
	return FeeToken{}, false
}
