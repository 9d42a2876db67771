package swap

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/vechain-community/walletkit/abispec"
)

// Params are the inputs of one swap. AmountIn is always the smallest integer
// unit of the input token.
type Params struct {
	FromTokenAddress common.Address
	ToTokenAddress   common.Address
	AmountIn         *big.Int
	UserAddress      common.Address
	// SlippageBps is the tolerated slippage in basis points.
	SlippageBps uint
}

// Validate rejects structurally impossible swaps before any network call.
func (p Params) Validate() error {
	if p.FromTokenAddress == p.ToTokenAddress {
		return errors.New("fromToken and toToken must differ")
	}
	if p.AmountIn == nil || p.AmountIn.Sign() <= 0 {
		return errors.New("amountIn must be a positive integer")
	}
	return nil
}

// FromNative reports whether the input side is the native coin.
func (p Params) FromNative() bool {
	return p.FromTokenAddress == (common.Address{})
}

// ToNative reports whether the output side is the native coin.
func (p Params) ToNative() bool {
	return p.ToTokenAddress == (common.Address{})
}

// Quote is one priced route returned by an aggregator. A quote goes stale as
// pool state moves; there is no automatic invalidation, so callers should
// re-quote before submission if time has elapsed.
type Quote struct {
	AggregatorName      string
	Aggregator          *Aggregator
	OutputAmount        *big.Int
	MinimumOutputAmount *big.Int
	PriceImpact         float64
	Path                []common.Address
	GasCostVTHO         float64
	Reverted            bool
	RevertReason        string

	clauses []wireClause
}

// Simulation is the outcome of a dry run of swap clauses: the estimated
// VTHO cost and whether the token flow checks passed. Error holds a
// user-presentable mismatch description when Success is false.
type Simulation struct {
	GasCostVTHO float64 `json:"gasCostVTHO"`
	Success     bool    `json:"success"`
	Error       string  `json:"error,omitempty"`
}

/// wireClause is the aggregator's clause shape: target, value and a function
// call carrying an ABI description plus raw arguments instead of encoded
// call data.
type wireClause struct {
	To           common.Address `json:"to"`
	Value        string         `json:"value"`
	Comment      string         `json:"comment,omitempty"`
	FunctionCall *functionCall  `json:"functionCall,omitempty"`
}

type functionCall struct {
	FunctionName string            `json:"functionName,omitempty"`
	Name         string            `json:"name,omitempty"`
	ABI          json.RawMessage   `json:"abi"`
	Args         []json.RawMessage `json:"args"`
}

func (f *functionCall) name() string {
	if f.FunctionName != "" {
		return f.FunctionName
	}
	return f.Name
}

func abiMethod(f *functionCall) (*abispec.Method, error) {
	return abispec.ParseFunctionABI(f.ABI, f.name())
}
