package tokens

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/vechain-community/walletkit/abispec"
	"github.com/vechain-community/walletkit/clause"
	"github.com/vechain-community/walletkit/thor"
)

// NativeTokenAddress is the sentinel address standing in for the native coin
// wherever a token address is expected.
var NativeTokenAddress = common.Address{}

// Token describes a fungible asset.
type Token struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
}

// IsNative reports whether the token is the chain's native coin.
func (t Token) IsNative() bool {
	return t.Address == NativeTokenAddress
}

// BalanceClient is the slice of the node client balance reads need.
type BalanceClient interface {
	InspectClauses(ctx context.Context, clauses []clause.Clause, caller common.Address, revision string) ([]thor.CallResult, error)
	GetAccount(ctx context.Context, addr common.Address) (*thor.Account, error)
}

// BalanceOf reads the holder's balance of the token. Native balances come
// from the account endpoint, token balances from a balanceOf inspection.
func BalanceOf(ctx context.Context, client BalanceClient, token Token, holder common.Address) (*big.Int, error) {
	if token.IsNative() {
		acc, err := client.GetAccount(ctx, holder)
		if err != nil {
			return nil, errors.Wrap(err, "native balance")
		}
		return acc.Balance.ToInt(), nil
	}

	data, err := abispec.EncodeBalanceOf(holder)
	if err != nil {
		return nil, err
	}
	call := clause.Clause{To: &token.Address, Value: new(big.Int), Data: data}
	results, err := client.InspectClauses(ctx, []clause.Clause{call}, holder, thor.RevisionBest)
	if err != nil {
		return nil, errors.Wrapf(err, "balance of %s", token.Symbol)
	}
	if results[0].Reverted {
		return nil, errors.Errorf("balanceOf reverted for %s: %s", token.Symbol, results[0].VMError)
	}
	return abispec.DecodeBalanceOf(results[0].Data)
}

// Balances reads the holder's balance for every token in the list, keyed by
// token address.
func Balances(ctx context.Context, client BalanceClient, list []Token, holder common.Address) (map[common.Address]*big.Int, error) {
	out := make(map[common.Address]*big.Int, len(list))
	for _, t := range list {
		balance, err := BalanceOf(ctx, client, t, holder)
		if err != nil {
			return nil, err
		}
		out[t.Address] = balance
	}
	return out, nil
}
