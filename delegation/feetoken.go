package delegation

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/vechain-community/walletkit/params"
)

// ErrNoEligibleFeeToken means no configured fee token holds enough balance
// to cover the delegator's estimated cost. It is a configuration problem,
// not a transient fault; callers should present guidance, not a retry.
var ErrNoEligibleFeeToken = errors.New("no fee token with sufficient balance")

// GasTokenSelection is the outcome of a fee token choice: computed fresh per
// send attempt, never persisted here (a "remember choice" preference is the
// surrounding application's concern).
type GasTokenSelection struct {
	SelectedToken   params.FeeToken
	Cost            *big.Int
	AvailableTokens []params.FeeToken
}

// SelectFeeToken picks the fee payment token: the preferred token first if
// it can cover its estimated cost, then remaining candidates in configured
// rank order. A token is eligible only when its held balance covers the
// delegator's cost in that token.
func SelectFeeToken(candidates []params.FeeToken, balances map[common.Address]*big.Int, costs map[string]*big.Int, preferredSymbol string) (GasTokenSelection, error) {
	ranked := make([]params.FeeToken, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		if preferredSymbol != "" {
			if ranked[i].Symbol == preferredSymbol {
				return ranked[j].Symbol != preferredSymbol
			}
			if ranked[j].Symbol == preferredSymbol {
				return false
			}
		}
		return ranked[i].Rank < ranked[j].Rank
	})

	var available []params.FeeToken
	for _, t := range ranked {
		cost, ok := costs[t.Symbol]
		if !ok {
			continue
		}
		balance, ok := balances[t.Address]
		if !ok || balance.Cmp(cost) < 0 {
			continue
		}
		available = append(available, t)
	}
	if len(available) == 0 {
		return GasTokenSelection{}, ErrNoEligibleFeeToken
	}

	selected := available[0]
	return GasTokenSelection{
		SelectedToken:   selected,
		Cost:            new(big.Int).Set(costs[selected.Symbol]),
		AvailableTokens: available,
	}, nil
}
