package abispec

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20Def = `[
	{"name":"transfer","type":"function","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}]},
	{"name":"approve","type":"function","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}]},
	{"name":"balanceOf","type":"function","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

var erc20ABI, _ = abi.JSON(strings.NewReader(erc20Def))

// EncodeTransfer packs ERC-20 transfer(to, amount) call data.
func EncodeTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	data, err := erc20ABI.Pack("transfer", to, amount)
	if err != nil {
		return nil, fmt.Errorf("pack transfer failed: %v", err)
	}
	return data, nil
}

// EncodeApprove packs ERC-20 approve(spender, amount) call data.
func EncodeApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	data, err := erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("pack approve failed: %v", err)
	}
	return data, nil
}

// EncodeBalanceOf packs ERC-20 balanceOf(owner) call data.
func EncodeBalanceOf(owner common.Address) ([]byte, error) {
	data, err := erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf failed: %v", err)
	}
	return data, nil
}

// DecodeBalanceOf unpacks the result of a balanceOf call.
func DecodeBalanceOf(data []byte) (*big.Int, error) {
	out, err := erc20ABI.Unpack("balanceOf", data)
	if err != nil {
		return nil, fmt.Errorf("unpack balanceOf failed: %v", err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("unexpected balanceOf output arity %d", len(out))
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf output type %T", out[0])
	}
	return balance, nil
}
