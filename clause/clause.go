package clause

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"

	"github.com/vechain-community/walletkit/abispec"
)

// Clause is one atomic call or transfer instruction within a transaction.
// Clauses execute sequentially on chain; ordering inside a slice is
// significant. Treat a Clause as immutable once built.
type Clause struct {
	To      *common.Address
	Value   *big.Int
	Data    []byte
	Comment string
	ABI     *abispec.Method
}

type wireClause struct {
	To    *common.Address `json:"to"`
	Value string          `json:"value"`
	Data  string          `json:"data"`
}

// MarshalJSON encodes the clause in the node REST wire form. Comment and ABI
// are local metadata and never go over the wire.
func (c Clause) MarshalJSON() ([]byte, error) {
	value := "0x0"
	if c.Value != nil && c.Value.Sign() != 0 {
		value = hexutil.EncodeBig(c.Value)
	}
	data := "0x"
	if len(c.Data) > 0 {
		data = hexutil.Encode(c.Data)
	}
	return json.Marshal(wireClause{To: c.To, Value: value, Data: data})
}

func (c *Clause) UnmarshalJSON(input []byte) error {
	var w wireClause
	if err := json.Unmarshal(input, &w); err != nil {
		return err
	}
	c.To = w.To
	c.Value = new(big.Int)
	if w.Value != "" && w.Value != "0x" {
		v, err := parseQuantity(w.Value)
		if err != nil {
			return errors.Wrap(err, "clause value")
		}
		c.Value = v
	}
	if w.Data != "" && w.Data != "0x" {
		data, err := hexutil.Decode(w.Data)
		if err != nil {
			return errors.Wrap(err, "clause data")
		}
		c.Data = data
	} else {
		c.Data = nil
	}
	return nil
}

// parseQuantity accepts both 0x-hex and decimal string amounts, the two
// forms seen in node and aggregator responses.
func parseQuantity(s string) (*big.Int, error) {
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return hexutil.DecodeBig(s)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.Errorf("not a valid amount: %s", s)
	}
	return v, nil
}

// Clone returns a deep copy. Builders hand out copies so that a caller can
// never mutate a clause another component already holds.
func (c Clause) Clone() Clause {
	out := Clause{To: c.To, Comment: c.Comment, ABI: c.ABI}
	if c.To != nil {
		to := *c.To
		out.To = &to
	}
	if c.Value != nil {
		out.Value = new(big.Int).Set(c.Value)
	}
	if len(c.Data) > 0 {
		out.Data = append([]byte(nil), c.Data...)
	}
	return out
}

// TransferVET builds a native coin transfer clause.
func TransferVET(to common.Address, amount *big.Int, comment string) Clause {
	return Clause{
		To:      &to,
		Value:   new(big.Int).Set(amount),
		Comment: comment,
	}
}

// TransferToken builds an ERC-20 transfer clause.
func TransferToken(token, to common.Address, amount *big.Int, comment string) (Clause, error) {
	data, err := abispec.EncodeTransfer(to, amount)
	if err != nil {
		return Clause{}, errors.Wrap(err, "build token transfer")
	}
	return Clause{
		To:      &token,
		Value:   new(big.Int),
		Data:    data,
		Comment: comment,
	}, nil
}

// Approve builds an ERC-20 approve clause sized exactly to amount.
func Approve(token, spender common.Address, amount *big.Int, comment string) (Clause, error) {
	data, err := abispec.EncodeApprove(spender, amount)
	if err != nil {
		return Clause{}, errors.Wrap(err, "build approval")
	}
	return Clause{
		To:      &token,
		Value:   new(big.Int),
		Data:    data,
		Comment: comment,
	}, nil
}

// ContractCall builds a clause calling method on the given contract with
// JSON-encoded arguments.
func ContractCall(to common.Address, method *abispec.Method, args []json.RawMessage, value *big.Int, comment string) (Clause, error) {
	data, err := method.EncodeFunctionCall(args)
	if err != nil {
		return Clause{}, err
	}
	if value == nil {
		value = new(big.Int)
	}
	return Clause{
		To:      &to,
		Value:   new(big.Int).Set(value),
		Data:    data,
		Comment: comment,
		ABI:     method,
	}, nil
}

// CloneAll deep-copies a clause slice.
func CloneAll(clauses []Clause) []Clause {
	out := make([]Clause, len(clauses))
	for i, c := range clauses {
		out[i] = c.Clone()
	}
	return out
}
