package bigint

import (
	"fmt"
	"math/big"
)

// BigInt is a big.Int that marshals to and from a JSON decimal string, the
// wire form used by the aggregator and delegator HTTP APIs.
type BigInt struct {
	*big.Int
}

func New(x int64) *BigInt {
	return &BigInt{Int: big.NewInt(x)}
}

func FromBig(x *big.Int) *BigInt {
	return &BigInt{Int: x}
}

func (b *BigInt) MarshalJSON() ([]byte, error) {
	if b == nil || b.Int == nil {
		return []byte(`"0"`), nil
	}
	return []byte(`"` + b.Int.String() + `"`), nil
}

func (b *BigInt) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" || s == "null" {
		b.Int = new(big.Int)
		return nil
	}
	value, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("not a valid big integer: %s", s)
	}
	b.Int = value
	return nil
}
