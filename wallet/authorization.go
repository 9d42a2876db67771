package wallet

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"

	"github.com/vechain-community/walletkit/clause"
	"github.com/vechain-community/walletkit/typeddata"
)

// Smart-account authorization schema shared by the embedded and cross-app
// providers. A signature over one of these payloads authorizes the account
// contract to execute the clauses inside the validity window.
const (
	authDomainName    = "SimpleAccount"
	authDomainVersion = "1"

	singleAuthType = "ExecuteWithAuthorization"
	batchAuthType  = "ExecuteBatchWithAuthorization"

	// The window starts slightly in the past to absorb clock skew between
	// the signer and the chain.
	authValidBackdate = time.Minute
	authValidWindow   = 5 * time.Minute
)

func authTypes(primary string) typeddata.Types {
	types := typeddata.Types{
		"EIP712Domain": []typeddata.Field{
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
			{Name: "verifyingContract", Type: "address"},
		},
	}
	switch primary {
	case singleAuthType:
		types[singleAuthType] = []typeddata.Field{
			{Name: "to", Type: "address"},
			{Name: "value", Type: "uint256"},
			{Name: "data", Type: "bytes"},
			{Name: "validAfter", Type: "uint256"},
			{Name: "validBefore", Type: "uint256"},
		}
	case batchAuthType:
		types[batchAuthType] = []typeddata.Field{
			{Name: "to", Type: "address[]"},
			{Name: "value", Type: "uint256[]"},
			{Name: "data", Type: "bytes[]"},
			{Name: "validAfter", Type: "uint256"},
			{Name: "validBefore", Type: "uint256"},
			{Name: "nonce", Type: "bytes32"},
		}
	}
	return types
}

func jsonString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

func jsonNumber(v *big.Int) json.RawMessage {
	return json.RawMessage(v.String())
}

func jsonHex(data []byte) json.RawMessage {
	return jsonString(hexutil.Encode(data))
}

func authDomain(chainID uint64, account common.Address) map[string]json.RawMessage {
	return map[string]json.RawMessage{
		"name":              jsonString(authDomainName),
		"version":           jsonString(authDomainVersion),
		"chainId":           json.RawMessage(fmt.Sprintf("%d", chainID)),
		"verifyingContract": jsonString(account.Hex()),
	}
}

// authorizationTypedData builds the typed-data payload authorizing the given
// clauses: the single-clause schema for one clause, the batched schema
// otherwise. account is the smart-account contract that verifies the
// signature.
func authorizationTypedData(chainID uint64, account common.Address, clauses []clause.Clause, now time.Time) (typeddata.TypedData, error) {
	if len(clauses) == 0 {
		return typeddata.TypedData{}, errors.New("no clauses to authorize")
	}

	validAfter := big.NewInt(now.Add(-authValidBackdate).Unix())
	validBefore := big.NewInt(now.Add(authValidWindow).Unix())

	if len(clauses) == 1 {
		c := clauses[0]
		if c.To == nil {
			return typeddata.TypedData{}, errors.New("authorization clauses must have a target")
		}
		value := c.Value
		if value == nil {
			value = new(big.Int)
		}
		return typeddata.TypedData{
			Types:       authTypes(singleAuthType),
			PrimaryType: singleAuthType,
			Domain:      authDomain(chainID, account),
			Message: map[string]json.RawMessage{
				"to":          jsonString(c.To.Hex()),
				"value":       jsonNumber(value),
				"data":        jsonHex(c.Data),
				"validAfter":  jsonNumber(validAfter),
				"validBefore": jsonNumber(validBefore),
			},
		}, nil
	}

	tos := make([]json.RawMessage, len(clauses))
	values := make([]json.RawMessage, len(clauses))
	datas := make([]json.RawMessage, len(clauses))
	for i, c := range clauses {
		if c.To == nil {
			return typeddata.TypedData{}, errors.Errorf("authorization clause %d has no target", i)
		}
		tos[i] = jsonString(c.To.Hex())
		value := c.Value
		if value == nil {
			value = new(big.Int)
		}
		values[i] = jsonNumber(value)
		datas[i] = jsonHex(c.Data)
	}

	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return typeddata.TypedData{}, errors.Wrap(err, "authorization nonce")
	}

	marshalList := func(items []json.RawMessage) json.RawMessage {
		b, _ := json.Marshal(items)
		return b
	}

	return typeddata.TypedData{
		Types:       authTypes(batchAuthType),
		PrimaryType: batchAuthType,
		Domain:      authDomain(chainID, account),
		Message: map[string]json.RawMessage{
			"to":          marshalList(tos),
			"value":       marshalList(values),
			"data":        marshalList(datas),
			"validAfter":  jsonNumber(validAfter),
			"validBefore": jsonNumber(validBefore),
			"nonce":       jsonHex(nonce[:]),
		},
	}, nil
}
