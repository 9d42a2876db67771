package transactions

import (
	"bytes"
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/require"

	"github.com/vechain-community/walletkit/clause"
)

type fakeChainClient struct{}

func (fakeChainClient) BestBlockRef(ctx context.Context) ([8]byte, error) {
	return [8]byte{0, 0, 0, 42, 1, 2, 3, 4}, nil
}

func (fakeChainClient) ChainTag(ctx context.Context) (byte, error) {
	return 0x4a, nil
}

func testBody(delegated bool) *Body {
	to := common.HexToAddress("0x1234567890123456789012345678901234567890")
	return &Body{
		ChainTag:   0x4a,
		BlockRef:   [8]byte{0, 0, 0, 42},
		Expiration: 180,
		Clauses:    []clause.Clause{{To: &to, Value: big.NewInt(100)}},
		Gas:        21000,
		Nonce:      7,
		Delegated:  delegated,
	}
}

func TestEncodeIsValidRLP(t *testing.T) {
	raw, err := testBody(false).Encode()
	require.NoError(t, err)

	var decoded rlpBody
	require.NoError(t, rlp.DecodeBytes(raw, &decoded))
	require.Equal(t, byte(0x4a), decoded.ChainTag)
	require.Equal(t, uint32(180), decoded.Expiration)
	require.Len(t, decoded.Clauses, 1)
	require.Empty(t, decoded.Reserved)
}

func TestEncodeDelegatedSetsReservedFeature(t *testing.T) {
	raw, err := testBody(true).Encode()
	require.NoError(t, err)

	var decoded rlpBody
	require.NoError(t, rlp.DecodeBytes(raw, &decoded))
	require.Equal(t, []uint{1}, decoded.Reserved)
}

func TestEncodeSignedConcatenatesSignatures(t *testing.T) {
	origin := bytes.Repeat([]byte{0x01}, 65)
	payer := bytes.Repeat([]byte{0x02}, 65)

	raw, err := testBody(true).EncodeSigned(origin, payer)
	require.NoError(t, err)

	var decoded rlpSigned
	require.NoError(t, rlp.DecodeBytes(raw, &decoded))
	require.Len(t, decoded.Signature, 130)
	require.Equal(t, origin, decoded.Signature[:65])
	require.Equal(t, payer, decoded.Signature[65:])
}

func TestEncodeSignedRequiresSignatures(t *testing.T) {
	_, err := testBody(false).EncodeSigned(nil, nil)
	require.Error(t, err)

	// Delegated body without a payer co-signature must not encode.
	origin := bytes.Repeat([]byte{0x01}, 65)
	_, err = testBody(true).EncodeSigned(origin, nil)
	require.Error(t, err)
}

func TestNewBodyAnchorsToChain(t *testing.T) {
	to := common.HexToAddress("0x01")
	body, err := NewBody(context.Background(), fakeChainClient{}, []clause.Clause{{To: &to}}, 50000, true)
	require.NoError(t, err)

	require.Equal(t, byte(0x4a), body.ChainTag)
	require.Equal(t, [8]byte{0, 0, 0, 42, 1, 2, 3, 4}, body.BlockRef)
	require.Equal(t, uint32(defaultExpiration), body.Expiration)
	require.Equal(t, uint64(50000), body.Gas)
	require.True(t, body.Delegated)
}

func TestNewBodyNoncesDiffer(t *testing.T) {
	to := common.HexToAddress("0x01")
	clauses := []clause.Clause{{To: &to}}
	a, err := NewBody(context.Background(), fakeChainClient{}, clauses, 1, false)
	require.NoError(t, err)
	b, err := NewBody(context.Background(), fakeChainClient{}, clauses, 1, false)
	require.NoError(t, err)
	require.NotEqual(t, a.Nonce, b.Nonce)
}
