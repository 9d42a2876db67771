package transactions

import (
	"context"
	"math/big"
	"math/rand"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/vechain-community/walletkit/clause"
)

// defaultExpiration is how many blocks a new body stays valid.
const defaultExpiration = 180

// Body is the unsigned transaction payload submitted to the ledger. Its RLP
// encoding is what delegators co-sign.
type Body struct {
	ChainTag     byte
	BlockRef     [8]byte
	Expiration   uint32
	Clauses      []clause.Clause
	GasPriceCoef uint8
	Gas          uint64
	DependsOn    *common.Hash
	Nonce        uint64
	// Delegated marks the body as fee-delegated: a gas payer's signature is
	// appended after the origin's.
	Delegated bool
}

type rlpClause struct {
	To    *common.Address `rlp:"nil"`
	Value *big.Int
	Data  []byte
}

type rlpBody struct {
	ChainTag     byte
	BlockRef     [8]byte
	Expiration   uint32
	Clauses      []rlpClause
	GasPriceCoef uint8
	Gas          uint64
	DependsOn    *common.Hash `rlp:"nil"`
	Nonce        uint64
	Reserved     []uint
}

func (b *Body) toRLP() rlpBody {
	clauses := make([]rlpClause, len(b.Clauses))
	for i, c := range b.Clauses {
		value := c.Value
		if value == nil {
			value = new(big.Int)
		}
		clauses[i] = rlpClause{To: c.To, Value: value, Data: c.Data}
	}
	var reserved []uint
	if b.Delegated {
		reserved = []uint{1}
	}
	return rlpBody{
		ChainTag:     b.ChainTag,
		BlockRef:     b.BlockRef,
		Expiration:   b.Expiration,
		Clauses:      clauses,
		GasPriceCoef: b.GasPriceCoef,
		Gas:          b.Gas,
		DependsOn:    b.DependsOn,
		Nonce:        b.Nonce,
		Reserved:     reserved,
	}
}

// Encode returns the RLP encoding of the unsigned body.
func (b *Body) Encode() ([]byte, error) {
	out, err := rlp.EncodeToBytes(b.toRLP())
	if err != nil {
		return nil, errors.Wrap(err, "encode transaction body")
	}
	return out, nil
}

type rlpSigned struct {
	Body      rlpBody
	Signature []byte
}

// EncodeSigned appends the origin signature, and the gas payer's
// co-signature for delegated bodies, producing the raw submission payload.
func (b *Body) EncodeSigned(originSig, payerSig []byte) ([]byte, error) {
	if len(originSig) == 0 {
		return nil, errors.New("missing origin signature")
	}
	sig := originSig
	if b.Delegated {
		if len(payerSig) == 0 {
			return nil, errors.New("delegated body requires a gas payer signature")
		}
		sig = append(append([]byte(nil), originSig...), payerSig...)
	}
	out, err := rlp.EncodeToBytes(rlpSigned{Body: b.toRLP(), Signature: sig})
	if err != nil {
		return nil, errors.Wrap(err, "encode signed transaction")
	}
	return out, nil
}

// ChainClient is the slice of the node client body construction needs.
type ChainClient interface {
	BestBlockRef(ctx context.Context) ([8]byte, error)
	ChainTag(ctx context.Context) (byte, error)
}

// NewBody assembles a body anchored to the current best block.
func NewBody(ctx context.Context, client ChainClient, clauses []clause.Clause, gasLimit uint64, delegated bool) (*Body, error) {
	chainTag, err := client.ChainTag(ctx)
	if err != nil {
		return nil, err
	}
	blockRef, err := client.BestBlockRef(ctx)
	if err != nil {
		return nil, err
	}
	return &Body{
		ChainTag:   chainTag,
		BlockRef:   blockRef,
		Expiration: defaultExpiration,
		Clauses:    clauses,
		Gas:        gasLimit,
		Nonce:      rand.Uint64(),
		Delegated:  delegated,
	}, nil
}
