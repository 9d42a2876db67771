package typeddata

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// x19 to avoid collision with rlp encode. x01 version byte defined in EIP-191
var messagePadding = []byte{0x19, 0x01}

// Hash returns the digest a signer commits to:
// keccak256("\x19\x01" || domainSeparator || hashStruct(message)).
func Hash(typed TypedData) (rst common.Hash, err error) {
	if err = typed.Validate(); err != nil {
		return rst, err
	}
	domainSeparator, err := hashStruct(eip712Domain, typed.Domain, typed.Types)
	if err != nil {
		return rst, err
	}
	primary, err := hashStruct(typed.PrimaryType, typed.Message, typed.Types)
	if err != nil {
		return rst, err
	}
	return crypto.Keccak256Hash(messagePadding, domainSeparator[:], primary[:]), nil
}

// Sign signs the typed data digest with the given key. Providers that hold
// keys locally (test drivers, tooling) use this; custodial providers obtain
// the signature from their remote signer instead.
func Sign(typed TypedData, prv *ecdsa.PrivateKey) ([]byte, error) {
	hash, err := Hash(typed)
	if err != nil {
		return nil, err
	}
	return crypto.Sign(hash[:], prv)
}
