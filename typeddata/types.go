package typeddata

import (
	"encoding/json"

	"github.com/pkg/errors"
)

const eip712Domain = "EIP712Domain"

// Field is one member of a typed-data struct definition.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Types maps a struct name to its ordered member list.
type Types map[string][]Field

// TypedData is an EIP-712 payload: type definitions, a primary type and the
// domain/message objects encoded as raw JSON members.
type TypedData struct {
	Types       Types                      `json:"types"`
	PrimaryType string                     `json:"primaryType"`
	Domain      map[string]json.RawMessage `json:"domain"`
	Message     map[string]json.RawMessage `json:"message"`
}

// Validate checks that the payload references only defined types.
func (t TypedData) Validate() error {
	if _, exist := t.Types[eip712Domain]; !exist {
		return errors.Errorf("%s type is not defined", eip712Domain)
	}
	if _, exist := t.Types[t.PrimaryType]; !exist {
		return errors.Errorf("primary type %q is not defined", t.PrimaryType)
	}
	return nil
}
