package abispec

import (
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Parameter is one input of a contract function, as described by an external
// ABI fragment.
type Parameter struct {
	Name         string      `json:"name"`
	Type         string      `json:"type"`
	InternalType string      `json:"internalType,omitempty"`
	Components   []Parameter `json:"components,omitempty"`
}

// Method describes a callable contract function. It covers both wire shapes
// produced by aggregator APIs: a full ABI fragment (with stateMutability and
// outputs) and a bare parameter list.
type Method struct {
	Name            string      `json:"name"`
	Type            string      `json:"type,omitempty"`
	Inputs          []Parameter `json:"inputs"`
	Outputs         []Parameter `json:"outputs,omitempty"`
	StateMutability string      `json:"stateMutability,omitempty"`
}

// ParseFunctionABI normalizes the `abi` field of an aggregator function call
// into a Method. The two accepted shapes are auto-detected: an object that
// carries stateMutability or outputs is a full fragment, a JSON array is a
// bare list of input parameters. fallbackName is used when the fragment does
// not name the function itself.
func ParseFunctionABI(raw json.RawMessage, fallbackName string) (*Method, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, fmt.Errorf("missing ABI for function %q", fallbackName)
	}

	if strings.HasPrefix(trimmed, "[") {
		var inputs []Parameter
		if err := json.Unmarshal(raw, &inputs); err != nil {
			return nil, fmt.Errorf("malformed parameter list for %q: %v", fallbackName, err)
		}
		if fallbackName == "" {
			return nil, fmt.Errorf("bare parameter list requires a function name")
		}
		return &Method{Name: fallbackName, Inputs: inputs}, nil
	}

	var m Method
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("malformed ABI fragment for %q: %v", fallbackName, err)
	}
	if m.StateMutability == "" && m.Outputs == nil && m.Inputs == nil {
		return nil, fmt.Errorf("unrecognized ABI shape for %q", fallbackName)
	}
	if m.Name == "" {
		m.Name = fallbackName
	}
	if m.Name == "" {
		return nil, fmt.Errorf("ABI fragment does not name a function")
	}
	return &m, nil
}

func marshaling(params []Parameter) []abi.ArgumentMarshaling {
	out := make([]abi.ArgumentMarshaling, 0, len(params))
	for _, p := range params {
		out = append(out, abi.ArgumentMarshaling{
			Name:         p.Name,
			Type:         p.Type,
			InternalType: p.InternalType,
			Components:   marshaling(p.Components),
		})
	}
	return out
}

func (m *Method) arguments() (abi.Arguments, error) {
	args := make(abi.Arguments, 0, len(m.Inputs))
	for _, in := range m.Inputs {
		typ, err := abi.NewType(in.Type, in.InternalType, marshaling(in.Components))
		if err != nil {
			return nil, fmt.Errorf("invalid parameter type %q in %q: %v", in.Type, m.Name, err)
		}
		args = append(args, abi.Argument{Name: in.Name, Type: typ})
	}
	return args, nil
}

// Signature returns the canonical function signature, e.g.
// "swapExactETHForTokens(uint256,address[],address,uint256)".
func (m *Method) Signature() (string, error) {
	args, err := m.arguments()
	if err != nil {
		return "", err
	}
	types := make([]string, len(args))
	for i, a := range args {
		types[i] = a.Type.String()
	}
	return m.Name + "(" + strings.Join(types, ",") + ")", nil
}

// EncodeFunctionCall packs the selector and the JSON-encoded arguments into
// call data. Arguments are coerced to the go types the packer expects;
// numeric values may be decimal strings, JSON numbers or 0x-hex strings.
func (m *Method) EncodeFunctionCall(rawArgs []json.RawMessage) ([]byte, error) {
	args, err := m.arguments()
	if err != nil {
		return nil, err
	}
	if len(rawArgs) != len(args) {
		return nil, fmt.Errorf("function %q expects %d arguments, got %d", m.Name, len(args), len(rawArgs))
	}

	values := make([]interface{}, len(args))
	for i, arg := range args {
		v, err := toGoTypeValue(arg.Type, rawArgs[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d of %q: %v", i, m.Name, err)
		}
		values[i] = v
	}

	packed, err := args.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("pack failed for %q: %v", m.Name, err)
	}

	sig, err := m.Signature()
	if err != nil {
		return nil, err
	}
	selector := crypto.Keccak256([]byte(sig))[:4]
	return append(selector, packed...), nil
}

func toBigInt(raw json.RawMessage) (*big.Int, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		base := 10
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			base = 0
		}
		v, ok := new(big.Int).SetString(s, base)
		if !ok {
			return nil, fmt.Errorf("not a valid integer: %s", s)
		}
		return v, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("not a valid integer: %s", string(raw))
	}
	v, ok := new(big.Int).SetString(n.String(), 10)
	if !ok {
		return nil, fmt.Errorf("not a valid integer: %s", n.String())
	}
	return v, nil
}

func toGoTypeValue(typ abi.Type, raw json.RawMessage) (interface{}, error) {
	switch typ.T {
	case abi.AddressTy:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("address must be a hex string: %v", err)
		}
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("not a valid address: %s", s)
		}
		return common.HexToAddress(s), nil

	case abi.UintTy, abi.IntTy:
		v, err := toBigInt(raw)
		if err != nil {
			return nil, err
		}
		if typ.Size > 64 {
			return v, nil
		}
		if typ.T == abi.UintTy {
			switch typ.Size {
			case 8:
				return uint8(v.Uint64()), nil
			case 16:
				return uint16(v.Uint64()), nil
			case 32:
				return uint32(v.Uint64()), nil
			default:
				return v.Uint64(), nil
			}
		}
		switch typ.Size {
		case 8:
			return int8(v.Int64()), nil
		case 16:
			return int16(v.Int64()), nil
		case 32:
			return int32(v.Int64()), nil
		default:
			return v.Int64(), nil
		}

	case abi.BoolTy:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("not a valid bool: %s", string(raw))
		}
		return b, nil

	case abi.StringTy:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("not a valid string: %s", string(raw))
		}
		return s, nil

	case abi.BytesTy:
		var b hexutil.Bytes
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("bytes must be a 0x hex string: %v", err)
		}
		return []byte(b), nil

	case abi.FixedBytesTy:
		var b hexutil.Bytes
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("fixed bytes must be a 0x hex string: %v", err)
		}
		if len(b) > typ.Size {
			b = b[:typ.Size]
		}
		arr := reflect.New(typ.GetType()).Elem()
		for i := 0; i < len(b); i++ {
			arr.Index(i).Set(reflect.ValueOf(b[i]))
		}
		return arr.Interface(), nil

	case abi.SliceTy, abi.ArrayTy:
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return nil, fmt.Errorf("not a valid array: %v", err)
		}
		slice := reflect.MakeSlice(reflect.SliceOf(typ.Elem.GetType()), 0, len(elems))
		for _, e := range elems {
			v, err := toGoTypeValue(*typ.Elem, e)
			if err != nil {
				return nil, err
			}
			slice = reflect.Append(slice, reflect.ValueOf(v))
		}
		if typ.T == abi.ArrayTy {
			arr := reflect.New(typ.GetType()).Elem()
			reflect.Copy(arr, slice)
			return arr.Interface(), nil
		}
		return slice.Interface(), nil

	case abi.TupleTy:
		return nil, fmt.Errorf("tuple arguments are not supported")
	}
	return nil, fmt.Errorf("unsupported parameter type %s", typ.String())
}
