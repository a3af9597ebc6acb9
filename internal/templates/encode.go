package templates

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// VarDeployer expands to the address of the deploying account.
const VarDeployer = "deployer"

// ExpandArgs substitutes ${name} placeholders in constructor arguments. Unknown names are an
// error so a typo never ends up encoded on chain.
func ExpandArgs(args []string, vars map[string]string) ([]string, error) {
	var missing []string

	expanded := make([]string, len(args))
	for i, arg := range args {
		expanded[i] = os.Expand(arg, func(name string) string {
			value, ok := vars[name]
			if !ok {
				missing = append(missing, name)
			}
			return value
		})
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("unknown constructor argument placeholders: %s", strings.Join(missing, ", "))
	}

	return expanded, nil
}

// InitCode returns the creation bytecode followed by the ABI-encoded constructor arguments.
func (t *Template) InitCode(args []string) ([]byte, error) {
	inputs := t.ABI.Constructor.Inputs
	if len(args) != len(inputs) {
		return nil, fmt.Errorf("constructor of %s takes %d arguments, got %d", t.Name, len(inputs), len(args))
	}

	initCode := append([]byte(nil), t.Bytecode...)
	if len(inputs) == 0 {
		return initCode, nil
	}

	values := make([]any, len(args))
	for i, input := range inputs {
		value, err := convertArg(input.Type, args[i])
		if err != nil {
			return nil, fmt.Errorf("constructor argument %d (%s %s): %w", i, input.Type.String(), input.Name, err)
		}
		values[i] = value
	}

	encoded, err := inputs.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode constructor arguments: %w", err)
	}

	return append(initCode, encoded...), nil
}

func convertArg(typ abi.Type, raw string) (any, error) {
	raw = strings.TrimSpace(raw)

	switch typ.T {
	case abi.AddressTy:
		if !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("'%s' is not an address", raw)
		}
		return common.HexToAddress(raw), nil

	case abi.BoolTy:
		return strconv.ParseBool(raw)

	case abi.StringTy:
		return raw, nil

	case abi.BytesTy:
		return hexutil.Decode(raw)

	case abi.FixedBytesTy:
		b, err := hexutil.Decode(raw)
		if err != nil {
			return nil, err
		}
		if len(b) != typ.Size {
			return nil, fmt.Errorf("expected %d bytes, got %d", typ.Size, len(b))
		}
		arr := reflect.New(typ.GetType()).Elem()
		reflect.Copy(arr, reflect.ValueOf(b))
		return arr.Interface(), nil

	case abi.IntTy, abi.UintTy:
		return convertInteger(typ, raw)

	default:
		return nil, fmt.Errorf("unsupported argument type %s", typ.String())
	}
}

func convertInteger(typ abi.Type, raw string) (any, error) {
	n, ok := new(big.Int).SetString(raw, 0)
	if !ok {
		return nil, fmt.Errorf("'%s' is not an integer", raw)
	}

	if typ.T == abi.UintTy {
		if n.Sign() < 0 {
			return nil, errors.New("negative value for unsigned type")
		}
		if n.BitLen() > typ.Size {
			return nil, fmt.Errorf("value overflows uint%d", typ.Size)
		}
	} else {
		limit := new(big.Int).Lsh(big.NewInt(1), uint(typ.Size-1))
		if n.Cmp(limit) >= 0 || n.Cmp(new(big.Int).Neg(limit)) < 0 {
			return nil, fmt.Errorf("value overflows int%d", typ.Size)
		}
	}

	goType := typ.GetType()
	if goType == reflect.TypeOf(n) {
		return n, nil
	}

	if typ.T == abi.UintTy {
		return reflect.ValueOf(n.Uint64()).Convert(goType).Interface(), nil
	}
	return reflect.ValueOf(n.Int64()).Convert(goType).Interface(), nil
}
