// Package create2 derives deterministic deployment addresses for contracts created through a
// CREATE2 factory that takes salt‖initCode as calldata, such as the Arachnid deterministic
// deployment proxy.
package create2

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ArachnidFactory is the address of the deterministic deployment proxy, identical on every
// chain it has been bootstrapped on.
var ArachnidFactory = common.HexToAddress("0x4e59b44847b379578588920cA78FbF26c0B4956C")

// Salt turns a configured salt into the 32-byte CREATE2 salt. An empty string is the zero salt,
// a 0x-prefixed 32-byte hex string is used as is, anything else is hashed with keccak256.
func Salt(value string) (common.Hash, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return common.Hash{}, nil
	}

	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		raw, err := hexutil.Decode(value)
		if err != nil {
			return common.Hash{}, fmt.Errorf("failed to decode hex salt: %w", err)
		}
		if len(raw) != common.HashLength {
			return common.Hash{}, fmt.Errorf("hex salt must be %d bytes, got %d", common.HashLength, len(raw))
		}
		return common.BytesToHash(raw), nil
	}

	return crypto.Keccak256Hash([]byte(value)), nil
}

// PredictAddress returns the address initCode lands at when created by factory with salt.
// It does not depend on the sender, nonce or chain.
func PredictAddress(factory common.Address, salt common.Hash, initCode []byte) common.Address {
	return crypto.CreateAddress2(factory, salt, crypto.Keccak256(initCode))
}

// FactoryCalldata is the payload the factory expects: salt followed by the init code.
func FactoryCalldata(salt common.Hash, initCode []byte) []byte {
	data := make([]byte, 0, common.HashLength+len(initCode))
	data = append(data, salt.Bytes()...)
	return append(data, initCode...)
}
