package create2

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const (
	factoryRuntimeHex = "7f" + "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff" + "e0" +
		"3601600081602082378035828234f58015156039578182fd5b8082525050506014600cf3"

	// factoryInitHex copies the runtime that follows it into memory and returns it.
	factoryInitHex = "604580600e600039806000f350fe" + factoryRuntimeHex

	// Keyless pre-EIP-155 transaction: nonce 0, gas price 100 gwei, gas 100000, v=27, r=s=0x22..22.
	factoryDeploymentTxHex = "f8a58085174876e800830186a08080b853" + factoryInitHex +
		"1ba0" + "2222222222222222222222222222222222222222222222222222222222222222" +
		"a0" + "2222222222222222222222222222222222222222222222222222222222222222"
)

// FactoryRuntimeCode is the deployed code of the Arachnid deterministic deployment proxy.
var FactoryRuntimeCode = common.FromHex(factoryRuntimeHex)

// FactoryDeploymentTx decodes the canonical keyless transaction that deploys the Arachnid
// proxy at ArachnidFactory. Its sender has to hold BootstrapCost wei before it is broadcast,
// and the chain has to accept transactions without replay protection.
func FactoryDeploymentTx() (*types.Transaction, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(common.FromHex(factoryDeploymentTxHex)); err != nil {
		return nil, fmt.Errorf("failed to decode factory deployment transaction: %w", err)
	}
	return tx, nil
}

// FactoryDeployer recovers the keyless sender of the factory deployment transaction.
func FactoryDeployer(tx *types.Transaction) (common.Address, error) {
	sender, err := types.Sender(types.HomesteadSigner{}, tx)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover factory deployer: %w", err)
	}
	return sender, nil
}

// BootstrapCost is the balance the keyless sender needs to pay for the deployment.
func BootstrapCost(tx *types.Transaction) *big.Int {
	return new(big.Int).Mul(tx.GasPrice(), new(big.Int).SetUint64(tx.Gas()))
}

// IsFactoryCode reports whether code is the Arachnid proxy runtime.
func IsFactoryCode(code []byte) bool {
	return strings.EqualFold(common.Bytes2Hex(code), factoryRuntimeHex)
}
