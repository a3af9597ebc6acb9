package evm

import (
	"context"
	"crypto/ecdsa"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compose-network/factory-deployer/internal/create2"
	"github.com/compose-network/factory-deployer/internal/runner"
)

// scriptedClient answers the calls made around factory deployment and records every
// transaction. Calls it does not implement hit the nil embedded Client and panic.
type scriptedClient struct {
	Client

	// factoryCode is served at the factory once a contract creation has been sent.
	factoryCode   []byte
	factoryExists bool
	// signerBalance is reported for every account.
	signerBalance *big.Int
	// callResult is returned by CallContract.
	callResult []byte

	sent []*types.Transaction
}

func (c *scriptedClient) CodeAt(_ context.Context, account common.Address, _ *big.Int) ([]byte, error) {
	if account == create2.ArachnidFactory && c.factoryExists {
		return c.factoryCode, nil
	}
	return nil, nil
}

func (c *scriptedClient) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return c.callResult, nil
}

func (c *scriptedClient) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(1)}, nil
}

func (c *scriptedClient) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return uint64(len(c.sent)), nil
}

func (c *scriptedClient) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (c *scriptedClient) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return new(big.Int).Set(c.signerBalance), nil
}

func (c *scriptedClient) SendTransaction(_ context.Context, tx *types.Transaction) error {
	c.sent = append(c.sent, tx)
	if tx.To() == nil {
		c.factoryExists = true
	}
	return nil
}

func (c *scriptedClient) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      hash,
		BlockNumber: big.NewInt(int64(len(c.sent))),
	}, nil
}

func (c *scriptedClient) Close() {}

func newScriptedChainClient(t *testing.T, client Client, key *ecdsa.PrivateKey) *chainClient {
	t.Helper()

	return &chainClient{
		client:  client,
		chain:   simChain,
		chainID: big.NewInt(simChainID),
		cfg: BackendConfig{
			PrivateKey:          key,
			Factory:             create2.ArachnidFactory,
			BootstrapFactory:    true,
			GasLimit:            1_000_000,
			ConfirmationTimeout: 10 * time.Second,
		},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestChainClient_BootstrapFactory(t *testing.T) {
	t.Parallel()

	bootstrap, err := create2.FactoryDeploymentTx()
	require.NoError(t, err)
	signer, err := create2.FactoryDeployer(bootstrap)
	require.NoError(t, err)
	cost := create2.BootstrapCost(bootstrap)

	tests := []struct {
		name        string
		giveBalance *big.Int
		giveCode    []byte
		wantFunding *big.Int
		wantErr     error
	}{
		{
			name:        "unfunded signer gets the full cost",
			giveBalance: big.NewInt(0),
			giveCode:    create2.FactoryRuntimeCode,
			wantFunding: cost,
		},
		{
			name:        "partially funded signer gets the difference",
			giveBalance: big.NewInt(4_000_000_000_000_000),
			giveCode:    create2.FactoryRuntimeCode,
			wantFunding: new(big.Int).Sub(cost, big.NewInt(4_000_000_000_000_000)),
		},
		{
			name:        "funded signer is not topped up",
			giveBalance: new(big.Int).Set(cost),
			giveCode:    create2.FactoryRuntimeCode,
		},
		{
			name:        "unexpected code after bootstrap",
			giveBalance: new(big.Int).Set(cost),
			giveCode:    []byte{0x60, 0x00},
			wantErr:     ErrFactoryMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			key, err := crypto.GenerateKey()
			require.NoError(t, err)

			client := &scriptedClient{signerBalance: tt.giveBalance, factoryCode: tt.giveCode}
			c := newScriptedChainClient(t, client, key)

			err = c.ensureFactory(t.Context())
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.ErrorContains(t, err, "unexpected code")
				return
			}
			require.NoError(t, err)

			if tt.wantFunding == nil {
				require.Len(t, client.sent, 1)
				assert.Equal(t, bootstrap.Hash(), client.sent[0].Hash())
				return
			}

			require.Len(t, client.sent, 2)
			funding := client.sent[0]
			require.NotNil(t, funding.To())
			assert.Equal(t, signer, *funding.To())
			assert.Equal(t, 0, tt.wantFunding.Cmp(funding.Value()), "funding value %s", funding.Value())
			assert.Equal(t, uint64(transferGasLimit), funding.Gas())

			from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(simChainID)), funding)
			require.NoError(t, err)
			assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), from)

			assert.Equal(t, bootstrap.Hash(), client.sent[1].Hash())
		})
	}
}

func TestChainClient_DeployRefusesUnexpectedFactoryAddress(t *testing.T) {
	t.Parallel()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	elsewhere := common.HexToAddress("0x00000000000000000000000000000000000000ee")
	client := &scriptedClient{
		factoryExists: true,
		factoryCode:   create2.FactoryRuntimeCode,
		signerBalance: big.NewInt(0),
		callResult:    elsewhere.Bytes(),
	}
	c := newScriptedChainClient(t, client, key)

	_, err = c.Deploy(t.Context(), runner.Params{Salt: common.HexToHash("0x01"), InitCode: initCode})
	require.ErrorIs(t, err, runner.ErrAddressMismatch)
	require.ErrorContains(t, err, elsewhere.Hex())
	assert.Empty(t, client.sent, "nothing is sent when the factory disagrees with the prediction")
}
