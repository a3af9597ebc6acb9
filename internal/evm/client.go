package evm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/compose-network/factory-deployer/internal/chains"
	"github.com/compose-network/factory-deployer/internal/create2"
	"github.com/compose-network/factory-deployer/internal/runner"
)

const transferGasLimit = 21_000

type chainClient struct {
	client  Client
	chain   chains.Chain
	chainID *big.Int
	cfg     BackendConfig
	logger  *slog.Logger
}

func (c *chainClient) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	balance, err := c.client.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

func (c *chainClient) PredictAddress(_ context.Context, params runner.Params) (common.Address, error) {
	if len(params.InitCode) == 0 {
		return common.Address{}, errors.New("empty init code")
	}
	return create2.PredictAddress(c.cfg.Factory, params.Salt, params.InitCode), nil
}

func (c *chainClient) IsDeployed(ctx context.Context, address common.Address) (bool, error) {
	code, err := c.client.CodeAt(ctx, address, nil)
	if err != nil {
		return false, fmt.Errorf("failed to get code at %s: %w", address.Hex(), err)
	}
	return len(code) > 0, nil
}

// Deploy sends salt‖initCode to the factory and waits for the transaction to be mined. The
// factory call is simulated first and nothing is sent unless it reports the predicted address.
func (c *chainClient) Deploy(ctx context.Context, params runner.Params) (*runner.Receipt, error) {
	if c.cfg.PrivateKey == nil {
		return nil, errors.New("no signing key configured")
	}

	if err := c.ensureFactory(ctx); err != nil {
		return nil, err
	}

	opts, err := c.transactOpts(ctx)
	if err != nil {
		return nil, err
	}
	opts.GasLimit = c.cfg.GasLimit

	calldata := create2.FactoryCalldata(params.Salt, params.InitCode)

	address, err := c.simulate(ctx, opts.From, calldata)
	if err != nil {
		return nil, err
	}
	if predicted := create2.PredictAddress(c.cfg.Factory, params.Salt, params.InitCode); address != predicted {
		return nil, fmt.Errorf("%w: predicted %s, factory would create %s", runner.ErrAddressMismatch, predicted.Hex(), address.Hex())
	}

	factory := bind.NewBoundContract(c.cfg.Factory, abi.ABI{}, c.client, c.client, c.client)
	tx, err := factory.RawTransact(opts, calldata)
	if err != nil {
		return nil, fmt.Errorf("failed to send deployment transaction: %w", err)
	}

	c.logger.
		With("tx_hash", tx.Hash().Hex()).
		With("address", address.Hex()).
		Info("deployment transaction sent")

	receipt, err := c.waitMined(ctx, tx)
	if err != nil {
		return nil, err
	}

	deployed, err := c.IsDeployed(ctx, address)
	if err != nil {
		return nil, err
	}
	if !deployed {
		return nil, fmt.Errorf("no code at %s after transaction %s", address.Hex(), tx.Hash().Hex())
	}

	return &runner.Receipt{
		Address:     address,
		TxHash:      tx.Hash(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}, nil
}

func (c *chainClient) Close() {
	c.client.Close()
}

// simulate dry-runs the factory call and returns the address it would create.
func (c *chainClient) simulate(ctx context.Context, from common.Address, calldata []byte) (common.Address, error) {
	result, err := c.client.CallContract(ctx, ethereum.CallMsg{
		From: from,
		To:   &c.cfg.Factory,
		Data: calldata,
	}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("factory call reverted: %w", err)
	}
	if len(result) != common.AddressLength {
		return common.Address{}, fmt.Errorf("unexpected factory return data of %d bytes", len(result))
	}
	return common.BytesToAddress(result), nil
}

func (c *chainClient) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(c.cfg.PrivateKey, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}

func (c *chainClient) waitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ConfirmationTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(ctx, c.client, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for transaction %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("transaction %s failed with status %d", tx.Hash().Hex(), receipt.Status)
	}

	return receipt, nil
}

// ensureFactory checks that the factory has code, bootstrapping the Arachnid proxy when allowed.
func (c *chainClient) ensureFactory(ctx context.Context) error {
	deployed, err := c.IsDeployed(ctx, c.cfg.Factory)
	if err != nil {
		return err
	}
	if deployed {
		return nil
	}

	if !c.cfg.BootstrapFactory {
		return fmt.Errorf("%w at %s", ErrFactoryMissing, c.cfg.Factory.Hex())
	}
	if c.cfg.Factory != create2.ArachnidFactory {
		return fmt.Errorf("%w at %s: only the arachnid proxy can be bootstrapped", ErrFactoryMissing, c.cfg.Factory.Hex())
	}

	return c.bootstrapFactory(ctx)
}

func (c *chainClient) bootstrapFactory(ctx context.Context) error {
	tx, err := create2.FactoryDeploymentTx()
	if err != nil {
		return err
	}
	signer, err := create2.FactoryDeployer(tx)
	if err != nil {
		return err
	}

	c.logger.With("factory", c.cfg.Factory.Hex()).With("signer", signer.Hex()).Info("bootstrapping create2 factory")

	cost := create2.BootstrapCost(tx)
	balance, err := c.client.BalanceAt(ctx, signer, nil)
	if err != nil {
		return fmt.Errorf("failed to get factory signer balance: %w", err)
	}

	if balance.Cmp(cost) < 0 {
		opts, err := c.transactOpts(ctx)
		if err != nil {
			return err
		}
		opts.Value = new(big.Int).Sub(cost, balance)
		opts.GasLimit = transferGasLimit

		funding, err := bind.NewBoundContract(signer, abi.ABI{}, c.client, c.client, c.client).Transfer(opts)
		if err != nil {
			return fmt.Errorf("failed to fund factory signer: %w", err)
		}
		c.logger.With("tx_hash", funding.Hash().Hex()).With("value", opts.Value.String()).Info("factory signer funding sent")

		if _, err := c.waitMined(ctx, funding); err != nil {
			return err
		}
	}

	if err := c.client.SendTransaction(ctx, tx); err != nil {
		return fmt.Errorf("failed to broadcast factory deployment, the chain may reject transactions without replay protection: %w", err)
	}
	if _, err := c.waitMined(ctx, tx); err != nil {
		return err
	}

	code, err := c.client.CodeAt(ctx, c.cfg.Factory, nil)
	if err != nil {
		return fmt.Errorf("failed to get factory code: %w", err)
	}
	if !create2.IsFactoryCode(code) {
		return fmt.Errorf("%w: unexpected code at %s after bootstrap", ErrFactoryMissing, c.cfg.Factory.Hex())
	}

	c.logger.Info("create2 factory bootstrapped")

	return nil
}
