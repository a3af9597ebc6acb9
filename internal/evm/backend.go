// Package evm implements the runner backend on top of go-ethereum: JSON-RPC dialing, CREATE2
// address prediction, code lookups and deployment through a CREATE2 factory.
package evm

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"text/template"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/compose-network/factory-deployer/internal/chains"
	"github.com/compose-network/factory-deployer/internal/logger"
	"github.com/compose-network/factory-deployer/internal/runner"
)

const defaultConfirmationTimeout = 5 * time.Minute

var (
	ErrChainIDMismatch = errors.New("rpc endpoint serves a different chain")
	ErrFactoryMissing  = errors.New("create2 factory is not deployed")
)

type (
	// Client is the subset of *ethclient.Client the backend uses.
	Client interface {
		bind.ContractBackend
		bind.DeployBackend
		ChainID(ctx context.Context) (*big.Int, error)
		BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
		Close()
	}

	// DialFunc opens a client for an already rendered RPC URL.
	DialFunc func(ctx context.Context, url string) (Client, error)

	BackendConfig struct {
		// URLTemplate is rendered with the chain as data, e.g. https://{{.ChainID}}.rpc.thirdweb.com.
		URLTemplate string
		// SecretHeader carries SecretKey on every RPC request. Empty disables it.
		SecretHeader string
		SecretKey    string
		// PrivateKey signs deployments. It may be nil when nothing is deployed.
		PrivateKey          *ecdsa.PrivateKey
		Factory             common.Address
		BootstrapFactory    bool
		GasLimit            uint64
		ConfirmationTimeout time.Duration
		// Dial overrides the default JSON-RPC dialer.
		Dial DialFunc
	}

	// Backend connects the runner to EVM chains.
	Backend struct {
		cfg         BackendConfig
		urlTemplate *template.Template
		logger      *slog.Logger
	}

	urlData struct {
		ChainID uint64
		Name    string
	}
)

func NewBackend(cfg BackendConfig) (*Backend, error) {
	tmpl, err := template.New("rpc-url").Option("missingkey=error").Parse(cfg.URLTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rpc url template: %w", err)
	}

	if cfg.ConfirmationTimeout <= 0 {
		cfg.ConfirmationTimeout = defaultConfirmationTimeout
	}

	b := &Backend{
		cfg:         cfg,
		urlTemplate: tmpl,
		logger:      logger.Named("evm"),
	}
	if b.cfg.Dial == nil {
		b.cfg.Dial = b.dial
	}

	return b, nil
}

// RPCURL returns the endpoint of chain: its override when set, the rendered template otherwise.
func (b *Backend) RPCURL(chain chains.Chain) (string, error) {
	if chain.RPCURL != "" {
		return chain.RPCURL, nil
	}

	var buf bytes.Buffer
	if err := b.urlTemplate.Execute(&buf, urlData{ChainID: chain.ID, Name: chain.Name}); err != nil {
		return "", fmt.Errorf("failed to render rpc url for %s: %w", chain, err)
	}

	url := strings.TrimSpace(buf.String())
	if url == "" {
		return "", fmt.Errorf("empty rpc url for %s", chain)
	}

	return url, nil
}

// Connect dials chain and verifies that the endpoint serves the expected chain id.
func (b *Backend) Connect(ctx context.Context, chain chains.Chain) (runner.ChainClient, error) {
	url, err := b.RPCURL(chain)
	if err != nil {
		return nil, err
	}

	client, err := b.cfg.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", chain, err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	if !chainID.IsUint64() || chainID.Uint64() != chain.ID {
		client.Close()
		return nil, fmt.Errorf("%w: expected %d, got %s", ErrChainIDMismatch, chain.ID, chainID)
	}

	return &chainClient{
		client:  client,
		chain:   chain,
		chainID: chainID,
		cfg:     b.cfg,
		logger:  b.logger.With("chain", chain.Name).With("chain_id", chain.ID),
	}, nil
}

func (b *Backend) dial(ctx context.Context, url string) (Client, error) {
	var opts []rpc.ClientOption
	if b.cfg.SecretHeader != "" && b.cfg.SecretKey != "" {
		opts = append(opts, rpc.WithHeader(b.cfg.SecretHeader, b.cfg.SecretKey))
	}

	rpcClient, err := rpc.DialOptions(ctx, url, opts...)
	if err != nil {
		return nil, err
	}

	return ethclient.NewClient(rpcClient), nil
}
