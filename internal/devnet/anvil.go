package devnet

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/docker/go-connections/nat"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

const (
	anvilPort          = "8545"
	readinessAttempts  = 30
	readinessDelay     = time.Second
	anvilContainerName = "factory-deployer-anvil-%d"
)

// ForkOptions describe an anvil instance forking a live chain.
type ForkOptions struct {
	Image        string
	ChainID      uint64
	ForkURL      string
	SecretHeader string
	SecretKey    string
	HostPort     int
}

// anvilArgs returns the anvil command line. The secret travels as a fork header so it never
// becomes part of the fork URL.
func anvilArgs(opts ForkOptions) []string {
	args := []string{
		"--host", "0.0.0.0",
		"--port", anvilPort,
		"--fork-url", opts.ForkURL,
		"--chain-id", strconv.FormatUint(opts.ChainID, 10),
	}
	if opts.SecretHeader != "" && opts.SecretKey != "" {
		args = append(args, "--fork-header", fmt.Sprintf("%s: %s", opts.SecretHeader, opts.SecretKey))
	}
	return args
}

func containerOptions(opts ForkOptions) ContainerOptions {
	hostPort := ""
	if opts.HostPort > 0 {
		hostPort = strconv.Itoa(opts.HostPort)
	}

	return ContainerOptions{
		Name:       fmt.Sprintf(anvilContainerName, opts.ChainID),
		Image:      opts.Image,
		Entrypoint: []string{"anvil"},
		Cmd:        anvilArgs(opts),
		Port:       nat.Port(anvilPort + "/tcp"),
		HostPort:   hostPort,
	}
}

// waitForRPC polls eth_chainId until the fork answers with the expected chain id.
func waitForRPC(ctx context.Context, url string, chainID uint64) error {
	return retry.Do(func() error {
		client, err := rpc.DialContext(ctx, url)
		if err != nil {
			return err
		}
		defer client.Close()

		var got hexutil.Uint64
		if err := client.CallContext(ctx, &got, "eth_chainId"); err != nil {
			return err
		}
		if uint64(got) != chainID {
			return retry.Unrecoverable(fmt.Errorf("fork reports chain id %d, expected %d", uint64(got), chainID))
		}
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(readinessAttempts),
		retry.Delay(readinessDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}

// setBalance overwrites the balance of account on an anvil node.
func setBalance(ctx context.Context, url string, account common.Address, wei *big.Int) error {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to dial anvil: %w", err)
	}
	defer client.Close()

	if err := client.CallContext(ctx, nil, "anvil_setBalance", account, (*hexutil.Big)(wei)); err != nil {
		return fmt.Errorf("failed to set balance: %w", err)
	}
	return nil
}
