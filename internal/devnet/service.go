// Package devnet rehearses a deployment against local anvil forks of the target chains, run in
// docker, before anything is sent to the live networks.
package devnet

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/compose-network/factory-deployer/configs"
	"github.com/compose-network/factory-deployer/internal/chains"
	"github.com/compose-network/factory-deployer/internal/deploy"
	"github.com/compose-network/factory-deployer/internal/evm"
	"github.com/compose-network/factory-deployer/internal/logger"
	"github.com/compose-network/factory-deployer/internal/runner"
)

type Service struct {
	docker  *DockerClient
	plan    *deploy.Plan
	backend *evm.Backend
	cfg     configs.Devnet
	fund    *big.Int
	logger  *slog.Logger
}

func NewService(docker *DockerClient, plan *deploy.Plan, cfg configs.Devnet) (*Service, error) {
	fund, ok := new(big.Int).SetString(cfg.FundWei, 10)
	if !ok || fund.Sign() < 0 {
		return nil, fmt.Errorf("devnet.fund-wei '%s' is not a valid amount", cfg.FundWei)
	}

	backend, err := plan.NewBackend()
	if err != nil {
		return nil, err
	}

	return &Service{
		docker:  docker,
		plan:    plan,
		backend: backend,
		cfg:     cfg,
		fund:    fund,
		logger:  logger.Named("devnet"),
	}, nil
}

// Rehearse runs the deployment against a fresh fork of every planned chain, one at a time.
func (s *Service) Rehearse(ctx context.Context) ([]runner.Outcome, error) {
	if err := s.docker.EnsureImage(ctx, s.cfg.Image); err != nil {
		return nil, err
	}

	outcomes := make([]runner.Outcome, 0, len(s.plan.Chains))
	for _, chain := range s.plan.Chains {
		outcomes = append(outcomes, s.rehearseChain(ctx, chain))
	}

	return outcomes, nil
}

func (s *Service) rehearseChain(ctx context.Context, chain chains.Chain) runner.Outcome {
	log := s.logger.With("chain", chain.Name).With("chain_id", chain.ID)

	forkURL, err := s.backend.RPCURL(chain)
	if err != nil {
		return failedOutcome(chain, err)
	}

	log.Info("starting anvil fork")
	c, err := s.docker.Start(ctx, containerOptions(ForkOptions{
		Image:        s.cfg.Image,
		ChainID:      chain.ID,
		ForkURL:      forkURL,
		SecretHeader: s.plan.Config.RPC.SecretHeader,
		SecretKey:    s.plan.Config.Credentials.SecretKey,
		HostPort:     s.cfg.Port,
	}))
	if err != nil {
		return failedOutcome(chain, fmt.Errorf("failed to start anvil: %w", err))
	}
	defer s.docker.Remove(context.WithoutCancel(ctx), c.ID)

	localURL := fmt.Sprintf("http://127.0.0.1:%s", c.HostPort)
	if err := waitForRPC(ctx, localURL, chain.ID); err != nil {
		log.With("logs", s.docker.Logs(context.WithoutCancel(ctx), c.ID)).Debug("anvil output")
		return failedOutcome(chain, fmt.Errorf("anvil fork is not ready: %w", err))
	}

	if s.fund.Sign() > 0 {
		if err := setBalance(ctx, localURL, s.plan.Account, s.fund); err != nil {
			return failedOutcome(chain, err)
		}
		log.With("balance", runner.FormatBalance(s.fund)).Info("deployer funded on fork")
	}

	local := chain
	local.RPCURL = localURL

	outcome := s.plan.Run(ctx, s.backend, []chains.Chain{local})[0]
	outcome.Chain = chain

	return outcome
}

func failedOutcome(chain chains.Chain, err error) runner.Outcome {
	return runner.Outcome{
		Chain:  chain,
		Status: runner.StatusFailed,
		Stage:  runner.StageConnect,
		Err:    err,
	}
}
