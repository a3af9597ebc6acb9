// Package runner deploys one set of deployment parameters to an ordered list of chains, one
// chain at a time, and records a single outcome per chain. A failure on one chain never stops
// the remaining ones.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/compose-network/factory-deployer/internal/chains"
	"github.com/compose-network/factory-deployer/internal/logger"
)

// ErrAddressMismatch is returned when the factory creates, or would create, the contract
// somewhere other than the predicted address.
var ErrAddressMismatch = errors.New("deployed address differs from predicted address")

type (
	// Params are the immutable inputs of a run, shared by every chain.
	Params struct {
		Contract        string
		Version         string
		ConstructorArgs []string
		Salt            common.Hash
		InitCode        []byte
	}

	// Backend opens a connection to a single chain.
	Backend interface {
		Connect(ctx context.Context, chain chains.Chain) (ChainClient, error)
	}

	// ChainClient performs the deployment steps against one connected chain.
	ChainClient interface {
		Balance(ctx context.Context, account common.Address) (*big.Int, error)
		PredictAddress(ctx context.Context, params Params) (common.Address, error)
		IsDeployed(ctx context.Context, address common.Address) (bool, error)
		// Deploy submits the deployment and blocks until it is confirmed.
		Deploy(ctx context.Context, params Params) (*Receipt, error)
		Close()
	}

	Runner struct {
		backend Backend
		account common.Address
		params  Params
		chains  []chains.Chain
		dryRun  bool
		logger  *slog.Logger
	}

	Option func(*Runner)
)

// WithLogger replaces the default runner logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithDryRun stops after the existence check; nothing is sent.
func WithDryRun(dryRun bool) Option {
	return func(r *Runner) {
		r.dryRun = dryRun
	}
}

func New(backend Backend, account common.Address, params Params, targets []chains.Chain, opts ...Option) *Runner {
	r := &Runner{
		backend: backend,
		account: account,
		params:  params,
		chains:  targets,
		logger:  logger.Named("runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes every chain in order and returns one outcome per chain, in the same order.
func (r *Runner) Run(ctx context.Context) []Outcome {
	r.logger.
		With("contract", r.params.Contract).
		With("version", r.params.Version).
		With("account", r.account.Hex()).
		With("chains", len(r.chains)).
		Info("starting deployment run")

	outcomes := make([]Outcome, 0, len(r.chains))
	for i, chain := range r.chains {
		log := r.logger.With("chain", chain.Name).With("chain_id", chain.ID).With("step", fmt.Sprintf("%d/%d", i+1, len(r.chains)))

		var outcome Outcome
		if err := ctx.Err(); err != nil {
			outcome = failed(chain, StageConnect, fmt.Errorf("run cancelled: %w", err))
		} else {
			outcome = r.deployToChain(ctx, log, chain)
		}

		logOutcome(log, outcome)
		outcomes = append(outcomes, outcome)
	}

	return outcomes
}

func (r *Runner) deployToChain(ctx context.Context, log *slog.Logger, chain chains.Chain) Outcome {
	log.Info("connecting")
	client, err := r.backend.Connect(ctx, chain)
	if err != nil {
		return failed(chain, StageConnect, err)
	}
	defer client.Close()

	balance, err := client.Balance(ctx, r.account)
	if err != nil {
		log.With("err", err.Error()).Warn("failed to query deployer balance")
		balance = nil
	} else {
		log.With("balance", FormatBalance(balance)).Info("deployer balance")
	}

	log.Info("predicting address")
	predicted, err := client.PredictAddress(ctx, r.params)
	if err != nil {
		return withState(failed(chain, StagePredict, err), common.Address{}, balance)
	}
	log = log.With("address", predicted.Hex())

	log.Info("checking for existing deployment")
	deployed, err := client.IsDeployed(ctx, predicted)
	if err != nil {
		return withState(failed(chain, StageCheck, err), predicted, balance)
	}

	outcome := Outcome{
		Chain:   chain,
		Address: predicted,
		Balance: balance,
	}

	switch {
	case deployed:
		outcome.Status = StatusAlreadyDeployed
		return outcome
	case r.dryRun:
		outcome.Status = StatusDryRun
		return outcome
	}

	log.Info("deploying")
	receipt, err := client.Deploy(ctx, r.params)
	if err != nil {
		return withState(failed(chain, StageDeploy, err), predicted, balance)
	}
	if receipt.Address != predicted {
		err := fmt.Errorf("%w: predicted %s, got %s (tx %s)", ErrAddressMismatch, predicted.Hex(), receipt.Address.Hex(), receipt.TxHash.Hex())
		return withState(failed(chain, StageDeploy, err), predicted, balance)
	}

	outcome.Status = StatusDeployed
	outcome.Receipt = receipt

	return outcome
}

func failed(chain chains.Chain, stage Stage, err error) Outcome {
	return Outcome{
		Chain:  chain,
		Status: StatusFailed,
		Stage:  stage,
		Err:    err,
	}
}

// withState keeps what was learned about the chain before the failing stage.
func withState(o Outcome, address common.Address, balance *big.Int) Outcome {
	o.Address = address
	o.Balance = balance
	return o
}

func logOutcome(log *slog.Logger, o Outcome) {
	switch o.Status {
	case StatusAlreadyDeployed:
		log.Info("already deployed, skipping")
	case StatusDryRun:
		log.Info("not deployed yet, dry run")
	case StatusDeployed:
		log.
			With("tx", o.Receipt.TxHash.Hex()).
			With("block", o.Receipt.BlockNumber).
			With("gas_used", o.Receipt.GasUsed).
			Info("deployed")
	case StatusFailed:
		log.With("stage", string(o.Stage)).With("err", o.Err.Error()).Error("deployment failed")
	}
}
