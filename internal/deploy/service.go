package deploy

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/compose-network/factory-deployer/configs"
	"github.com/compose-network/factory-deployer/internal/chains"
	"github.com/compose-network/factory-deployer/internal/create2"
	"github.com/compose-network/factory-deployer/internal/evm"
	"github.com/compose-network/factory-deployer/internal/logger"
	"github.com/compose-network/factory-deployer/internal/report"
	"github.com/compose-network/factory-deployer/internal/runner"
	"github.com/compose-network/factory-deployer/internal/templates"
)

// ErrChainsFailed is returned with fail-on-error when at least one chain failed.
var ErrChainsFailed = errors.New("deployment failed on one or more chains")

type Mode int

const (
	// ModeDeploy needs the signing key and the backend secret.
	ModeDeploy Mode = iota
	// ModePredict needs only the backend secret. The signing key is used when present.
	ModePredict
)

// Plan is everything derived from configuration before any chain is touched.
type Plan struct {
	Mode       Mode
	Config     configs.Config
	PrivateKey *ecdsa.PrivateKey
	Account    common.Address
	Chains     []chains.Chain
	Template   *templates.Template
	Factory    common.Address
	Params     runner.Params
}

// Prepare validates credentials and configuration and resolves the deployment inputs. Any
// error here is fatal for the run.
func Prepare(cfg configs.Config, mode Mode) (*Plan, error) {
	log := logger.Named("deploy")

	if err := validateCredentials(cfg.Credentials, mode); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	plan := &Plan{
		Mode:    mode,
		Config:  cfg,
		Factory: common.HexToAddress(cfg.Deployment.Factory),
	}

	vars := map[string]string{}
	if strings.TrimSpace(cfg.Credentials.PrivateKey) != "" {
		key, err := ParsePrivateKey(cfg.Credentials.PrivateKey)
		if err != nil {
			return nil, err
		}
		plan.PrivateKey = key
		plan.Account = crypto.PubkeyToAddress(key.PublicKey)
		vars[templates.VarDeployer] = plan.Account.Hex()
	}

	resolved, err := chains.Resolve(cfg.Networks.Sets, cfg.Networks.Targets, cfg.Networks.Chains, cfg.RPC.Overrides)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve chains: %w", err)
	}
	plan.Chains = resolved

	template, err := templates.NewRegistry(cfg.Deployment.TemplatesDir).Resolve(cfg.Deployment.Contract, cfg.Deployment.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve contract template: %w", err)
	}
	plan.Template = template

	args, err := templates.ExpandArgs(cfg.Deployment.ConstructorArgs, vars)
	if err != nil {
		return nil, err
	}

	initCode, err := template.InitCode(args)
	if err != nil {
		return nil, fmt.Errorf("failed to build init code: %w", err)
	}

	salt, err := create2.Salt(cfg.Deployment.Salt)
	if err != nil {
		return nil, fmt.Errorf("invalid deployment.salt: %w", err)
	}

	plan.Params = runner.Params{
		Contract:        template.Name,
		Version:         template.Version.String(),
		ConstructorArgs: args,
		Salt:            salt,
		InitCode:        initCode,
	}

	log.
		With("contract", plan.Params.Contract).
		With("version", plan.Params.Version).
		With("deployer", plan.Account.Hex()).
		With("factory", plan.Factory.Hex()).
		With("salt", salt.Hex()).
		With("chains", len(plan.Chains)).
		Info("deployment prepared")

	return plan, nil
}

// ParsePrivateKey parses a hex private key with or without the 0x prefix.
func ParsePrivateKey(raw string) (*ecdsa.PrivateKey, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "0x"), "0X")

	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return key, nil
}

func validateCredentials(c configs.Credentials, mode Mode) error {
	if mode == ModeDeploy {
		return c.Validate()
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return fmt.Errorf("%w: backend secret key (THIRDWEB_SECRET_KEY)", configs.ErrMissingCredential)
	}
	return nil
}

// NewBackend builds the EVM backend for the plan.
func (p *Plan) NewBackend() (*evm.Backend, error) {
	return evm.NewBackend(evm.BackendConfig{
		URLTemplate:         p.Config.RPC.URLTemplate,
		SecretHeader:        p.Config.RPC.SecretHeader,
		SecretKey:           p.Config.Credentials.SecretKey,
		PrivateKey:          p.PrivateKey,
		Factory:             p.Factory,
		BootstrapFactory:    p.Config.Deployment.BootstrapFactory,
		GasLimit:            p.Config.Deployment.GasLimit,
		ConfirmationTimeout: p.Config.Deployment.ConfirmationTimeout,
	})
}

// Run runs the deployment runner for targets. Predict mode never sends transactions.
func (p *Plan) Run(ctx context.Context, backend runner.Backend, targets []chains.Chain) []runner.Outcome {
	return runner.New(backend, p.Account, p.Params, targets, runner.WithDryRun(p.Mode == ModePredict)).Run(ctx)
}

// NewRun starts a report record for the plan.
func (p *Plan) NewRun() *report.Run {
	run := report.NewRun(time.Now())
	run.DryRun = p.Mode == ModePredict
	run.Contract = p.Params.Contract
	run.Version = p.Params.Version
	run.RawABI = p.Template.RawABI
	run.ConstructorArgs = p.Params.ConstructorArgs
	run.Factory = p.Factory
	run.Salt = p.Params.Salt
	run.Deployer = p.Account
	return run
}

// Finish writes the run artifacts, logs the summary and applies fail-on-error.
func (p *Plan) Finish(run *report.Run, outcomes []runner.Outcome) (runner.Summary, error) {
	run.FinishedAt = time.Now()
	run.Outcomes = outcomes

	summary := runner.Summarize(outcomes)
	logSummary(logger.Named("deploy"), summary, outcomes)

	if err := report.NewGenerator(p.Config.Report.Path, p.Config.Report.MetricsPath).Generate(run); err != nil {
		return summary, fmt.Errorf("failed to write run report: %w", err)
	}

	if p.Config.Deployment.FailOnError && summary.Failed() {
		return summary, fmt.Errorf("%w: %d of %d", ErrChainsFailed, summary.Count(runner.StatusFailed), summary.Total)
	}

	return summary, nil
}

// Execute runs the whole plan against live RPC endpoints.
func Execute(ctx context.Context, plan *Plan) (runner.Summary, error) {
	backend, err := plan.NewBackend()
	if err != nil {
		return runner.Summary{}, err
	}

	run := plan.NewRun()
	outcomes := plan.Run(ctx, backend, plan.Chains)

	return plan.Finish(run, outcomes)
}

func logSummary(log *slog.Logger, summary runner.Summary, outcomes []runner.Outcome) {
	for _, o := range outcomes {
		if !o.Failed() {
			continue
		}
		log.
			With("chain", o.Chain.Name).
			With("chain_id", o.Chain.ID).
			With("stage", string(o.Stage)).
			With("err", o.Err.Error()).
			Warn("chain failed")
	}

	log.
		With("total", summary.Total).
		With("deployed", summary.Count(runner.StatusDeployed)).
		With("already_deployed", summary.Count(runner.StatusAlreadyDeployed)).
		With("dry_run", summary.Count(runner.StatusDryRun)).
		With("failed", summary.Count(runner.StatusFailed)).
		Info("deployment run finished")
}
