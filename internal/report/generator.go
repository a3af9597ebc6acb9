// Package report writes the artifacts of a deployment run: a YAML report of every chain outcome
// and an optional Prometheus textfile for node_exporter's textfile collector.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/compose-network/factory-deployer/internal/logger"
	"github.com/compose-network/factory-deployer/internal/runner"
)

type (
	// Run describes one invocation of the runner.
	Run struct {
		ID              uuid.UUID
		StartedAt       time.Time
		FinishedAt      time.Time
		DryRun          bool
		Contract        string
		Version         string
		RawABI          string
		ConstructorArgs []string
		Factory         common.Address
		Salt            common.Hash
		Deployer        common.Address
		Outcomes        []runner.Outcome
	}

	Generator struct {
		path        string
		metricsPath string
		logger      *slog.Logger
	}
)

// NewRun starts a run record with a fresh id.
func NewRun(startedAt time.Time) *Run {
	return &Run{
		ID:        uuid.New(),
		StartedAt: startedAt,
	}
}

// NewGenerator creates a generator. An empty path disables the corresponding artifact.
func NewGenerator(path, metricsPath string) *Generator {
	return &Generator{
		path:        path,
		metricsPath: metricsPath,
		logger:      logger.Named("report"),
	}
}

func (g *Generator) Generate(run *Run) error {
	if g.path != "" {
		if err := writeYAML(g.path, buildModel(run)); err != nil {
			return err
		}
		g.logger.With("path", g.path).With("run_id", run.ID.String()).Info("deployment report written")
	}

	if g.metricsPath != "" {
		if err := WriteMetrics(g.metricsPath, run.Outcomes); err != nil {
			return err
		}
		g.logger.With("path", g.metricsPath).Info("deployment metrics written")
	}

	return nil
}

func buildModel(run *Run) *Model {
	summary := runner.Summarize(run.Outcomes)
	counts := make(map[string]int, len(summary.Counts))
	for status, n := range summary.Counts {
		counts[string(status)] = n
	}

	model := &Model{
		RunID:      run.ID.String(),
		StartedAt:  run.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt: run.FinishedAt.UTC().Format(time.RFC3339),
		DryRun:     run.DryRun,
		Contract: ContractConfig{
			Name:            run.Contract,
			Version:         run.Version,
			Factory:         run.Factory,
			Salt:            run.Salt,
			Deployer:        run.Deployer,
			ConstructorArgs: run.ConstructorArgs,
			ABI:             SingleQuotedString(compactJSON(run.RawABI)),
		},
		Summary: counts,
		Chains:  make([]ChainRow, 0, len(run.Outcomes)),
	}

	for _, o := range run.Outcomes {
		model.Chains = append(model.Chains, buildRow(o))
	}

	return model
}

func buildRow(o runner.Outcome) ChainRow {
	row := ChainRow{
		ID:       o.Chain.ID,
		Name:     o.Chain.Name,
		Selector: o.Chain.Selector,
		Status:   string(o.Status),
	}

	if o.Address != (common.Address{}) {
		address := o.Address
		row.Address = &address
	}
	if o.Balance != nil {
		row.Balance = o.Balance.String()
	}
	if o.Receipt != nil {
		txHash := o.Receipt.TxHash
		row.TxHash = &txHash
		row.BlockNumber = o.Receipt.BlockNumber
		row.GasUsed = o.Receipt.GasUsed
	}
	if o.Status == runner.StatusFailed {
		row.Stage = string(o.Stage)
		if o.Err != nil {
			row.Error = o.Err.Error()
		}
	}

	return row
}

func writeYAML(path string, model *Model) error {
	data, err := yaml.Marshal(model)
	if err != nil {
		return fmt.Errorf("could not marshal report model. Err: '%w'", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("could not create report directory. Err: '%w'", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("could not write report file. Err: '%w'", err)
	}

	return nil
}

func compactJSON(jsonStr string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(jsonStr)); err != nil {
		return jsonStr
	}
	return buf.String()
}
