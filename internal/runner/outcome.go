package runner

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/compose-network/factory-deployer/internal/chains"
)

type (
	Status string
	Stage  string
)

const (
	StatusAlreadyDeployed Status = "already-deployed"
	StatusDeployed        Status = "deployed"
	StatusFailed          Status = "failed"
	StatusDryRun          Status = "dry-run"
)

const (
	StageConnect Stage = "connect"
	StagePredict Stage = "predict"
	StageCheck   Stage = "check"
	StageDeploy  Stage = "deploy"
)

type (
	// Outcome is the result of processing a single chain.
	Outcome struct {
		Chain  chains.Chain
		Status Status
		// Address is the predicted address. Failures before prediction leave it zero.
		Address common.Address
		// Receipt is set for StatusDeployed only.
		Receipt *Receipt
		// Balance of the deploying account, nil when the query failed.
		Balance *big.Int
		// Stage and Err are set for StatusFailed only.
		Stage Stage
		Err   error
	}

	// Receipt describes a confirmed deployment transaction.
	Receipt struct {
		Address     common.Address
		TxHash      common.Hash
		BlockNumber uint64
		GasUsed     uint64
	}

	// Summary counts outcomes per status.
	Summary struct {
		Total  int
		Counts map[Status]int
	}
)

func (o Outcome) Failed() bool {
	return o.Status == StatusFailed
}

// Summarize counts outcomes by status.
func Summarize(outcomes []Outcome) Summary {
	s := Summary{
		Total:  len(outcomes),
		Counts: make(map[Status]int),
	}
	for _, o := range outcomes {
		s.Counts[o.Status]++
	}
	return s
}

// Count returns the number of outcomes with status.
func (s Summary) Count(status Status) int {
	return s.Counts[status]
}

// Failed reports whether at least one chain failed.
func (s Summary) Failed() bool {
	return s.Counts[StatusFailed] > 0
}
