package report

import (
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

type (
	Model struct {
		RunID      string         `yaml:"run-id"`
		StartedAt  string         `yaml:"started-at"`
		FinishedAt string         `yaml:"finished-at"`
		DryRun     bool           `yaml:"dry-run,omitempty"`
		Contract   ContractConfig `yaml:"contract"`
		Summary    map[string]int `yaml:"summary"`
		Chains     []ChainRow     `yaml:"chains"`
	}

	ContractConfig struct {
		Name            string             `yaml:"name"`
		Version         string             `yaml:"version"`
		Factory         common.Address     `yaml:"factory"`
		Salt            common.Hash        `yaml:"salt"`
		Deployer        common.Address     `yaml:"deployer"`
		ConstructorArgs []string           `yaml:"constructor-args,omitempty"`
		ABI             SingleQuotedString `yaml:"abi,omitempty"`
	}

	ChainRow struct {
		ID          uint64          `yaml:"id"`
		Name        string          `yaml:"name"`
		Selector    uint64          `yaml:"selector,omitempty"`
		Status      string          `yaml:"status"`
		Address     *common.Address `yaml:"address,omitempty"`
		TxHash      *common.Hash    `yaml:"tx-hash,omitempty"`
		BlockNumber uint64          `yaml:"block-number,omitempty"`
		GasUsed     uint64          `yaml:"gas-used,omitempty"`
		Balance     string          `yaml:"balance-wei,omitempty"`
		Stage       string          `yaml:"stage,omitempty"`
		Error       string          `yaml:"error,omitempty"`
	}

	SingleQuotedString string
)

func (s SingleQuotedString) MarshalYAML() (any, error) {
	node := &yaml.Node{
		Kind:  yaml.ScalarNode,
		Style: yaml.SingleQuotedStyle,
		Value: string(s),
	}
	return node, nil
}
