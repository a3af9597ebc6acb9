package report

import (
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/compose-network/factory-deployer/internal/chains"
	"github.com/compose-network/factory-deployer/internal/runner"
)

func testRun() *Run {
	run := NewRun(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	run.FinishedAt = run.StartedAt.Add(time.Minute)
	run.Contract = "AccountFactory"
	run.Version = "1.2.0"
	run.RawABI = "[\n  {\"type\": \"constructor\", \"inputs\": []}\n]"
	run.Factory = common.HexToAddress("0x4e59b44847b379578588920cA78FbF26c0B4956C")
	run.Deployer = common.HexToAddress("0x1111111111111111111111111111111111111111")
	run.Outcomes = []runner.Outcome{
		{
			Chain:   chains.Chain{ID: 1, Name: "ethereum-mainnet", Selector: 5009297550715157269},
			Status:  runner.StatusAlreadyDeployed,
			Address: common.HexToAddress("0xaa"),
			Balance: big.NewInt(42),
		},
		{
			Chain:   chains.Chain{ID: 8453, Name: "ethereum-mainnet-base-1"},
			Status:  runner.StatusDeployed,
			Address: common.HexToAddress("0xbb"),
			Receipt: &runner.Receipt{
				Address:     common.HexToAddress("0xbb"),
				TxHash:      common.HexToHash("0x01"),
				BlockNumber: 77,
				GasUsed:     123456,
			},
		},
		{
			Chain:  chains.Chain{ID: 10, Name: "ethereum-mainnet-optimism-1"},
			Status: runner.StatusFailed,
			Stage:  runner.StageConnect,
			Err:    errors.New("dial tcp: timeout"),
		},
	}
	return run
}

func TestGenerator_Report(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "out", "deployments.yaml")
	run := testRun()

	require.NoError(t, NewGenerator(path, "").Generate(run))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(data, &got))

	assert.Equal(t, run.ID.String(), got["run-id"])
	assert.Equal(t, "2026-01-02T03:04:05Z", got["started-at"])
	assert.Equal(t, map[string]any{"already-deployed": 1, "deployed": 1, "failed": 1}, got["summary"])

	contract := got["contract"].(map[string]any)
	assert.Equal(t, "AccountFactory", contract["name"])
	assert.Equal(t, `[{"type":"constructor","inputs":[]}]`, contract["abi"])
	assert.Contains(t, string(data), `abi: '[{"type":"constructor","inputs":[]}]'`)

	rows := got["chains"].([]any)
	require.Len(t, rows, 3)

	first := rows[0].(map[string]any)
	assert.Equal(t, "already-deployed", first["status"])
	assert.Equal(t, "42", first["balance-wei"])
	assert.NotContains(t, first, "tx-hash")

	second := rows[1].(map[string]any)
	assert.Equal(t, "deployed", second["status"])
	assert.Equal(t, 77, second["block-number"])
	assert.Equal(t, common.HexToHash("0x01").Hex(), second["tx-hash"])

	third := rows[2].(map[string]any)
	assert.Equal(t, "failed", third["status"])
	assert.Equal(t, "connect", third["stage"])
	assert.Equal(t, "dial tcp: timeout", third["error"])
	assert.NotContains(t, third, "address")
}

func TestGenerator_Metrics(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "deployer.prom")

	require.NoError(t, NewGenerator("", path).Generate(testRun()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	for _, want := range []string{
		`deployer_outcomes_total{status="already-deployed"} 1`,
		`deployer_outcomes_total{status="deployed"} 1`,
		`deployer_outcomes_total{status="failed"} 1`,
		`deployer_outcomes_total{status="dry-run"} 0`,
		`deployer_chain_outcome{chain="ethereum-mainnet-base-1",chain_id="8453",status="deployed"} 1`,
		`deployer_chain_outcome{chain="ethereum-mainnet-optimism-1",chain_id="10",status="failed"} 1`,
	} {
		assert.True(t, strings.Contains(text, want), "missing %q in\n%s", want, text)
	}
}

func TestGenerator_Disabled(t *testing.T) {
	t.Parallel()

	require.NoError(t, NewGenerator("", "").Generate(testRun()))
}
