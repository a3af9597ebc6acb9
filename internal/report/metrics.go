package report

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/compose-network/factory-deployer/internal/runner"
)

const metricsNamespace = "deployer"

var allStatuses = []runner.Status{
	runner.StatusAlreadyDeployed,
	runner.StatusDeployed,
	runner.StatusDryRun,
	runner.StatusFailed,
}

// WriteMetrics writes outcome counters and per-chain gauges in the Prometheus text format.
func WriteMetrics(path string, outcomes []runner.Outcome) error {
	registry := prometheus.NewRegistry()

	totals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "outcomes_total",
		Help:      "Number of chains per deployment outcome in the last run.",
	}, []string{"status"})

	perChain := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "chain_outcome",
		Help:      "Outcome of the last run per chain, 1 for the reported status.",
	}, []string{"chain_id", "chain", "status"})

	registry.MustRegister(totals, perChain)

	for _, status := range allStatuses {
		totals.WithLabelValues(string(status))
	}
	for _, o := range outcomes {
		totals.WithLabelValues(string(o.Status)).Inc()
		perChain.WithLabelValues(strconv.FormatUint(o.Chain.ID, 10), o.Chain.Name, string(o.Status)).Set(1)
	}

	if err := prometheus.WriteToTextfile(path, registry); err != nil {
		return fmt.Errorf("could not write metrics file. Err: '%w'", err)
	}

	return nil
}
