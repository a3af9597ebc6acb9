package deploy

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/compose-network/factory-deployer/configs"
	"github.com/compose-network/factory-deployer/internal/runner"
)

var CMD = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy the contract template to every configured chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		slog.Info("starting deploy command. Validating config")

		plan, err := Prepare(configs.Values, ModeDeploy)
		if err != nil {
			return err
		}

		if _, err := Execute(cmd.Context(), plan); err != nil {
			return err
		}

		return nil
	},
}

var PredictCMD = &cobra.Command{
	Use:   "predict",
	Short: "Print the deterministic address and deployment status on every configured chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, err := Prepare(configs.Values, ModePredict)
		if err != nil {
			return err
		}

		backend, err := plan.NewBackend()
		if err != nil {
			return err
		}

		run := plan.NewRun()
		outcomes := plan.Run(cmd.Context(), backend, plan.Chains)
		if err := PrintOutcomes(cmd.OutOrStdout(), outcomes); err != nil {
			return err
		}

		_, err = plan.Finish(run, outcomes)
		return err
	},
}

func init() {
	if err := DeclareFlags(CMD); err != nil {
		panic(err)
	}
	if err := DeclareFlags(PredictCMD); err != nil {
		panic(err)
	}
}

// PrintOutcomes writes one line per chain.
func PrintOutcomes(w io.Writer, outcomes []runner.Outcome) error {
	for _, o := range outcomes {
		detail := o.Address.Hex()
		switch {
		case o.Failed():
			detail = fmt.Sprintf("%s: %v", o.Stage, o.Err)
		case o.Receipt != nil:
			detail = fmt.Sprintf("%s tx %s", o.Address.Hex(), o.Receipt.TxHash.Hex())
		}

		if _, err := fmt.Fprintf(w, "%-12d %-40s %-17s %s\n", o.Chain.ID, o.Chain.Name, o.Status, detail); err != nil {
			return err
		}
	}
	return nil
}
