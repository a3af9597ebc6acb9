package devnet

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/compose-network/factory-deployer/configs"
	"github.com/compose-network/factory-deployer/internal/deploy"
)

const reportPrefix = "rehearsal-"

var CMD = &cobra.Command{
	Use:   "rehearse",
	Short: "Run the deployment against local anvil forks of every configured chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		slog.Info("starting rehearse command. Validating config")

		plan, err := deploy.Prepare(configs.Values, deploy.ModeDeploy)
		if err != nil {
			return err
		}
		plan.Config.Report.Path = rehearsalPath(plan.Config.Report.Path)
		plan.Config.Report.MetricsPath = rehearsalPath(plan.Config.Report.MetricsPath)

		docker, err := NewDockerClient()
		if err != nil {
			return err
		}
		defer docker.Close()

		service, err := NewService(docker, plan, configs.Values.Devnet)
		if err != nil {
			return err
		}

		run := plan.NewRun()
		outcomes, err := service.Rehearse(cmd.Context())
		if err != nil {
			return fmt.Errorf("rehearsal failed: %w", err)
		}

		if err := deploy.PrintOutcomes(cmd.OutOrStdout(), outcomes); err != nil {
			return err
		}

		_, err = plan.Finish(run, outcomes)
		return err
	},
}

func init() {
	if err := deploy.DeclareFlags(CMD); err != nil {
		panic(err)
	}
}

// rehearsalPath keeps rehearsal artifacts next to, but distinct from, the live ones.
func rehearsalPath(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Join(filepath.Dir(path), reportPrefix+filepath.Base(path))
}
