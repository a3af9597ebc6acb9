package chains

import (
	"fmt"

	"github.com/compose-network/factory-deployer/configs"
	"github.com/spf13/cobra"
)

var CMD = &cobra.Command{
	Use:   "chains",
	Short: "List the chains a deployment would target, in order",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configs.Values
		if err := cfg.Networks.Validate(); err != nil {
			return err
		}

		resolved, err := Resolve(cfg.Networks.Sets, cfg.Networks.Targets, cfg.Networks.Chains, cfg.RPC.Overrides)
		if err != nil {
			return fmt.Errorf("failed to resolve chains: %w", err)
		}

		out := cmd.OutOrStdout()
		for i, chain := range resolved {
			selector := "-"
			if chain.Selector != 0 {
				selector = fmt.Sprintf("%d", chain.Selector)
			}
			if _, err := fmt.Fprintf(out, "%3d  %-12d %-40s %s\n", i+1, chain.ID, chain.Name, selector); err != nil {
				return err
			}
		}

		return nil
	},
}
