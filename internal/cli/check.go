package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/skymood/internal/preflight"
)

func newCheckCmd(ctx *context) *cobra.Command {
	opts := &devOptions{}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the dev prerequisites without starting anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, tasks, err := resolveDev(cmd, ctx, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Project root: %s\n", cfg.Root)
			if cfg.Source != "" {
				fmt.Fprintf(out, "Config: %s\n", cfg.Source)
			}
			for _, spec := range tasks {
				fmt.Fprintf(out, "  %s: %s (cwd=%s)\n", spec.Name, spec.String(), spec.Dir)
			}

			report := preflight.ForDev(cfg, tasks).Check()
			report.Print(out)
			return report.Err()
		},
	}
	bindDevFlags(cmd.Flags(), opts)
	return cmd
}
