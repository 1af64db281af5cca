package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mediaorganizer/internal/logging"
	"mediaorganizer/internal/organizer"
	"mediaorganizer/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var only []string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the library, media tools, and classifier endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.requireLibrary()
			if err != nil {
				return err
			}
			handlers := organizer.Build(cfg, organizer.DefaultDependencies(cfg, logging.NewNop()))
			defer organizer.CloseAll(handlers)
			if len(only) == 0 {
				only = cfg.Pipeline.Stages
			}
			selected, err := organizer.Select(handlers, only)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			results := preflight.RunAll(cmd.Context(), cfg, selected)
			renderChecks(out, results, shouldColorize(out))
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d readiness check(s) failed", len(failed))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&only, "only", nil, "Check only these stages")
	return cmd
}
