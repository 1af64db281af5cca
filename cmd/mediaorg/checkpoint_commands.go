package main

import (
	"fmt"
	"slices"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mediaorganizer/internal/checkpoint"
	"mediaorganizer/internal/organizer"
)

func newCheckpointCommand(ctx *commandContext) *cobra.Command {
	checkpointCmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect or reset stage checkpoints",
	}
	checkpointCmd.AddCommand(newCheckpointListCommand(ctx))
	checkpointCmd.AddCommand(newCheckpointResetCommand(ctx))
	return checkpointCmd
}

type checkpointJSON struct {
	Stage     string    `json:"stage"`
	Items     int       `json:"items"`
	UpdatedAt time.Time `json:"updated_at"`
	Path      string    `json:"path"`
}

func newCheckpointListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show saved checkpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.requireLibrary()
			if err != nil {
				return err
			}
			infos, err := checkpoint.NewStore(cfg.StateDir()).List()
			if err != nil {
				return err
			}

			if jsonOutput {
				out := make([]checkpointJSON, 0, len(infos))
				for _, info := range infos {
					out = append(out, checkpointJSON{Stage: info.Stage, Items: info.Count, UpdatedAt: info.UpdatedAt, Path: info.Path})
				}
				return writeJSON(cmd, out)
			}

			w := cmd.OutOrStdout()
			if len(infos) == 0 {
				fmt.Fprintln(w, "No checkpoints saved")
				return nil
			}
			rows := make([][]string, 0, len(infos))
			for _, info := range infos {
				rows = append(rows, []string{
					info.Stage,
					humanize.Comma(int64(info.Count)),
					humanize.Time(info.UpdatedAt),
					info.Path,
				})
			}
			fmt.Fprintln(w, renderTable(
				[]string{"Stage", "Items", "Updated", "Path"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newCheckpointResetCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "reset [stage...]",
		Short: "Delete checkpoints so stages reprocess every item",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return fmt.Errorf("name one or more stages or pass --all")
			}
			cfg, err := ctx.requireLibrary()
			if err != nil {
				return err
			}
			names := args
			if all {
				names = organizer.Names()
			}
			known := organizer.Names()
			for _, name := range names {
				if !slices.Contains(known, name) {
					return fmt.Errorf("unknown stage %q (run `mediaorg stages`)", name)
				}
			}

			store := checkpoint.NewStore(cfg.StateDir())
			w := cmd.OutOrStdout()
			for _, name := range names {
				existed := store.Exists(name)
				if err := store.Reset(name); err != nil {
					return err
				}
				if existed {
					fmt.Fprintf(w, "Reset %s\n", name)
				} else if !all {
					fmt.Fprintf(w, "No checkpoint for %s\n", name)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Reset every stage")
	return cmd
}
