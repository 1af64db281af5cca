package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mediaorganizer/internal/runstore"
)

type historyRunJSON struct {
	ID           string             `json:"id"`
	LibraryDir   string             `json:"library_dir"`
	Status       string             `json:"status"`
	StartedAt    time.Time          `json:"started_at"`
	FinishedAt   time.Time          `json:"finished_at"`
	AbortedStage string             `json:"aborted_stage,omitempty"`
	AbortReason  string             `json:"abort_reason,omitempty"`
	Errors       int                `json:"errors"`
	Stages       []historyStageJSON `json:"stages"`
}

type historyStageJSON struct {
	Stage      string `json:"stage"`
	State      string `json:"state"`
	Expected   int    `json:"expected"`
	Processed  int    `json:"processed"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	DurationMS int64  `json:"duration_ms"`
	Reason     string `json:"reason,omitempty"`
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent pipeline runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.requireLibrary()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			dbPath := filepath.Join(cfg.StateDir(), runstore.FileName)
			if _, err := os.Stat(dbPath); os.IsNotExist(err) {
				if !cfg.History.Enabled {
					fmt.Fprintln(w, "Run history is disabled; set [history] enabled = true to record runs")
					return nil
				}
				fmt.Fprintln(w, "No runs recorded")
				return nil
			}

			store, err := runstore.Open(cmd.Context(), cfg.StateDir())
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, historyJSON(runs))
			}
			if len(runs) == 0 {
				fmt.Fprintln(w, "No runs recorded")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				processed, failed := 0, 0
				for _, st := range run.Stages {
					processed += st.Processed
					failed += st.Failed
				}
				duration := "-"
				if !run.FinishedAt.IsZero() {
					duration = formatDuration(run.FinishedAt.Sub(run.StartedAt))
				}
				rows = append(rows, []string{
					run.StartedAt.Local().Format("2006-01-02 15:04"),
					shortRunID(run.ID),
					string(run.Status),
					humanize.Comma(int64(processed)),
					humanize.Comma(int64(failed)),
					duration,
					run.AbortedStage,
				})
			}
			fmt.Fprintln(w, renderTable(
				[]string{"Started", "Run", "Status", "Processed", "Failed", "Duration", "Aborted At"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func historyJSON(runs []runstore.Run) []historyRunJSON {
	out := make([]historyRunJSON, 0, len(runs))
	for _, run := range runs {
		entry := historyRunJSON{
			ID:           run.ID,
			LibraryDir:   run.LibraryDir,
			Status:       string(run.Status),
			StartedAt:    run.StartedAt,
			FinishedAt:   run.FinishedAt,
			AbortedStage: run.AbortedStage,
			AbortReason:  run.AbortReason,
			Errors:       run.ErrorCount,
			Stages:       make([]historyStageJSON, 0, len(run.Stages)),
		}
		for _, st := range run.Stages {
			entry.Stages = append(entry.Stages, historyStageJSON{
				Stage:      st.Stage,
				State:      string(st.State),
				Expected:   st.Expected,
				Processed:  st.Processed,
				Skipped:    st.Skipped,
				Failed:     st.Failed,
				DurationMS: st.Duration.Milliseconds(),
				Reason:     st.Reason,
			})
		}
		out = append(out, entry)
	}
	return out
}
