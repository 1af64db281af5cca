package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"mediaorganizer/internal/pipeline"
	"mediaorganizer/internal/stage"
)

// maxListedErrors caps the failed items printed after a run; the run report
// keeps all of them.
const maxListedErrors = 10

func renderSummary(w io.Writer, s pipeline.Summary, reportPath string, colorize bool) {
	for _, line := range renderSectionHeader("Run "+shortRunID(s.RunID), colorize) {
		fmt.Fprintln(w, line)
	}

	headers := []string{"Stage", "State", "Items", "Processed", "Skipped", "Failed", "Duration", "Notes"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft}
	rows := make([][]string, 0, len(s.Stages))
	for _, st := range s.Stages {
		rows = append(rows, []string{
			stage.Label(st.Name),
			string(st.State),
			humanize.Comma(int64(st.Result.Expected)),
			humanize.Comma(int64(st.Result.Processed)),
			humanize.Comma(int64(st.Result.Skipped)),
			humanize.Comma(int64(st.Result.Failed)),
			formatDuration(st.Result.Duration),
			stageNotes(st),
		})
	}
	fmt.Fprintln(w, renderTable(headers, rows, aligns))

	processed, skipped, failed := s.Totals()
	totals := fmt.Sprintf("%s processed, %s skipped, %s failed in %s",
		humanize.Comma(int64(processed)),
		humanize.Comma(int64(skipped)),
		humanize.Comma(int64(failed)),
		formatDuration(s.Duration()),
	)
	fmt.Fprintln(w, renderStatusLine("Status", runStateKind(s.Status), string(s.Status), colorize))
	fmt.Fprintln(w, renderStatusLine("Totals", statusInfo, totals, colorize))
	if s.AbortedStage != "" {
		fmt.Fprintln(w, renderStatusLine("Aborted", statusError, s.AbortedStage+": "+s.AbortReason, colorize))
	}

	if errs := s.ItemErrors(); len(errs) > 0 {
		fmt.Fprintln(w)
		for _, line := range renderSectionHeader("Failed items", colorize) {
			fmt.Fprintln(w, line)
		}
		for i, e := range errs {
			if i == maxListedErrors {
				fmt.Fprintf(w, "%s... %d more in the run report\n", statusIndent, len(errs)-maxListedErrors)
				break
			}
			fmt.Fprintf(w, "%s[%s] %s: %s\n", statusIndent, e.Stage, e.Path, e.Message)
		}
	}
	if reportPath != "" {
		fmt.Fprintln(w, renderStatusLine("Report", statusInfo, reportPath, colorize))
	}
}

// stageNotes renders the skip or abort reason, or the stage counters.
func stageNotes(st pipeline.StageReport) string {
	if st.Reason != "" {
		return st.Reason
	}
	if len(st.Result.Counters) == 0 {
		return ""
	}
	parts := make([]string, 0, len(st.Result.Counters))
	for _, key := range slices.Sorted(maps.Keys(st.Result.Counters)) {
		if value := st.Result.Counters[key]; value != 0 {
			parts = append(parts, fmt.Sprintf("%s=%s", key, humanize.Comma(int64(value))))
		}
	}
	return strings.Join(parts, " ")
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
