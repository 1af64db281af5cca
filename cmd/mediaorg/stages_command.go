package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mediaorganizer/internal/organizer"
	"mediaorganizer/internal/stage"
)

var stageDescriptions = map[string]string{
	organizer.StageInitTags:       "Merge default tags into the SFW/NSFW vocabulary files",
	organizer.StageFindDuplicates: "Group files by content fingerprint into the duplicate log",
	organizer.StageMoveDuplicates: "Move every non-canonical duplicate into the duplicates directory",
	organizer.StageOrganizeByDate: "Move files into YYYY/MM/DD folders by capture date",
	organizer.StageDetectNSFW:     "Score organized images and move unsafe ones aside",
	organizer.StageTagImages:      "Tag organized images through the classifier",
	organizer.StageTagVideos:      "Tag organized videos from sampled frames",
	organizer.StageBuildIndex:     "Merge tag and NSFW logs into the JSON-lines index",
}

func newStagesCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "stages",
		Short:       "List pipeline stages in execution order",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			names := organizer.Names()
			rows := make([][]string, 0, len(names))
			for i, name := range names {
				rows = append(rows, []string{strconv.Itoa(i + 1), name, stage.Label(name), stageDescriptions[name]})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"#", "Name", "Stage", "Description"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}
