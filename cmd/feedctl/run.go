package main

import (
	"github.com/iceymoss/go-feed/internal/pipeline"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduled batch once (topics x categories)",
	RunE:  runBatch,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSlice("topic", nil, "topics, default schedule.topics")
	runCmd.Flags().StringSlice("category", nil, "categories, default schedule.categories")
	runCmd.Flags().Int("max", 0, "stop after N new summaries, 0 means unlimited")
}

func runBatch(cmd *cobra.Command, _ []string) error {
	ctx, a, cleanup, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	topics, _ := cmd.Flags().GetStringSlice("topic")
	categories, _ := cmd.Flags().GetStringSlice("category")
	limit, _ := cmd.Flags().GetInt("max")
	if len(topics) == 0 {
		topics = a.Config.Schedule.Topics
	}
	if len(categories) == 0 {
		categories = a.Config.Schedule.Categories
	}

	opts := a.ScheduledOptions()
	opts.MaxNewSummaries = limit
	report := a.Pipeline.RunBatch(ctx, pipeline.CrossProduct(topics, categories), opts)
	return printJSON(cmd, report)
}
