package main

import (
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show stored article and summary counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, a, cleanup, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		total, byTopic, err := a.Articles.Stats(ctx)
		if err != nil {
			return err
		}
		summaries, err := a.Summaries.Count(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]any{
			"totalArticles":   total,
			"totalSummaries":  summaries,
			"articlesByTopic": byTopic,
		})
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
