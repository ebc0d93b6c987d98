package main

import (
	"fmt"
	"strings"

	"github.com/iceymoss/go-feed/internal/pipeline"

	"github.com/spf13/cobra"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "On-demand run for interests x websites",
	Long: `Same semantics as POST /api/scrape-and-summarize.

Examples:
  feedctl scrape -i rust -i wasm -w lwn.net -w https://lobste.rs
  feedctl scrape -i security -w krebsonsecurity.com --max 1`,
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringSliceP("interest", "i", nil, "interests (required)")
	scrapeCmd.Flags().StringSliceP("website", "w", nil, "websites (required)")
	scrapeCmd.Flags().Int("max", 0, "quota, default pipeline.onDemandQuota")
}

func runScrape(cmd *cobra.Command, _ []string) error {
	interests, _ := cmd.Flags().GetStringSlice("interest")
	websites, _ := cmd.Flags().GetStringSlice("website")
	limit, _ := cmd.Flags().GetInt("max")

	interests = nonEmpty(interests, func(s string) string { return s })
	websites = nonEmpty(websites, func(s string) string {
		s = strings.TrimPrefix(strings.TrimPrefix(s, "https://"), "http://")
		return strings.TrimRight(s, "/")
	})
	if len(interests) == 0 || len(websites) == 0 {
		return fmt.Errorf("--interest and --website are required")
	}

	ctx, a, cleanup, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	opts := a.OnDemandOptions()
	if limit > 0 {
		opts.MaxNewSummaries = limit
	}
	report := a.Pipeline.RunBatch(ctx, pipeline.SiteProduct(interests, websites), opts)
	return printJSON(cmd, report)
}

func nonEmpty(items []string, clean func(string) string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = clean(strings.TrimSpace(it)); it != "" {
			out = append(out, it)
		}
	}
	return out
}
