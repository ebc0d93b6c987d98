package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/iceymoss/go-feed/internal/app"
	"github.com/iceymoss/go-feed/internal/conf"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "feedctl",
	Short: "Run the feed pipeline from the command line",
	Long: `feedctl runs discovery, enrichment and summarization once and prints the report.

Example usage:
  feedctl run                                   # scheduled topics x categories from config
  feedctl run --topic golang --category news    # override dimensions
  feedctl scrape -i rust -w lwn.net --max 2     # on-demand, quota limited
  feedctl stats                                 # stored article counts`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "configs/config.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level")
}

// bootstrap 加载配置并组装依赖, ctx 在收到 SIGINT/SIGTERM 时取消
func bootstrap(cmd *cobra.Command) (context.Context, *app.App, func(), error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, nil, nil, err
	}
	path := cfgFile
	if p := os.Getenv(conf.PathEnv); p != "" && !cmd.Flags().Changed("config") {
		path = p
	}
	cfg, err := conf.LoadConfig(path)
	if err != nil {
		return nil, nil, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	a, err := app.New(ctx, cfg)
	if err != nil {
		stop()
		return nil, nil, nil, err
	}
	return ctx, a, func() {
		stop()
		a.Close()
	}, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
