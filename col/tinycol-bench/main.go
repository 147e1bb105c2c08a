package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pingcap-incubator/tinycol/col/config"
	"github.com/pingcap-incubator/tinycol/log"
)

var (
	configPath string
	logLevel   string
	benchOpts  = defaultBenchOptions()
)

func addBenchFlags(fs *pflag.FlagSet, opts *benchOptions) {
	fs.IntVarP(&opts.Iterations, "iterations", "n", opts.Iterations, "transactions per round")
	fs.IntVar(&opts.Rounds, "rounds", opts.Rounds, "measured rounds")
	fs.IntVar(&opts.Warmup, "warmup", opts.Warmup, "warm-up rounds, not measured")
	fs.IntVarP(&opts.Workers, "workers", "w", opts.Workers, "concurrent workers per round")
	fs.Float64Var(&opts.Rate, "rate", opts.Rate, "transactions per second over all workers, 0 for unlimited")
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.NewDefaultConfig(), nil
	}
	return config.FromFile(configPath)
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tinycol-bench",
		Short:         "Measure insert+commit transaction throughput on a column store",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := log.Init(cfg.LogConfig()); err != nil {
				return err
			}
			defer log.Sync()
			for _, msg := range cfg.WarningMsgs {
				log.Warn(msg)
			}
			log.Infof("conf %+v, bench %+v", cfg, benchOpts)

			_, err = runBench(cfg, benchOpts, cmd.OutOrStdout())
			return err
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&configPath, "config", "c", "", "TOML config file")
	fs.StringVarP(&logLevel, "log-level", "L", "info", "log level: debug, info, warn, error, fatal")
	addBenchFlags(fs, &benchOpts)
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
