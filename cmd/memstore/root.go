package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/memstore/kernel"
	"github.com/tailored-agentic-units/memstore/observability"
)

type rootFlags struct {
	config  string
	verbose bool
	addr    string
	owner   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "memstore",
		Short:         "Shared versioned key-value memory for cooperating agents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if flags.verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)
			observability.RegisterObserver("slog", observability.NewSlogObserver(logger))
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.config, "config", "c", "", "Path to config file (JSON or YAML)")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging to stderr")
	cmd.PersistentFlags().StringVar(&flags.addr, "addr", "http://127.0.0.1:7420", "Server base URL for client commands")
	cmd.PersistentFlags().StringVar(&flags.owner, "owner", "", "Owner identity sent with client requests")

	cmd.AddCommand(
		newServeCmd(flags),
		newStoreCmd(flags),
		newRecallCmd(flags),
		newRetrieveCmd(flags),
		newReleaseCmd(flags),
		newHistoryCmd(flags),
		newKeysCmd(flags),
		newBenchCmd(flags),
	)

	return cmd
}

// loadConfig returns defaults when no config file was given.
func (f *rootFlags) loadConfig() (*kernel.Config, error) {
	if f.config == "" {
		cfg := kernel.DefaultConfig()
		return &cfg, nil
	}
	return kernel.LoadConfig(f.config)
}
