package main

import (
	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/memstore/kernel"
	"github.com/tailored-agentic-units/memstore/memory"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var (
		address     string
		consistency string
		journal     string
		journalPath string
		metrics     bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a memory over Connect RPC",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}

			cfg.Merge(&kernel.Config{
				Memory: memory.Config{
					Consistency: consistency,
					Journal:     memory.JournalConfig{Backend: journal, Path: journalPath},
				},
				Server:        kernel.ServerConfig{Address: address},
				Observability: kernel.ObservabilityConfig{Metrics: metrics},
			})

			k, err := kernel.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer k.Close()

			return k.Serve(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&address, "listen", "", "Listen address (overrides config)")
	cmd.Flags().StringVar(&consistency, "consistency", "", "eventual or strong (overrides config)")
	cmd.Flags().StringVar(&journal, "journal", "", "Journal backend: file or badger (overrides config)")
	cmd.Flags().StringVar(&journalPath, "journal-path", "", "Journal directory (overrides config)")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "Expose Prometheus metrics at /metrics")

	return cmd
}
