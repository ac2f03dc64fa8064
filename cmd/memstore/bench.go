package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/memstore/kernel"
	"github.com/tailored-agentic-units/memstore/memory"
	"github.com/tailored-agentic-units/memstore/observability"
)

func newBenchCmd(flags *rootFlags) *cobra.Command {
	cfg := kernel.DefaultBenchConfig()

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run concurrent agent increments under both consistency modes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			obs, err := observability.GetObserver("slog")
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MODE\tEXPECTED\tFINAL\tLOST\tCONTENDED\tDURATION")

			for _, mode := range []memory.Consistency{memory.Eventual, memory.Strong} {
				result, err := kernel.Bench(cmd.Context(), mode, cfg, obs)
				if err != nil {
					return fmt.Errorf("%s bench: %w", mode, err)
				}
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\n",
					result.Consistency, result.Expected, result.Final, result.Lost,
					result.Stats.Contended, result.Duration)
			}

			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&cfg.Agents, "agents", cfg.Agents, "Concurrent agents")
	cmd.Flags().IntVar(&cfg.Increments, "increments", cfg.Increments, "Increments per agent")
	cmd.Flags().StringVar(&cfg.Key, "key", cfg.Key, "Key to increment")

	return cmd
}
