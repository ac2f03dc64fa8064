package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/memstore/memory"
	"github.com/tailored-agentic-units/memstore/rpc"
)

func (f *rootFlags) client(ctx context.Context) (*rpc.Client, context.Context) {
	if f.owner != "" {
		ctx = memory.WithOwner(ctx, memory.Owner(f.owner))
	}
	return rpc.NewClient(http.DefaultClient, f.addr), ctx
}

// parseValue decodes arg as JSON, falling back to the raw string.
func parseValue(arg string) any {
	var v any
	if err := json.Unmarshal([]byte(arg), &v); err != nil {
		return arg
	}
	return v
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newStoreCmd(flags *rootFlags) *cobra.Command {
	var timestamp string

	cmd := &cobra.Command{
		Use:   "store <key> <value>",
		Short: "Store a value (parsed as JSON when possible)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ts time.Time
			if timestamp != "" {
				parsed, err := time.Parse(time.RFC3339Nano, timestamp)
				if err != nil {
					return fmt.Errorf("%w: %q", rpc.ErrInvalidTimestamp, timestamp)
				}
				ts = parsed
			}

			client, ctx := flags.client(cmd.Context())
			return client.Store(ctx, args[0], parseValue(args[1]), ts)
		},
	}

	cmd.Flags().StringVar(&timestamp, "timestamp", "", "Version timestamp (RFC3339)")
	return cmd
}

type readCall func(c *rpc.Client, ctx context.Context, key string, staleness memory.Staleness) (any, bool, error)

func newRecallCmd(flags *rootFlags) *cobra.Command {
	return newReadCmd(flags, "recall <key>", "Recall a key, holding it for --owner under strong consistency", (*rpc.Client).Recall)
}

func newRetrieveCmd(flags *rootFlags) *cobra.Command {
	return newReadCmd(flags, "retrieve <key>", "Read a key without holding its lock", (*rpc.Client).Retrieve)
}

func newReadCmd(flags *rootFlags, use, short string, call readCall) *cobra.Command {
	var staleness string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := memory.ParseStaleness(staleness)
			if err != nil {
				return err
			}

			client, ctx := flags.client(cmd.Context())
			v, found, err := call(client, ctx, args[0], policy)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("key %q has no value", args[0])
			}
			return printJSON(cmd, v)
		},
	}

	cmd.Flags().StringVar(&staleness, "staleness", "", "any or strict")
	return cmd
}

func newReleaseCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "release <key>",
		Short: "Release a key held by --owner without writing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, ctx := flags.client(cmd.Context())
			return client.Release(ctx, args[0])
		},
	}
}

func newHistoryCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "history <key>",
		Short: "Print every version of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, ctx := flags.client(cmd.Context())
			history, err := client.History(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, history)
		},
	}
}

func newKeysCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List known keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, ctx := flags.client(cmd.Context())
			keys, err := client.Keys(ctx)
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}
