// Package main is the digestsearch CLI: the HTTP tool server and a batch
// ingester sharing one wiring of store, embedder and use cases.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/digestsearch/internal/config"
	"github.com/kailas-cloud/digestsearch/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := buildRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var env string

	root := &cobra.Command{
		Use:          "digestsearch",
		Short:        "Semantic search over chat messages with recency-aware ranking",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&env, "env", "e", config.GetEnv(),
		"Environment name; selects config/<env>.yaml")

	root.AddCommand(
		buildServeCmd(&env),
		buildIngestCmd(&env),
		buildVersionCmd(),
	)
	return root
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
