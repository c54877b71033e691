package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bhoriuchi/cf-graphql-server/app"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Build the schema and start the HTTP server",
	Long: `Build the schema from the space content types and serve the explorer
page and the GraphQL endpoint. Startup is fail fast: missing credentials or
a failed content type fetch exit with status 1 before anything listens.
The server shuts down cleanly on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.Run(ctx, cfg, log)
}
