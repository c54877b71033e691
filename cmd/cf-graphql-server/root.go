package main

import (
	"fmt"
	"io"
	"os"

	"github.com/bhoriuchi/cf-graphql-server/config"
	"github.com/bhoriuchi/cf-graphql-server/logger"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string

	// populated by PersistentPreRunE
	cfg *config.Config
	log = newLogger(os.Stdout, "info")
)

var rootCmd = &cobra.Command{
	Use:   "cf-graphql-server",
	Short: "GraphQL server for a Contentful space",
	Long: `cf-graphql-server fetches the content types of a Contentful space,
generates a GraphQL schema from them and serves it together with an
interactive explorer page.

Credentials are read from TMHAS_CONTENTFUL_CDA_TOKEN and
THMAS_CONTENTFUL_CMA_TOKEN, the port from PORT (default 4000).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		// the flag takes precedence over the config file
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		log = newLogger(os.Stdout, cfg.LogLevel)

		return nil
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(queryCmd)
}

// Execute is the entry point called by main. Any error is logged to
// stdout and exits with status 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Errorf("Error: %s", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, level string) *logger.LogWrapper {
	return logger.NewLogWrapper(logger.NewWriterLogFunc(w, logger.ParseLevel(level)), nil)
}
