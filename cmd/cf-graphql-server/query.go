package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bhoriuchi/cf-graphql-server/gqlclient"
	"github.com/spf13/cobra"
)

var (
	queryURL       string
	queryVariables string
	queryOperation string
	queryTimeout   time.Duration
)

var queryCmd = &cobra.Command{
	Use:   "query <document>",
	Short: "Send a GraphQL query to a running server",
	Long: `Send a GraphQL query to a running server and print the JSON result.
The endpoint defaults to the configured port and GraphQL path on localhost.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryURL, "url", "", "GraphQL endpoint URL")
	queryCmd.Flags().StringVar(&queryVariables, "variables", "", "variables as a JSON object")
	queryCmd.Flags().StringVar(&queryOperation, "operation-name", "", "operation to execute")
	queryCmd.Flags().DurationVar(&queryTimeout, "timeout", 10*time.Second, "request timeout")
}

func runQuery(cmd *cobra.Command, args []string) error {
	url := queryURL
	if url == "" {
		url = fmt.Sprintf("http://localhost:%d%s", cfg.Port, cfg.GraphQL.Path)
	}

	request := gqlclient.Request{
		Query:         args[0],
		OperationName: queryOperation,
	}

	if queryVariables != "" {
		if err := json.Unmarshal([]byte(queryVariables), &request.Variables); err != nil {
			return fmt.Errorf("parsing variables: %w", err)
		}
	}

	client, err := gqlclient.NewClient(&gqlclient.Options{
		URL:            url,
		RequestTimeout: queryTimeout,
	})
	if err != nil {
		return err
	}

	rsp, err := client.Request(cmd.Context(), request)

	var statusErr *gqlclient.StatusError
	if err != nil && !errors.As(err, &statusErr) {
		return err
	}

	if werr := printResult(cmd.OutOrStdout(), rsp); werr != nil {
		return werr
	}
	return err
}

func printResult(w io.Writer, rsp *gqlclient.Response) error {
	if rsp == nil {
		return nil
	}

	out := map[string]interface{}{}
	if len(rsp.RawResult()) > 0 {
		if err := json.Unmarshal(rsp.RawResult(), &out); err != nil {
			_, werr := fmt.Fprintln(w, string(rsp.RawResult()))
			return werr
		}
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(b))
	return err
}
