package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bhoriuchi/cf-graphql-server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestServeMissingCredentials(t *testing.T) {
	t.Setenv(config.EnvCDAToken, "")
	t.Setenv(config.EnvCMAToken, "")

	_, err := execute(t, "serve", "--log-level", "error")
	assert.ErrorIs(t, err, config.ErrMissingCredentials)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestQuery(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"candidate":{"name":"Ada"}}}`))
	}))
	defer srv.Close()

	out, err := execute(t, "query", "--url", srv.URL, "--variables", `{"id":"c1"}`,
		`query Q($id: ID!) { candidate(id: $id) { name } }`)
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{"id": "c1"}, received["variables"])

	printed := map[string]interface{}{}
	require.NoError(t, json.Unmarshal([]byte(out), &printed))
	assert.Equal(t, map[string]interface{}{
		"candidate": map[string]interface{}{"name": "Ada"},
	}, printed["data"])
}

func TestQueryInvalidVariables(t *testing.T) {
	_, err := execute(t, "query", "--url", "http://localhost:1", "--variables", "[", "{ x }")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing variables")
}
