package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests share process-global environment variables, so they do not
// run in parallel.

// clearEnv blanks the fixed environment names. Empty values are ignored.
func clearEnv(t *testing.T) {
	t.Setenv(EnvCDAToken, "")
	t.Setenv(EnvCMAToken, "")
	t.Setenv(EnvPort, "")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0gtzstczow4j", cfg.SpaceID)
	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, ":4000", cfg.Addr())
	assert.Equal(t, "/election", cfg.Explorer.Path)
	assert.Equal(t, "contentful<->graphql | elections space", cfg.Explorer.Title)
	assert.Equal(t, "/graphql/about", cfg.GraphQL.Path)
	assert.Equal(t, "/graphql/about", cfg.Explorer.Endpoint)
	assert.True(t, cfg.GraphQL.Version)
	assert.False(t, cfg.GraphQL.Timeline)
	assert.False(t, cfg.GraphQL.DetailedErrors)
	assert.Equal(t, 10*time.Second, cfg.Contentful.RequestTimeout)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv(EnvCDAToken, "  first second ")
	t.Setenv(EnvCMAToken, "cma")
	t.Setenv(EnvPort, "8080")
	t.Setenv("CFGQL_GRAPHQL_TIMELINE", "true")
	t.Setenv("CFGQL_CONTENTFUL_LOCALE", "de-DE")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "first", cfg.Contentful.CDAToken)
	assert.Equal(t, "cma", cfg.Contentful.CMAToken)
	assert.Equal(t, 8080, cfg.Port)
	assert.True(t, cfg.GraphQL.Timeline)
	assert.Equal(t, "de-DE", cfg.Contentful.Locale)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
space_id: other
explorer:
  endpoint: /graphql/election
  kind: playground
metrics:
  addr: ":9100"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "other", cfg.SpaceID)
	assert.Equal(t, "/graphql/election", cfg.Explorer.Endpoint)
	assert.Equal(t, ExplorerPlayground, cfg.Explorer.Kind)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
}

func TestLoad_InvalidFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestValidate_MissingCredentials(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)

	err = cfg.Validate()
	require.ErrorIs(t, err, ErrMissingCredentials)
	assert.Contains(t, err.Error(), EnvCDAToken)
	assert.Contains(t, err.Error(), EnvCMAToken)

	cfg.Contentful.CDAToken = "cda"
	err = cfg.Validate()
	require.ErrorIs(t, err, ErrMissingCredentials)
	assert.NotContains(t, err.Error(), EnvCDAToken)
}

func TestValidate_Settings(t *testing.T) {
	clearEnv(t)
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		cfg.Contentful.CDAToken = "cda"
		cfg.Contentful.CMAToken = "cma"
		return cfg
	}

	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Explorer.Kind = "altair"
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Explorer.Path = cfg.GraphQL.Path
	assert.Error(t, cfg.Validate())
}
