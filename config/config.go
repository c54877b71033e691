// Package config loads the server configuration from defaults, an optional
// YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultSpaceID is the elections space
	DefaultSpaceID = "0gtzstczow4j"

	EnvCDAToken = "TMHAS_CONTENTFUL_CDA_TOKEN"
	EnvCMAToken = "THMAS_CONTENTFUL_CMA_TOKEN"
	EnvPort     = "PORT"

	envPrefix = "CFGQL"
)

// ErrMissingCredentials is returned when the space id or a token is missing
var ErrMissingCredentials = errors.New("No Space IDs, CDA token or CMA token provided")

// Explorer kinds
const (
	ExplorerGraphiQL   = "graphiql"
	ExplorerPlayground = "playground"
)

// Config is the root configuration
type Config struct {
	SpaceID    string           `mapstructure:"space_id"`
	Port       int              `mapstructure:"port"`
	LogLevel   string           `mapstructure:"log_level"`
	Explorer   ExplorerConfig   `mapstructure:"explorer"`
	GraphQL    GraphQLConfig    `mapstructure:"graphql"`
	Contentful ContentfulConfig `mapstructure:"contentful"`
	Server     ServerConfig     `mapstructure:"server"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type ExplorerConfig struct {
	Path  string `mapstructure:"path"`
	Title string `mapstructure:"title"`
	// Endpoint is the URL the explorer sends queries to. Defaults to the
	// GraphQL path.
	Endpoint string `mapstructure:"endpoint"`
	Kind     string `mapstructure:"kind"`
}

type GraphQLConfig struct {
	Path           string `mapstructure:"path"`
	Version        bool   `mapstructure:"version"`
	Timeline       bool   `mapstructure:"timeline"`
	DetailedErrors bool   `mapstructure:"detailed_errors"`
	Pretty         bool   `mapstructure:"pretty"`
	Websocket      bool   `mapstructure:"websocket"`
}

type ContentfulConfig struct {
	CDAToken       string        `mapstructure:"cda_token"`
	CMAToken       string        `mapstructure:"cma_token"`
	Scheme         string        `mapstructure:"scheme"`
	DeliveryHost   string        `mapstructure:"delivery_host"`
	PreviewHost    string        `mapstructure:"preview_host"`
	ManagementHost string        `mapstructure:"management_host"`
	Insecure       bool          `mapstructure:"insecure"`
	Locale         string        `mapstructure:"locale"`
	Preview        bool          `mapstructure:"preview"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	MaxRetries     int           `mapstructure:"max_retries"`
	CacheSize      int           `mapstructure:"cache_size"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
}

type ServerConfig struct {
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type MetricsConfig struct {
	// Addr of the metrics listener, empty disables it
	Addr string `mapstructure:"addr"`
	Path string `mapstructure:"path"`
}

// Load reads config from the optional YAML file at path, then overlays
// environment variables. The tokens and port are read from their fixed
// names, every other key from CFGQL_<KEY> (e.g. CFGQL_GRAPHQL_TIMELINE).
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range map[string][]string{
		"contentful.cda_token": {EnvCDAToken},
		"contentful.cma_token": {EnvCMAToken},
		"port":                 {EnvPort, envPrefix + "_PORT"},
	} {
		if err := v.BindEnv(append([]string{key}, env...)...); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// the delivery token may hold several space separated tokens
	if tokens := strings.Fields(cfg.Contentful.CDAToken); len(tokens) > 0 {
		cfg.Contentful.CDAToken = tokens[0]
	}
	cfg.Contentful.CMAToken = strings.TrimSpace(cfg.Contentful.CMAToken)

	if cfg.Explorer.Endpoint == "" {
		cfg.Explorer.Endpoint = cfg.GraphQL.Path
	}

	return &cfg, nil
}

// Validate checks that the space can be reached. It makes no network call.
func (c *Config) Validate() error {
	missing := []string{}

	if strings.TrimSpace(c.SpaceID) == "" {
		missing = append(missing, "space_id")
	}
	if c.Contentful.CDAToken == "" {
		missing = append(missing, EnvCDAToken)
	}
	if c.Contentful.CMAToken == "" {
		missing = append(missing, EnvCMAToken)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w (missing %s), exiting...", ErrMissingCredentials, strings.Join(missing, ", "))
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}

	switch c.Explorer.Kind {
	case ExplorerGraphiQL, ExplorerPlayground:
	default:
		return fmt.Errorf("unknown explorer kind %q", c.Explorer.Kind)
	}

	if c.Explorer.Path == c.GraphQL.Path {
		return fmt.Errorf("explorer and graphql endpoint share the path %q", c.GraphQL.Path)
	}

	return nil
}

// Addr is the listen address of the main server
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("space_id", DefaultSpaceID)
	v.SetDefault("port", 4000)
	v.SetDefault("log_level", "info")

	v.SetDefault("explorer.path", "/election")
	v.SetDefault("explorer.title", "contentful<->graphql | elections space")
	v.SetDefault("explorer.endpoint", "")
	v.SetDefault("explorer.kind", ExplorerGraphiQL)

	v.SetDefault("graphql.path", "/graphql/about")
	v.SetDefault("graphql.version", true)
	v.SetDefault("graphql.timeline", false)
	v.SetDefault("graphql.detailed_errors", false)
	v.SetDefault("graphql.pretty", false)
	v.SetDefault("graphql.websocket", true)

	v.SetDefault("contentful.cda_token", "")
	v.SetDefault("contentful.cma_token", "")
	v.SetDefault("contentful.scheme", "https")
	v.SetDefault("contentful.delivery_host", "cdn.contentful.com")
	v.SetDefault("contentful.preview_host", "preview.contentful.com")
	v.SetDefault("contentful.management_host", "api.contentful.com")
	v.SetDefault("contentful.insecure", false)
	v.SetDefault("contentful.locale", "")
	v.SetDefault("contentful.preview", false)
	v.SetDefault("contentful.request_timeout", 10*time.Second)
	v.SetDefault("contentful.rate_limit", 50)
	v.SetDefault("contentful.max_retries", 3)
	v.SetDefault("contentful.cache_size", 0)
	v.SetDefault("contentful.cache_ttl", 30*time.Second)

	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.path", "/metrics")
}
