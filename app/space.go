package app

import (
	"context"
	"fmt"
	"strings"

	server "github.com/bhoriuchi/cf-graphql-server"
	"github.com/bhoriuchi/cf-graphql-server/config"
	"github.com/bhoriuchi/cf-graphql-server/contentful"
	"github.com/bhoriuchi/cf-graphql-server/logger"
	"github.com/bhoriuchi/cf-graphql-server/schema"
	"github.com/bhoriuchi/cf-graphql-server/spacegraph"
	"github.com/graphql-go/graphql"
)

// Space is a client together with the schema derived from its content
// types. Both are read only once built.
type Space struct {
	Client *contentful.Client
	Graph  spacegraph.Graph
	Schema graphql.Schema
}

// NewClient creates the contentful client described by cfg
func NewClient(cfg *config.Config, log *logger.LogWrapper) (*contentful.Client, error) {
	cc := cfg.Contentful

	client, err := contentful.New(contentful.Config{
		SpaceID:        cfg.SpaceID,
		CDAToken:       cc.CDAToken,
		CMAToken:       cc.CMAToken,
		Scheme:         cc.Scheme,
		DeliveryHost:   cc.DeliveryHost,
		PreviewHost:    cc.PreviewHost,
		ManagementHost: cc.ManagementHost,
		Preview:        cc.Preview,
		Locale:         cc.Locale,
		RequestTimeout: cc.RequestTimeout,
		Insecure:       cc.Insecure,
		RateLimit:      cc.RateLimit,
		MaxRetries:     cc.MaxRetries,
		CacheSize:      cc.CacheSize,
		CacheTTL:       cc.CacheTTL,
		UserAgent:      server.VersionExtension + "/" + server.Version,
		Logger:         log,
	})
	if err != nil {
		return nil, fmt.Errorf("creating contentful client: %w", err)
	}
	return client, nil
}

// BuildSpace fetches the content types of the client's space, prepares the
// space graph and compiles it into a schema. Nothing is retried.
func BuildSpace(ctx context.Context, client *contentful.Client, log *logger.LogWrapper) (*Space, error) {
	log.Infof("Fetching space (%s) content types to create a space graph", client.SpaceID())

	contentTypes, err := client.ContentTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching content types: %w", err)
	}

	graph, err := spacegraph.Prepare(contentTypes)
	if err != nil {
		return nil, fmt.Errorf("preparing space graph: %w", err)
	}

	log.Infof("Contentful content types prepared: %s", strings.Join(graph.TypeNames(), ", "))

	s, err := schema.Create(graph)
	if err != nil {
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Space{
		Client: client,
		Graph:  graph,
		Schema: s,
	}, nil
}
