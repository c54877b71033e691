package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	server "github.com/bhoriuchi/cf-graphql-server"
	"github.com/bhoriuchi/cf-graphql-server/config"
	"github.com/bhoriuchi/cf-graphql-server/contentful"
	"github.com/bhoriuchi/cf-graphql-server/ide"
	"github.com/bhoriuchi/cf-graphql-server/logger"
	"github.com/bhoriuchi/cf-graphql-server/metrics"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/graphql-go/graphql"
)

// TimelineExtension is the result extension holding the CMS calls made for
// a request
const TimelineExtension = "timeline"

// ExplorerPage renders the explorer page once. It is served unchanged for
// every request.
func ExplorerPage(cfg *config.Config) (*ide.Page, error) {
	switch cfg.Explorer.Kind {
	case config.ExplorerPlayground:
		return ide.NewPlayground(ide.PlaygroundOptions{
			Title:    cfg.Explorer.Title,
			Endpoint: cfg.Explorer.Endpoint,
		})
	case config.ExplorerGraphiQL, "":
		return ide.NewGraphiQL(ide.GraphiQLOptions{
			Title: cfg.Explorer.Title,
			URL:   cfg.Explorer.Endpoint,
		})
	}
	return nil, fmt.Errorf("unknown explorer kind %q", cfg.Explorer.Kind)
}

// GraphQLHandler serves the space schema. Every request, and every
// websocket operation, gets its own loader.
func GraphQLHandler(cfg *config.Config, space *Space, log *logger.LogWrapper, m *metrics.Metrics) *server.Server {
	opts := []server.Option{
		server.WithLogFunc(log.LogFunc),
		server.WithContextFunc(func(t server.RequestType, r *http.Request) context.Context {
			ctx := contentful.WithLoader(r.Context(), space.Client.NewLoader())
			if cfg.GraphQL.Timeline {
				ctx = contentful.WithTimeline(ctx, contentful.NewTimeline())
			}
			return ctx
		}),
		server.WithResultCallbackFunc(m.ObserveResult),
	}

	if cfg.GraphQL.Version {
		opts = append(opts, server.WithVersion())
	}
	if cfg.GraphQL.DetailedErrors {
		opts = append(opts, server.WithDetailedErrors())
	}
	if cfg.GraphQL.Pretty {
		opts = append(opts, server.WithPretty())
	}
	if cfg.GraphQL.Timeline {
		opts = append(opts, server.WithExtensionsFunc(timelineExtension))
	}
	if cfg.GraphQL.Websocket {
		opts = append(opts, server.WithWebsocket(&server.WSOptions{
			ConnectionInitWaitTimeout: 3 * time.Second,
		}))
	}

	return server.New(space.Schema, opts...)
}

func timelineExtension(ctx context.Context, params *graphql.Params, result *graphql.Result) map[string]interface{} {
	events := contentful.TimelineFromContext(ctx).Events()
	if events == nil {
		events = []contentful.TimelineEvent{}
	}
	return map[string]interface{}{TimelineExtension: events}
}

// Router builds the main engine. It has exactly two routes, the explorer
// page and the GraphQL endpoint, and allows every origin.
func Router(cfg *config.Config, space *Space, page *ide.Page, log *logger.LogWrapper, m *metrics.Metrics) *gin.Engine {
	engine := gin.New()

	engine.Use(Recovery(log))
	engine.Use(m.Middleware())
	engine.Use(RequestLogger(log))
	engine.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodHead, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization", requestIDHeader},
		ExposeHeaders:   []string{requestIDHeader},
		MaxAge:          12 * time.Hour,
	}))

	engine.GET(cfg.Explorer.Path, gin.WrapH(page))
	engine.Any(cfg.GraphQL.Path, gin.WrapH(GraphQLHandler(cfg, space, log, m)))

	return engine
}
