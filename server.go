// Package server serves a GraphQL schema over HTTP, following the status
// code conventions of express-graphql, and over graphql-transport-ws
// websockets on the same endpoint.
package server

import (
	"net/http"
	"strings"

	"github.com/bhoriuchi/cf-graphql-server/logger"
	"github.com/bhoriuchi/cf-graphql-server/ws/protocol/graphqltransportws"
	"github.com/gorilla/websocket"
	"github.com/graphql-go/graphql"
)

// Constants
const (
	ContentTypeJSON           = "application/json"
	ContentTypeGraphQL        = "application/graphql"
	ContentTypeFormURLEncoded = "application/x-www-form-urlencoded"
)

type Server struct {
	schema   graphql.Schema
	log      *logger.LogWrapper
	options  *Options
	upgrader websocket.Upgrader
}

func New(schema graphql.Schema, opts ...Option) *Server {
	options := &Options{
		LogFunc: logger.NoopLogFunc,
	}

	for _, opt := range opts {
		opt(options)
	}

	return &Server{
		schema:  schema,
		log:     logger.NewLogWrapper(options.LogFunc, nil),
		options: options,
		upgrader: websocket.Upgrader{
			CheckOrigin:  func(r *http.Request) bool { return true },
			Subprotocols: []string{graphqltransportws.Subprotocol},
		},
	}
}

// isWSUpgrade identifies a websocket upgrade
func (s *Server) isWSUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// ServeHTTP provides an entrypoint into executing graphQL queries.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.options.WS != nil && s.isWSUpgrade(r) {
		s.WSHandler(w, r)
		return
	}

	ctx := r.Context()
	if s.options.ContextFunc != nil {
		ctx = s.options.ContextFunc(RequestTypeHTTP, r)
	}
	s.ContextHandler(ctx, w, r)
}
