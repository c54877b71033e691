package server

import (
	"context"
	"net/http"

	"github.com/bhoriuchi/cf-graphql-server/ws/protocol"
	"github.com/bhoriuchi/cf-graphql-server/ws/protocol/graphqltransportws"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

// WSHandler handles websocket connection upgrade
func (s *Server) WSHandler(w http.ResponseWriter, r *http.Request) {
	// Establish a WebSocket connection
	s.log.Debugf("upgrading connection to websocket")
	ws, err := s.upgrader.Upgrade(w, r, nil)

	// Bail out if the WebSocket connection could not be established
	if err != nil {
		s.log.WithError(err).Warnf("failed to establish websocket connection")
		return
	}

	s.log.Debugf("client requested %q subprotocol", ws.Subprotocol())

	// the request context is cancelled once the upgrade handler returns
	connCtx := context.WithoutCancel(r.Context())
	r = r.WithContext(connCtx)

	config := graphqltransportws.Config{
		WS:                        ws,
		Schema:                    &s.schema,
		Logger:                    s.log,
		Request:                   r,
		ConnectionInitWaitTimeout: s.options.WS.ConnectionInitWaitTimeout,
		ContextFunc: func(c protocol.Context, msg graphqltransportws.SubscribeMessage) context.Context {
			if s.options.ContextFunc != nil {
				return s.options.ContextFunc(RequestTypeWS, r)
			}
			return c.Context()
		},
		OnResult: func(ctx context.Context, params *graphql.Params, result *graphql.Result) {
			s.finalize(ctx, params, result)
			if s.options.ResultCallbackFunc != nil {
				s.options.ResultCallbackFunc(ctx, params, result, nil)
			}
		},
	}

	if s.options.RootValueFunc != nil {
		config.RootValueFunc = func(c protocol.Context, op *ast.OperationDefinition) map[string]interface{} {
			return s.options.RootValueFunc(c.Context(), r)
		}
	}

	if _, err := graphqltransportws.NewConnection(connCtx, config); err != nil {
		s.log.WithError(err).Warnf("failed to start %q connection", graphqltransportws.Subprotocol)
		_ = ws.Close()
	}
}
