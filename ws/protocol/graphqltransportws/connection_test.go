package graphqltransportws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bhoriuchi/cf-graphql-server/ws/protocol"
	"github.com/gorilla/websocket"
	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctxKey struct{}

func testSchema(t *testing.T) *graphql.Schema {
	t.Helper()

	s, err := graphql.NewSchema(graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name: "Query",
			Fields: graphql.Fields{
				"hello": &graphql.Field{
					Type: graphql.String,
					Resolve: func(p graphql.ResolveParams) (interface{}, error) {
						name, _ := p.Context.Value(ctxKey{}).(string)
						return "hello " + name, nil
					},
				},
			},
		}),
	})
	require.NoError(t, err)
	return &s
}

func newTestServer(t *testing.T, mutate func(*Config)) *websocket.Conn {
	t.Helper()

	schema := testSchema(t)
	upgrader := websocket.Upgrader{Subprotocols: []string{Subprotocol}}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		cfg := Config{
			WS:      ws,
			Schema:  schema,
			Request: r,
			ContextFunc: func(c protocol.Context, msg SubscribeMessage) context.Context {
				return context.WithValue(context.Background(), ctxKey{}, "ws")
			},
		}
		if mutate != nil {
			mutate(&cfg)
		}
		_, _ = NewConnection(context.Background(), cfg)
	}))
	t.Cleanup(srv.Close)

	dialer := websocket.Dialer{Subprotocols: []string{Subprotocol}}
	conn, _, err := dialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg map[string]interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func receive(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	msg := map[string]interface{}{}
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func closeCode(t *testing.T, conn *websocket.Conn) int {
	t.Helper()
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}

		closeErr, ok := err.(*websocket.CloseError)
		require.True(t, ok, "expected close error, got %v", err)
		return closeErr.Code
	}
}

func TestQueryOperation(t *testing.T) {
	var results atomic.Int32
	conn := newTestServer(t, func(cfg *Config) {
		cfg.OnResult = func(ctx context.Context, params *graphql.Params, result *graphql.Result) {
			results.Add(1)
			result.Extensions = map[string]interface{}{"seen": true}
		}
	})

	send(t, conn, map[string]interface{}{"type": "connection_init"})
	assert.Equal(t, "connection_ack", receive(t, conn)["type"])

	send(t, conn, map[string]interface{}{
		"id":      "1",
		"type":    "subscribe",
		"payload": map[string]interface{}{"query": "{ hello }"},
	})

	next := receive(t, conn)
	assert.Equal(t, "next", next["type"])
	assert.Equal(t, "1", next["id"])
	assert.Equal(t, map[string]interface{}{
		"data":       map[string]interface{}{"hello": "hello ws"},
		"extensions": map[string]interface{}{"seen": true},
	}, next["payload"])

	complete := receive(t, conn)
	assert.Equal(t, "complete", complete["type"])
	assert.Equal(t, "1", complete["id"])
	assert.Equal(t, int32(1), results.Load())
}

func TestValidationErrors(t *testing.T) {
	conn := newTestServer(t, nil)

	send(t, conn, map[string]interface{}{"type": "connection_init"})
	receive(t, conn)

	send(t, conn, map[string]interface{}{
		"id":      "1",
		"type":    "subscribe",
		"payload": map[string]interface{}{"query": "{ nope }"},
	})

	msg := receive(t, conn)
	assert.Equal(t, "error", msg["type"])
	errs, ok := msg["payload"].([]interface{})
	require.True(t, ok)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].(map[string]interface{})["message"], "nope")
}

func TestPingPong(t *testing.T) {
	conn := newTestServer(t, nil)

	send(t, conn, map[string]interface{}{"type": "ping", "payload": map[string]interface{}{"n": 1}})
	pong := receive(t, conn)
	assert.Equal(t, "pong", pong["type"])
	assert.Equal(t, map[string]interface{}{"n": float64(1)}, pong["payload"])
}

func TestSubscribeBeforeAck(t *testing.T) {
	conn := newTestServer(t, nil)

	send(t, conn, map[string]interface{}{
		"id":      "1",
		"type":    "subscribe",
		"payload": map[string]interface{}{"query": "{ hello }"},
	})
	assert.Equal(t, int(Unauthorized), closeCode(t, conn))
}

func TestTooManyInitialisationRequests(t *testing.T) {
	conn := newTestServer(t, nil)

	send(t, conn, map[string]interface{}{"type": "connection_init"})
	receive(t, conn)
	send(t, conn, map[string]interface{}{"type": "connection_init"})
	assert.Equal(t, int(TooManyInitialisationRequests), closeCode(t, conn))
}

func TestConnectionInitTimeout(t *testing.T) {
	conn := newTestServer(t, func(cfg *Config) {
		cfg.ConnectionInitWaitTimeout = 50 * time.Millisecond
	})
	assert.Equal(t, int(ConnectionInitialisationTimeout), closeCode(t, conn))
}

func TestOnConnectRejects(t *testing.T) {
	conn := newTestServer(t, func(cfg *Config) {
		cfg.OnConnect = func(c protocol.Context) (interface{}, error) { return false, nil }
	})

	send(t, conn, map[string]interface{}{"type": "connection_init"})
	assert.Equal(t, int(Forbidden), closeCode(t, conn))
}

func TestUnknownMessageType(t *testing.T) {
	conn := newTestServer(t, nil)

	send(t, conn, map[string]interface{}{"type": "start"})
	assert.Equal(t, int(BadRequest), closeCode(t, conn))
}
