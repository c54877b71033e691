package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/bhoriuchi/cf-graphql-server/ws/protocol/graphqltransportws"
	"github.com/gorilla/websocket"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/gqlerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctxKey struct{}

var errBoom = errors.New("boom")

type lookupError struct {
	ID string
}

func (e *lookupError) Error() string {
	return "entry " + e.ID + " not found"
}

func testSchema(t *testing.T) graphql.Schema {
	t.Helper()

	s, err := graphql.NewSchema(graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name: "Query",
			Fields: graphql.Fields{
				"hello": &graphql.Field{
					Type: graphql.String,
					Args: graphql.FieldConfigArgument{
						"name": &graphql.ArgumentConfig{Type: graphql.String},
					},
					Resolve: func(p graphql.ResolveParams) (interface{}, error) {
						if name, ok := p.Args["name"].(string); ok {
							return "hello " + name, nil
						}
						from, _ := p.Context.Value(ctxKey{}).(string)
						return "hello " + from, nil
					},
				},
				"boom": &graphql.Field{
					Type: graphql.String,
					Resolve: func(p graphql.ResolveParams) (interface{}, error) {
						return nil, errBoom
					},
				},
				"missing": &graphql.Field{
					Type: graphql.String,
					Resolve: func(p graphql.ResolveParams) (interface{}, error) {
						return nil, &lookupError{ID: "x"}
					},
				},
				"greeting": &graphql.Field{
					Type: graphql.String,
					Resolve: func(p graphql.ResolveParams) (interface{}, error) {
						root, _ := p.Info.RootValue.(map[string]interface{})
						return root["greeting"], nil
					},
				},
			},
		}),
		Mutation: graphql.NewObject(graphql.ObjectConfig{
			Name: "Mutation",
			Fields: graphql.Fields{
				"touch": &graphql.Field{
					Type:    graphql.Boolean,
					Resolve: func(p graphql.ResolveParams) (interface{}, error) { return true, nil },
				},
			},
		}),
	})
	require.NoError(t, err)
	return s
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()

	opts = append([]Option{
		WithContextFunc(func(rt RequestType, r *http.Request) context.Context {
			return context.WithValue(r.Context(), ctxKey{}, string(rt))
		}),
	}, opts...)

	return New(testSchema(t), opts...)
}

type response struct {
	Data       map[string]interface{}   `json:"data"`
	Errors     []map[string]interface{} `json:"errors"`
	Extensions map[string]interface{}   `json:"extensions"`
}

func do(t *testing.T, s *Server, r *http.Request) (*httptest.ResponseRecorder, response) {
	t.Helper()

	w := httptest.NewRecorder()
	s.ServeHTTP(w, r)

	var rsp response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rsp), w.Body.String())
	return w, rsp
}

func get(query string) *http.Request {
	return httptest.NewRequest(http.MethodGet, "/graphql/about?query="+url.QueryEscape(query), nil)
}

func post(contentType, body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/graphql/about", strings.NewReader(body))
	r.Header.Set("Content-Type", contentType)
	return r
}

func TestRequestEncodings(t *testing.T) {
	s := newTestServer(t)

	cases := map[string]*http.Request{
		"get":       get(`{ hello }`),
		"json":      post(ContentTypeJSON, `{"query":"{ hello }"}`),
		"json utf8": post("application/json; charset=utf-8", `{"query":"{ hello }"}`),
		"graphql":   post(ContentTypeGraphQL, `{ hello }`),
		"form":      post(ContentTypeFormURLEncoded, "query="+url.QueryEscape(`{ hello }`)),
	}

	for name, r := range cases {
		t.Run(name, func(t *testing.T) {
			w, rsp := do(t, s, r)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
			assert.Equal(t, map[string]interface{}{"hello": "hello http"}, rsp.Data)
		})
	}
}

func TestVariables(t *testing.T) {
	s := newTestServer(t)
	query := `query Q($name: String) { hello(name: $name) }`

	body, _ := json.Marshal(map[string]interface{}{
		"query":         query,
		"variables":     map[string]interface{}{"name": "object"},
		"operationName": "Q",
	})
	_, rsp := do(t, s, post(ContentTypeJSON, string(body)))
	assert.Equal(t, "hello object", rsp.Data["hello"])

	body, _ = json.Marshal(map[string]interface{}{
		"query":     query,
		"variables": `{"name":"string"}`,
	})
	_, rsp = do(t, s, post(ContentTypeJSON, string(body)))
	assert.Equal(t, "hello string", rsp.Data["hello"])

	r := httptest.NewRequest(http.MethodGet, "/graphql/about?query="+url.QueryEscape(query)+"&variables="+url.QueryEscape(`{"name":"url"}`), nil)
	_, rsp = do(t, s, r)
	assert.Equal(t, "hello url", rsp.Data["hello"])
}

func TestStatusCodes(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		name    string
		request *http.Request
		status  int
		message string
	}{
		{"method", httptest.NewRequest(http.MethodPut, "/graphql/about", nil), http.StatusMethodNotAllowed, "GraphQL only supports GET and POST requests."},
		{"missing query", get(""), http.StatusBadRequest, "Must provide query string."},
		{"empty body", post(ContentTypeJSON, ""), http.StatusBadRequest, "Must provide query string."},
		{"invalid json", post(ContentTypeJSON, "{"), http.StatusBadRequest, "POST body sent invalid JSON."},
		{"invalid variables", post(ContentTypeJSON, `{"query":"{ hello }","variables":"{"}`), http.StatusBadRequest, "Variables are invalid JSON."},
		{"syntax", get(`{ hello `), http.StatusBadRequest, "Syntax Error"},
		{"validation", get(`{ nope }`), http.StatusBadRequest, `Cannot query field "nope" on type "Query".`},
		{"mutation over get", get(`mutation { touch }`), http.StatusMethodNotAllowed, "Can only perform a mutation operation from a POST request."},
		{"ambiguous operation", get(`query A { hello } query B { hello }`), http.StatusInternalServerError, "operation name"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, rsp := do(t, s, tc.request)
			assert.Equal(t, tc.status, w.Code)
			require.NotEmpty(t, rsp.Errors)
			assert.Contains(t, rsp.Errors[0]["message"], tc.message)
			assert.Nil(t, rsp.Data)
		})
	}

	w, _ := do(t, s, httptest.NewRequest(http.MethodDelete, "/graphql/about", nil))
	assert.Equal(t, "GET, POST", w.Header().Get("Allow"))
}

func TestMutationOverPost(t *testing.T) {
	s := newTestServer(t)

	w, rsp := do(t, s, post(ContentTypeGraphQL, `mutation { touch }`))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, rsp.Data["touch"])
}

func TestPartialErrors(t *testing.T) {
	s := newTestServer(t)

	w, rsp := do(t, s, get(`{ hello boom }`))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello http", rsp.Data["hello"])
	require.Len(t, rsp.Errors, 1)
	assert.Equal(t, "boom", rsp.Errors[0]["message"])
	assert.Nil(t, rsp.Errors[0]["extensions"])
}

func TestDetailedErrors(t *testing.T) {
	s := newTestServer(t, WithDetailedErrors())

	_, rsp := do(t, s, get(`{ boom }`))
	require.Len(t, rsp.Errors, 1)
	assert.Equal(t, map[string]interface{}{
		"detail": map[string]interface{}{
			"message": "boom",
			"type":    "*errors.errorString",
		},
	}, rsp.Errors[0]["extensions"])
}

func TestDetailedErrorsKeepResolverErrorType(t *testing.T) {
	s := newTestServer(t, WithDetailedErrors())

	_, rsp := do(t, s, get(`{ missing }`))
	require.Len(t, rsp.Errors, 1)
	assert.Equal(t, "entry x not found", rsp.Errors[0]["message"])
	assert.Equal(t, map[string]interface{}{
		"message": "entry x not found",
		"type":    "*server.lookupError",
	}, rsp.Errors[0]["extensions"].(map[string]interface{})["detail"])
}

func TestFormatErrorFunc(t *testing.T) {
	var received error
	s := newTestServer(t, WithFormatErrorFunc(func(err error) gqlerrors.FormattedError {
		received = err
		return gqlerrors.FormattedError{Message: "masked"}
	}))

	w, rsp := do(t, s, get(`{ hello missing }`))
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, rsp.Errors, 1)
	assert.Equal(t, "masked", rsp.Errors[0]["message"])

	var lookupErr *lookupError
	require.True(t, errors.As(received, &lookupErr))
	assert.Equal(t, "x", lookupErr.ID)
}

func TestRootValueFunc(t *testing.T) {
	s := newTestServer(t, WithRootValueFunc(func(ctx context.Context, r *http.Request) map[string]interface{} {
		return map[string]interface{}{"greeting": "hi from " + r.URL.Path}
	}))

	_, rsp := do(t, s, get(`{ greeting }`))
	assert.Equal(t, "hi from /graphql/about", rsp.Data["greeting"])

	_, rsp = do(t, newTestServer(t), get(`{ greeting }`))
	assert.Nil(t, rsp.Data["greeting"])
}

func TestExtensions(t *testing.T) {
	s := newTestServer(t,
		WithVersion(),
		WithExtensionsFunc(func(ctx context.Context, params *graphql.Params, result *graphql.Result) map[string]interface{} {
			return map[string]interface{}{"timeline": []interface{}{}}
		}),
	)

	_, rsp := do(t, s, get(`{ hello }`))
	assert.Equal(t, map[string]interface{}{
		VersionExtension: map[string]interface{}{"version": Version},
		"timeline":       []interface{}{},
	}, rsp.Extensions)

	_, rsp = do(t, newTestServer(t), get(`{ hello }`))
	assert.Nil(t, rsp.Extensions)
}

func TestResultCallback(t *testing.T) {
	var body []byte
	s := newTestServer(t, WithPretty(), WithResultCallbackFunc(func(ctx context.Context, params *graphql.Params, result *graphql.Result, responseBody []byte) {
		body = responseBody
	}))

	w, _ := do(t, s, get(`{ hello }`))
	assert.Equal(t, w.Body.Bytes(), body)
	assert.Contains(t, string(body), "\n\t")
}

func TestWebsocket(t *testing.T) {
	s := newTestServer(t, WithVersion(), WithWebsocket(nil))

	srv := httptest.NewServer(s)
	defer srv.Close()

	dialer := websocket.Dialer{Subprotocols: []string{graphqltransportws.Subprotocol}}
	conn, _, err := dialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "connection_init"}))

	msg := map[string]interface{}{}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "connection_ack", msg["type"])

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"id":      "op",
		"type":    "subscribe",
		"payload": map[string]interface{}{"query": "{ hello }"},
	}))

	msg = map[string]interface{}{}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "next", msg["type"])
	assert.Equal(t, map[string]interface{}{
		"data":       map[string]interface{}{"hello": "hello ws"},
		"extensions": map[string]interface{}{VersionExtension: map[string]interface{}{"version": Version}},
	}, msg["payload"])

	msg = map[string]interface{}{}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "complete", msg["type"])
}

func TestWebsocketDisabled(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t))
	defer srv.Close()

	dialer := websocket.Dialer{Subprotocols: []string{graphqltransportws.Subprotocol}}
	_, rsp, err := dialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.Error(t, err)
	require.NotNil(t, rsp)
	assert.Equal(t, http.StatusBadRequest, rsp.StatusCode)
}
