package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/bhoriuchi/cf-graphql-server/config"
	"github.com/bhoriuchi/cf-graphql-server/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T, mutate ...func(*config.Config)) *gin.Engine {
	t.Helper()

	cms := newCMS(t)
	cfg := newConfig(t, cms)
	for _, m := range mutate {
		m(cfg)
	}

	log := logger.NewNoopLogger()
	client, err := NewClient(cfg, log)
	require.NoError(t, err)

	space, err := BuildSpace(context.Background(), client, log)
	require.NoError(t, err)

	page, err := ExplorerPage(cfg)
	require.NoError(t, err)

	return Router(cfg, space, page, log, nil)
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouterHasTwoRoutes(t *testing.T) {
	r := newRouter(t)

	paths := map[string]bool{}
	for _, route := range r.Routes() {
		paths[route.Path] = true
	}

	got := []string{}
	for p := range paths {
		got = append(got, p)
	}
	sort.Strings(got)
	assert.Equal(t, []string{"/election", "/graphql/about"}, got)
}

func TestExplorerPageIsStatic(t *testing.T) {
	r := newRouter(t)

	first := do(r, httptest.NewRequest(http.MethodGet, "/election", nil))
	second := do(r, httptest.NewRequest(http.MethodGet, "/election?query=%7Bx%7D&title=other", nil))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "text/html; charset=utf-8", first.Header().Get("Content-Type"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.NotEmpty(t, first.Header().Get(requestIDHeader))
}

func TestExplorerPlayground(t *testing.T) {
	r := newRouter(t, func(cfg *config.Config) {
		cfg.Explorer.Kind = config.ExplorerPlayground
		cfg.Explorer.Endpoint = "/graphql/election"
	})

	w := do(r, httptest.NewRequest(http.MethodGet, "/election", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "GraphQLPlayground")
	assert.Contains(t, w.Body.String(), `endpoint: "/graphql/election"`)
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/graphql/about", nil)
	req.Header.Set("Origin", "http://elsewhere.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "content-type")

	w := do(r, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestExplorerFromAnyOrigin(t *testing.T) {
	r := newRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/election", nil)
	req.Header.Set("Origin", "http://elsewhere.example.com")

	w := do(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func query(t *testing.T, r http.Handler, q string) (int, map[string]interface{}) {
	t.Helper()

	body, err := json.Marshal(map[string]string{"query": q})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/graphql/about", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")

	w := do(r, req)
	result := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	return w.Code, result
}

func TestGraphQLVersionExtension(t *testing.T) {
	r := newRouter(t)

	code, result := query(t, r, `{ candidate(id: "c1") { name } }`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]interface{}{
		"candidate": map[string]interface{}{"name": "Ada"},
	}, result["data"])
	assert.Equal(t, map[string]interface{}{
		"cf-graphql-server": map[string]interface{}{"version": "0.1.0"},
	}, result["extensions"])
}

func TestGraphQLTimelineExtension(t *testing.T) {
	r := newRouter(t, func(cfg *config.Config) {
		cfg.GraphQL.Version = false
		cfg.GraphQL.Timeline = true
	})

	_, result := query(t, r, `{ candidates { name } }`)

	extensions, ok := result["extensions"].(map[string]interface{})
	require.True(t, ok)
	assert.NotContains(t, extensions, "cf-graphql-server")

	timeline, ok := extensions[TimelineExtension].([]interface{})
	require.True(t, ok)
	require.NotEmpty(t, timeline)

	event := timeline[0].(map[string]interface{})
	assert.Contains(t, event["url"], "/entries")
	assert.Equal(t, float64(http.StatusOK), event["status"])
}

func TestGraphQLRejectsMalformedQuery(t *testing.T) {
	r := newRouter(t)

	code, result := query(t, r, `{ candidates { `)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.NotEmpty(t, result["errors"])
}

func TestGraphQLLoaderPerRequest(t *testing.T) {
	cms := newCMS(t)
	cfg := newConfig(t, cms)
	log := logger.NewNoopLogger()

	client, err := NewClient(cfg, log)
	require.NoError(t, err)
	space, err := BuildSpace(context.Background(), client, log)
	require.NoError(t, err)
	page, err := ExplorerPage(cfg)
	require.NoError(t, err)
	r := Router(cfg, space, page, log, nil)

	before := cms.Count("/entries")
	for i := 0; i < 2; i++ {
		code, _ := query(t, r, `{ candidate(id: "c1") { name } }`)
		assert.Equal(t, http.StatusOK, code)
	}

	// entries are memoized per request only
	assert.Equal(t, before+2, cms.Count("/entries"))
}
