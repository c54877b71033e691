// Package contentfultest provides an in-memory stand-in for the delivery
// and management APIs of a single space, for use in tests.
package contentfultest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Server serves content types, entries and assets from memory and records
// every request it receives
type Server struct {
	*httptest.Server

	mx           sync.Mutex
	requests     []*http.Request
	contentTypes []interface{}
	entries      map[string]map[string]interface{}
	assets       map[string]map[string]interface{}
	failures     []int
	gate         chan struct{}
}

// NewServer starts a new server. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		entries: map[string]map[string]interface{}{},
		assets:  map[string]map[string]interface{}{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// Host returns the host:port of the server
func (s *Server) Host() string {
	u, _ := url.Parse(s.URL)
	return u.Host
}

// AddContentType adds a content type. Any value that marshals into the
// content type JSON shape is accepted.
func (s *Server) AddContentType(ct interface{}) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.contentTypes = append(s.contentTypes, ct)
}

// AddEntry adds an entry of the given content type
func (s *Server) AddEntry(id, contentType string, fields map[string]interface{}) {
	s.mx.Lock()
	defer s.mx.Unlock()

	if fields == nil {
		fields = map[string]interface{}{}
	}

	s.entries[id] = map[string]interface{}{
		"sys": map[string]interface{}{
			"id":        id,
			"type":      "Entry",
			"createdAt": "2020-01-01T00:00:00.000Z",
			"updatedAt": "2020-01-02T00:00:00.000Z",
			"contentType": map[string]interface{}{
				"sys": map[string]interface{}{"type": "Link", "linkType": "ContentType", "id": contentType},
			},
		},
		"fields": fields,
	}
}

// AddAsset adds an asset
func (s *Server) AddAsset(id, title, fileURL string) {
	s.mx.Lock()
	defer s.mx.Unlock()

	s.assets[id] = map[string]interface{}{
		"sys": map[string]interface{}{"id": id, "type": "Asset"},
		"fields": map[string]interface{}{
			"title": title,
			"file":  map[string]interface{}{"url": fileURL},
		},
	}
}

// FailNext makes the next requests fail with the given status codes, in order
func (s *Server) FailNext(statuses ...int) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.failures = append(s.failures, statuses...)
}

// Count returns the number of requests whose path ends with suffix
func (s *Server) Count(suffix string) int {
	s.mx.Lock()
	defer s.mx.Unlock()

	n := 0
	for _, r := range s.requests {
		if strings.HasSuffix(r.URL.Path, suffix) {
			n++
		}
	}
	return n
}

// Requests returns the number of requests received
func (s *Server) Requests() int {
	s.mx.Lock()
	defer s.mx.Unlock()
	return len(s.requests)
}

// Last returns the most recent request
func (s *Server) Last() *http.Request {
	s.mx.Lock()
	defer s.mx.Unlock()

	if len(s.requests) == 0 {
		return nil
	}
	return s.requests[len(s.requests)-1]
}

// Hold makes requests wait, after they are recorded, until the returned
// release func is called
func (s *Server) Hold() (release func()) {
	gate := make(chan struct{})

	s.mx.Lock()
	s.gate = gate
	s.mx.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mx.Lock()
			if s.gate == gate {
				s.gate = nil
			}
			s.mx.Unlock()
			close(gate)
		})
	}
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mx.Lock()
	s.requests = append(s.requests, r)
	gate := s.gate
	s.mx.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	s.mx.Lock()
	defer s.mx.Unlock()

	w.Header().Set("Content-Type", "application/vnd.contentful.delivery.v1+json")

	if len(s.failures) > 0 {
		status := s.failures[0]
		s.failures = s.failures[1:]
		w.Header().Set("X-Contentful-Request-Id", "fake-request")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"sys":     map[string]interface{}{"type": "Error", "id": errorID(status)},
			"message": http.StatusText(status),
		})
		return
	}

	q := r.URL.Query()
	switch {
	case strings.HasSuffix(r.URL.Path, "/content_types"):
		writeCollection(w, len(s.contentTypes), s.contentTypes, q)
	case strings.HasSuffix(r.URL.Path, "/entries"):
		items := match(s.entries, q)
		writeCollection(w, len(items), items, q)
	case strings.HasSuffix(r.URL.Path, "/assets"):
		items := match(s.assets, q)
		writeCollection(w, len(items), items, q)
	default:
		http.NotFound(w, r)
	}
}

func errorID(status int) string {
	switch status {
	case http.StatusTooManyRequests:
		return "RateLimitExceeded"
	case http.StatusUnauthorized:
		return "AccessTokenInvalid"
	case http.StatusNotFound:
		return "NotFound"
	}
	return "ServerError"
}

// match supports sys.id[in], content_type and fields.<id>.sys.id filters
func match(store map[string]map[string]interface{}, q url.Values) []interface{} {
	ids := make([]string, 0, len(store))
	for id := range store {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if in := q.Get("sys.id[in]"); in != "" {
		ids = strings.Split(in, ",")
	}

	items := []interface{}{}
	for _, id := range ids {
		item, ok := store[id]
		if !ok {
			continue
		}

		if ct := q.Get("content_type"); ct != "" && contentTypeOf(item) != ct {
			continue
		}

		if !matchLinks(item, q) {
			continue
		}

		items = append(items, item)
	}
	return items
}

func contentTypeOf(item map[string]interface{}) string {
	sys, _ := item["sys"].(map[string]interface{})
	ct, _ := sys["contentType"].(map[string]interface{})
	ctSys, _ := ct["sys"].(map[string]interface{})
	id, _ := ctSys["id"].(string)
	return id
}

func matchLinks(item map[string]interface{}, q url.Values) bool {
	fields, _ := item["fields"].(map[string]interface{})

	for key := range q {
		if !strings.HasPrefix(key, "fields.") || !strings.HasSuffix(key, ".sys.id") {
			continue
		}

		fieldID := strings.TrimSuffix(strings.TrimPrefix(key, "fields."), ".sys.id")
		want := q.Get(key)
		if !linksTo(fields[fieldID], want) {
			return false
		}
	}
	return true
}

func linksTo(value interface{}, id string) bool {
	switch v := value.(type) {
	case map[string]interface{}:
		sys, _ := v["sys"].(map[string]interface{})
		return sys["id"] == id
	case []interface{}:
		for _, item := range v {
			if linksTo(item, id) {
				return true
			}
		}
	}
	return false
}

func writeCollection(w http.ResponseWriter, total int, items []interface{}, q url.Values) {
	if items == nil || q.Get("limit") == "0" {
		items = []interface{}{}
	}

	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"sys":   map[string]interface{}{"type": "Array"},
		"total": total,
		"items": items,
	})
}

// Link builds a link value as stored in entry fields
func Link(linkType, id string) map[string]interface{} {
	return map[string]interface{}{
		"sys": map[string]interface{}{"type": "Link", "linkType": linkType, "id": id},
	}
}
