// Package ide renders the interactive query explorer pages. Pages are
// rendered once and served as-is for every request.
package ide

import (
	"bytes"
	"html/template"
	"net/http"
	"strconv"
)

// Page is a precomputed HTTP response
type Page struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// ServeHTTP writes the page. The request is ignored.
func (p *Page) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	for k, v := range p.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(p.StatusCode)
	_, _ = w.Write(p.Body)
}

func render(tmpl *template.Template, data interface{}) (*Page, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "index", data); err != nil {
		return nil, err
	}

	return &Page{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"Content-Type":   "text/html; charset=utf-8",
			"Content-Length": strconv.Itoa(buf.Len()),
		},
		Body: buf.Bytes(),
	}, nil
}

// versionSuffix formats a CDN package version as @version
func versionSuffix(version string) string {
	if version == "" {
		return ""
	}
	if version[0] == '@' {
		return version
	}
	return "@" + version
}
