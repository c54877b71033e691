package gqlclient

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

const defaultRequestTimeout = 10 * time.Second

// BeforeFunc modifies the request before it is sent
type BeforeFunc func(req *http.Request) error

// Request is a GraphQL request
type Request struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName,omitempty"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
}

// converts the request to an io.Reader
func (r *Request) toReader() (io.Reader, error) {
	j, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(j), nil
}

// WithHeader returns a BeforeFunc setting a header on every request
func WithHeader(key, value string) BeforeFunc {
	return func(req *http.Request) error {
		req.Header.Set(key, value)
		return nil
	}
}
