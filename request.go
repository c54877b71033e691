package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
)

// maxBodySize bounds request bodies read into memory
const maxBodySize = 1 << 20

var (
	ErrInvalidJSONBody  = errors.New("POST body sent invalid JSON.")
	ErrInvalidVariables = errors.New("Variables are invalid JSON.")
)

// RequestOptions options
type RequestOptions struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables"`
	OperationName string                 `json:"operationName"`
}

// rawRequestOptions accepts variables as an object or a JSON string
type rawRequestOptions struct {
	Query         string          `json:"query"`
	Variables     json.RawMessage `json:"variables"`
	OperationName string          `json:"operationName"`
}

func decodeVariables(raw []byte) (map[string]interface{}, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	// variables sent as a JSON string
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, ErrInvalidVariables
		}
		if s == "" {
			return nil, nil
		}
		raw = []byte(s)
	}

	variables := map[string]interface{}{}
	if err := json.Unmarshal(raw, &variables); err != nil {
		return nil, ErrInvalidVariables
	}
	return variables, nil
}

func getFromForm(values url.Values) (*RequestOptions, error) {
	query := values.Get("query")
	if query == "" {
		return nil, nil
	}

	variables, err := decodeVariables([]byte(values.Get("variables")))
	if err != nil {
		return nil, err
	}

	return &RequestOptions{
		Query:         query,
		Variables:     variables,
		OperationName: values.Get("operationName"),
	}, nil
}

// NewRequestOptions parses a http.Request into GraphQL request options.
// Parameters in the URL take precedence over the body.
func NewRequestOptions(r *http.Request) (*RequestOptions, error) {
	if reqOpt, err := getFromForm(r.URL.Query()); reqOpt != nil || err != nil {
		return reqOpt, err
	}

	if r.Method != http.MethodPost || r.Body == nil {
		return &RequestOptions{}, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, err
	}

	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch contentType {
	case ContentTypeGraphQL:
		return &RequestOptions{Query: string(body)}, nil

	case ContentTypeFormURLEncoded:
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, err
		}

		reqOpt, err := getFromForm(values)
		if reqOpt == nil && err == nil {
			reqOpt = &RequestOptions{}
		}
		return reqOpt, err

	case ContentTypeJSON:
		fallthrough
	default:
		if len(bytes.TrimSpace(body)) == 0 {
			return &RequestOptions{}, nil
		}

		var raw rawRequestOptions
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, ErrInvalidJSONBody
		}

		variables, err := decodeVariables(raw.Variables)
		if err != nil {
			return nil, err
		}

		return &RequestOptions{
			Query:         raw.Query,
			Variables:     variables,
			OperationName: raw.OperationName,
		}, nil
	}
}
