package gqlclient

import (
	"fmt"
	"net/http"

	"github.com/bhoriuchi/cf-graphql-server/utils"
	"github.com/graphql-go/graphql/gqlerrors"
)

// graphql json response
type graphQLResponse struct {
	Data       interface{}               `json:"data"`
	Errors     gqlerrors.FormattedErrors `json:"errors"`
	Extensions map[string]interface{}    `json:"extensions"`
}

// Response response object
type Response struct {
	httpRequest  *http.Request
	httpResponse *http.Response
	rawResult    []byte
	data         interface{}
	errors       gqlerrors.FormattedErrors
	extensions   map[string]interface{}
}

// HTTPRequest returns the http request
func (c *Response) HTTPRequest() *http.Request {
	return c.httpRequest
}

// HTTPResponse returns the http response
func (c *Response) HTTPResponse() *http.Response {
	return c.httpResponse
}

// RawResult returns the raw result body
func (c *Response) RawResult() []byte {
	return c.rawResult
}

// Data returns the data
func (c *Response) Data() interface{} {
	return c.data
}

// Extensions returns the response extensions
func (c *Response) Extensions() map[string]interface{} {
	return c.extensions
}

// Errors returns the errors
func (c *Response) Errors() gqlerrors.FormattedErrors {
	return c.errors
}

// FirstError returns the first error
func (c *Response) FirstError() *gqlerrors.FormattedError {
	if c.HasErrors() {
		first := c.errors[0]
		return &first
	}
	return nil
}

// HasErrors returns true if errors are present
func (c *Response) HasErrors() bool {
	return len(c.errors) > 0
}

// Decode decodes the result into the provided interface
func (c *Response) Decode(out interface{}) error {
	if c.data == nil {
		return fmt.Errorf("no data to decode")
	}
	return utils.ReMarshal(c.data, out)
}
