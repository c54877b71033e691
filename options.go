package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bhoriuchi/cf-graphql-server/logger"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/gqlerrors"
)

const (
	RequestTypeHTTP RequestType = "http"
	RequestTypeWS   RequestType = "ws"
)

type RequestType string

type RootValueFunc func(ctx context.Context, r *http.Request) map[string]interface{}

type FormatErrorFunc func(err error) gqlerrors.FormattedError

// ContextFunc returns the execution context of a request. For websocket
// connections it is called once per operation.
type ContextFunc func(t RequestType, r *http.Request) context.Context

// ExtensionsFunc returns extensions to merge into a result
type ExtensionsFunc func(ctx context.Context, params *graphql.Params, result *graphql.Result) map[string]interface{}

type ResultCallbackFunc func(ctx context.Context, params *graphql.Params, result *graphql.Result, responseBody []byte)

type Option func(opts *Options)

type Options struct {
	Pretty             bool
	DetailedErrors     bool
	Version            string
	RootValueFunc      RootValueFunc
	FormatErrorFunc    FormatErrorFunc
	ContextFunc        ContextFunc
	ExtensionsFunc     ExtensionsFunc
	ResultCallbackFunc ResultCallbackFunc
	LogFunc            logger.LogFunc
	WS                 *WSOptions
}

type WSOptions struct {
	ConnectionInitWaitTimeout time.Duration
}

func WithPretty() Option {
	return func(opts *Options) {
		opts.Pretty = true
	}
}

// WithDetailedErrors adds the original error text and type to every error
// under extensions.detail
func WithDetailedErrors() Option {
	return func(opts *Options) {
		opts.DetailedErrors = true
	}
}

// WithVersion adds the server version to the extensions of every result
func WithVersion() Option {
	return func(opts *Options) {
		opts.Version = Version
	}
}

func WithLogFunc(l logger.LogFunc) Option {
	return func(opts *Options) {
		opts.LogFunc = l
	}
}

func WithRootValueFunc(f RootValueFunc) Option {
	return func(opts *Options) {
		opts.RootValueFunc = f
	}
}

func WithFormatErrorFunc(f FormatErrorFunc) Option {
	return func(opts *Options) {
		opts.FormatErrorFunc = f
	}
}

func WithContextFunc(f ContextFunc) Option {
	return func(opts *Options) {
		opts.ContextFunc = f
	}
}

func WithExtensionsFunc(f ExtensionsFunc) Option {
	return func(opts *Options) {
		opts.ExtensionsFunc = f
	}
}

func WithResultCallbackFunc(f ResultCallbackFunc) Option {
	return func(opts *Options) {
		opts.ResultCallbackFunc = f
	}
}

// WithWebsocket enables graphql-transport-ws upgrades on the endpoint
func WithWebsocket(o *WSOptions) Option {
	return func(opts *Options) {
		if o == nil {
			o = &WSOptions{}
		}
		opts.WS = o
	}
}
