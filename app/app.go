// Package app boots the server: it validates the configuration, builds the
// space schema from the CMS and serves the explorer page and the GraphQL
// endpoint until its context is cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/bhoriuchi/cf-graphql-server/config"
	"github.com/bhoriuchi/cf-graphql-server/logger"
	"github.com/bhoriuchi/cf-graphql-server/metrics"
	"github.com/gin-gonic/gin"
)

// ListenFunc opens the listener of a server
type ListenFunc func(network, address string) (net.Listener, error)

type Option func(opts *options)

type options struct {
	listen ListenFunc
}

// WithListenFunc replaces net.Listen
func WithListenFunc(f ListenFunc) Option {
	return func(opts *options) {
		opts.listen = f
	}
}

// Run boots the server and blocks until ctx is cancelled. Every step is
// fail fast: an invalid configuration returns before any network call and
// a failed schema build returns before anything listens.
func Run(ctx context.Context, cfg *config.Config, log *logger.LogWrapper, opts ...Option) error {
	o := &options{listen: net.Listen}
	for _, opt := range opts {
		opt(o)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	log.Infof("Space IDs, CDA token and CMA token provided")

	client, err := NewClient(cfg, log)
	if err != nil {
		return err
	}

	space, err := BuildSpace(ctx, client, log)
	if err != nil {
		return err
	}

	page, err := ExplorerPage(cfg)
	if err != nil {
		return fmt.Errorf("rendering explorer page: %w", err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Addr != "" {
		m = metrics.New()
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Handler:      Router(cfg, space, page, log, m),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ln, err := o.listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Addr(), err)
	}

	serverErr := make(chan error, 2)
	go serve(srv, ln, serverErr)

	log.Infof("Running a GraphQL server!")
	log.Infof("You can access the explorer at localhost:%d%s", cfg.Port, cfg.Explorer.Path)
	log.Infof("You can use the GraphQL endpoint at http://localhost:%d%s", cfg.Port, cfg.GraphQL.Path)

	var metricsSrv *http.Server
	if m != nil {
		mln, err := o.listen("tcp", cfg.Metrics.Addr)
		if err != nil {
			shutdown(srv, cfg, log)
			return fmt.Errorf("listening for metrics on %s: %w", cfg.Metrics.Addr, err)
		}

		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, m.Handler())
		metricsSrv = &http.Server{Handler: mux, ReadTimeout: cfg.Server.ReadTimeout}

		go serve(metricsSrv, mln, serverErr)
		log.WithField("addr", mln.Addr().String()).Infof("serving metrics at %s", cfg.Metrics.Path)
	}

	var runErr error
	select {
	case runErr = <-serverErr:
		log.WithError(runErr).Errorf("server failed")
	case <-ctx.Done():
		log.Infof("shutdown signal received")
	}

	if metricsSrv != nil {
		shutdown(metricsSrv, cfg, log)
	}
	if err := shutdown(srv, cfg, log); err != nil && runErr == nil {
		runErr = err
	}

	if runErr == nil {
		log.Infof("server stopped cleanly")
	}
	return runErr
}

func serve(srv *http.Server, ln net.Listener, errCh chan<- error) {
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- fmt.Errorf("server error: %w", err)
	}
}

func shutdown(srv *http.Server, cfg *config.Config, log *logger.LogWrapper) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Warnf("graceful shutdown failed")
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
