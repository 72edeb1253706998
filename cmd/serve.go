package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/conneroisu/girouette/internal/config"
	"github.com/conneroisu/girouette/pkg/girouette"
	"github.com/conneroisu/girouette/pkg/metrics"
	"github.com/conneroisu/girouette/pkg/router"
	"github.com/conneroisu/girouette/pkg/router/chirouter"
	"github.com/conneroisu/girouette/pkg/router/muxrouter"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Serve the declared routes with live reload",
	Long: `Load the controllers and serve their routes with stub handlers that answer
with the controller and action they resolve to. Controller files are
reloaded as they change when hot reload is enabled.

Examples:
  girouette serve                        # Serve on localhost:8080
  girouette serve -p 3000 --router chi   # Serve with chi on port 3000
  girouette serve --hot-reload           # Reload controllers on change`,
	RunE: runServe,
}

var serveMiddleware []string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().String("router", config.RouterMux, "Router to register routes with (mux, chi)")
	serveCmd.Flags().Bool("hot-reload", false, "Reload controller files as they change")
	serveCmd.Flags().Bool("metrics", true, "Expose Prometheus metrics on /metrics")
	serveCmd.Flags().StringSliceVarP(&serveMiddleware, "middleware", "m", nil, "Middleware names to accept as pass-through")

	bindFlags(serveCmd.Flags(), map[string]string{
		"port":       "server.port",
		"host":       "server.host",
		"router":     "server.router",
		"hot-reload": "development.hot_reload",
		"metrics":    "server.metrics",
	})
}

// servedRouter is a Router that also serves its routes.
type servedRouter interface {
	router.Router
	http.Handler
}

func newServedRouter(kind string, set *router.MiddlewareSet) (servedRouter, error) {
	switch kind {
	case config.RouterMux, "":
		return muxrouter.New(set), nil
	case config.RouterChi:
		return chirouter.New(set), nil
	default:
		return nil, fmt.Errorf("unknown router %q", kind)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	r, err := newServedRouter(cfg.Server.Router, stubMiddleware(serveMiddleware))
	if err != nil {
		return err
	}

	var opts []girouette.Option
	var metricsHandler http.Handler
	if cfg.Server.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts = append(opts, girouette.WithMetrics(metrics.New(metrics.WithRegistry(reg))))
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	app, err := newApp(cfg, r, logger, opts...)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Load(ctx); err != nil {
		return err
	}
	writeFailures(cmd.ErrOrStderr(), failureInfos(app.Failures()))

	if cfg.Development.HotReload {
		if err := app.Watch(ctx); err != nil {
			return fmt.Errorf("failed to watch controllers: %w", err)
		}
	}

	srv := &http.Server{
		Addr:              cfg.Address(),
		Handler:           serveHandler(cmd.OutOrStdout(), r, metricsHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %d controllers at http://%s\n", len(app.Entries()), cfg.Address())
	if metricsHandler != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Metrics: http://%s/metrics\n", cfg.Address())
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// serveHandler mounts the routes, and metrics when given, behind request
// logging and panic recovery.
func serveHandler(out io.Writer, routes http.Handler, metricsHandler http.Handler) http.Handler {
	top := mux.NewRouter()
	if metricsHandler != nil {
		top.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	}
	top.PathPrefix("/").Handler(routes)

	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(
		handlers.CombinedLoggingHandler(out, top),
	)
}
