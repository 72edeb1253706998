package cmd

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/conneroisu/girouette/internal/config"
	"github.com/conneroisu/girouette/internal/logging"
	"github.com/conneroisu/girouette/pkg/girouette"
	"github.com/conneroisu/girouette/pkg/router"
)

// stubController stands in for the controllers a manifest names when the
// CLI runs outside the host application. Every action answers with its own
// name.
type stubController struct {
	name string
}

func (c stubController) Dispatch(method string) (http.Handler, bool) {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"controller": c.name,
			"action":     method,
			"path":       r.URL.Path,
		})
	}), true
}

func stubFallback(name string) interface{} {
	return stubController{name: name}
}

// stubMiddleware registers pass-through middleware under names.
func stubMiddleware(names []string) *router.MiddlewareSet {
	set := router.NewMiddlewareSet()
	for _, name := range names {
		header := name
		set.Register(name, func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Add("X-Girouette-Middleware", header)
				next.ServeHTTP(w, r)
			})
		})
	}
	return set
}

func newLogger(cfg *config.Config) logging.Logger {
	lc := cfg.LoggerConfig()
	lc.Output = os.Stderr
	return logging.NewLogger(lc)
}

// newApp builds an App over r from the configuration, with stub controllers.
func newApp(cfg *config.Config, r router.Router, logger logging.Logger, opts ...girouette.Option) (*girouette.App, error) {
	base := []girouette.Option{
		girouette.FromConfig(cfg),
		girouette.WithLogger(logger),
		girouette.WithFallback(stubFallback),
	}
	return girouette.New(r, append(base, opts...)...)
}
