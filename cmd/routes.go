package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/conneroisu/girouette/internal/config"
	gerrors "github.com/conneroisu/girouette/internal/errors"
	"github.com/conneroisu/girouette/pkg/router/memrouter"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var routesCmd = &cobra.Command{
	Use:     "routes",
	Aliases: []string{"list", "ls"},
	Short:   "List the routes the controllers declare",
	Long: `Load every controller file and list the routes that would be registered,
in registration order. Controllers are stubbed, so no host application is
needed; middleware names must be passed with --middleware to be accepted.

Examples:
  girouette routes                         # Table of routes
  girouette routes -o json                 # Output as JSON
  girouette routes -m auth,audit           # Accept the auth and audit middleware
  girouette routes -c internal/controllers # Load another directory`,
	RunE: runRoutes,
}

var (
	routesFlags      *OutputFlags
	routesMiddleware []string
)

func init() {
	rootCmd.AddCommand(routesCmd)

	routesFlags = AddOutputFlags(routesCmd)
	routesCmd.Flags().StringSliceVarP(&routesMiddleware, "middleware", "m", nil, "Middleware names to accept as pass-through")
}

func runRoutes(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	report, err := collectRoutes(cmd.Context(), cfg, routesMiddleware)
	if err != nil {
		return err
	}

	writeFailures(cmd.ErrOrStderr(), report.Failures)
	if routesFlags.Quiet {
		return nil
	}
	return writeRoutes(cmd.OutOrStdout(), report, routesFlags.Format)
}

// routeReport is the result of loading the controllers once.
type routeReport struct {
	Controllers int                   `json:"controllers" yaml:"controllers"`
	Routes      []memrouter.RouteInfo `json:"routes" yaml:"routes"`
	Failures    []failureInfo         `json:"failures,omitempty" yaml:"failures,omitempty"`
}

type failureInfo struct {
	Path  string `json:"path" yaml:"path"`
	Type  string `json:"type" yaml:"type"`
	Error string `json:"error" yaml:"error"`
}

func collectRoutes(ctx context.Context, cfg *config.Config, middleware []string) (*routeReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	r := memrouter.New(stubMiddleware(middleware))
	app, err := newApp(cfg, r, newLogger(cfg))
	if err != nil {
		return nil, err
	}
	defer app.Close()

	if err := app.Load(ctx); err != nil {
		return nil, err
	}

	return &routeReport{
		Controllers: len(app.Entries()),
		Routes:      r.Routes(),
		Failures:    failureInfos(app.Failures()),
	}, nil
}

func failureInfos(failures []gerrors.Failure) []failureInfo {
	out := make([]failureInfo, 0, len(failures))
	for _, f := range failures {
		out = append(out, failureInfo{
			Path:  f.Path,
			Type:  string(f.Type),
			Error: f.Err.Error(),
		})
	}
	return out
}

func writeRoutes(w io.Writer, report *routeReport, format string) error {
	switch strings.ToLower(format) {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		return encoder.Encode(report)
	case "table", "":
		return writeRouteTable(w, report.Routes)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func writeRouteTable(w io.Writer, routes []memrouter.RouteInfo) error {
	if len(routes) == 0 {
		_, err := fmt.Fprintln(w, "No routes found.")
		return err
	}

	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "METHODS\tPATTERN\tNAME\tHANDLER\tMIDDLEWARE\tDOMAIN")
	for _, rt := range routes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			strings.Join(rt.Methods, "|"),
			rt.Pattern,
			dash(rt.Name),
			rt.Handler,
			dash(strings.Join(rt.Middleware, ",")),
			dash(rt.Domain))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	// Colored after alignment; escape codes would skew the columns.
	header, rest, _ := strings.Cut(buf.String(), "\n")
	if _, err := fmt.Fprintln(w, color.New(color.Bold, color.FgCyan).Sprint(header)); err != nil {
		return err
	}
	_, err := io.WriteString(w, rest)
	return err
}

func writeFailures(w io.Writer, failures []failureInfo) {
	warn := color.New(color.FgYellow)
	for _, f := range failures {
		warn.Fprintf(w, "! %s [%s] %s\n", f.Path, f.Type, f.Error)
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
