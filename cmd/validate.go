package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var validateCmd = &cobra.Command{
	Use:     "validate",
	Aliases: []string{"check"},
	Short:   "Check controller files for errors",
	Long: `Load every controller file and report the ones that could not be
imported, declare malformed annotations or were rejected by the router.
Exits with a non-zero status when any controller fails.

Examples:
  girouette validate                # Human readable report
  girouette validate -o json        # Machine readable report
  girouette validate -m auth        # Accept the auth middleware`,
	RunE: runValidate,
}

var (
	validateFlags      *OutputFlags
	validateMiddleware []string
)

func init() {
	rootCmd.AddCommand(validateCmd)

	validateFlags = AddOutputFlags(validateCmd)
	validateCmd.Flags().StringSliceVarP(&validateMiddleware, "middleware", "m", nil, "Middleware names to accept as pass-through")
}

func runValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	report, err := collectRoutes(cmd.Context(), cfg, validateMiddleware)
	if err != nil {
		return err
	}

	if !validateFlags.Quiet {
		if err := writeValidation(cmd.OutOrStdout(), report, validateFlags.Format); err != nil {
			return err
		}
	}
	return validationError(report)
}

type validationReport struct {
	Valid       bool          `json:"valid" yaml:"valid"`
	Controllers int           `json:"controllers" yaml:"controllers"`
	Routes      int           `json:"routes" yaml:"routes"`
	Failures    []failureInfo `json:"failures" yaml:"failures"`
}

func writeValidation(w io.Writer, report *routeReport, format string) error {
	summary := validationReport{
		Valid:       len(report.Failures) == 0,
		Controllers: report.Controllers,
		Routes:      len(report.Routes),
		Failures:    report.Failures,
	}

	switch strings.ToLower(format) {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(summary)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		return encoder.Encode(summary)
	}

	bad := color.New(color.FgRed)
	good := color.New(color.FgGreen)
	for _, f := range report.Failures {
		bad.Fprintf(w, "✗ %s\n", f.Path)
		fmt.Fprintf(w, "    %s: %s\n", f.Type, f.Error)
	}
	if summary.Valid {
		good.Fprintf(w, "✓ %d controllers, %d routes\n", summary.Controllers, summary.Routes)
		return nil
	}
	bad.Fprintf(w, "%d controller file(s) failed\n", len(report.Failures))
	return nil
}

func validationError(report *routeReport) error {
	if len(report.Failures) == 0 {
		return nil
	}
	return fmt.Errorf("%d controller file(s) failed validation", len(report.Failures))
}
