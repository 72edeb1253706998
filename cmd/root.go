package cmd

import (
	"fmt"

	"github.com/conneroisu/girouette/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "girouette",
	Short: "Register controller routes with an HTTP router",
	Long: `Girouette discovers controller files, resolves the routes, groups and
resources they declare and registers them with an HTTP router.

Quick Start:
  girouette routes                List every route the controllers declare
  girouette validate              Check controller files for errors
  girouette serve                 Serve the routes with live reload
  girouette watch                 Print route changes as files change

Configuration is read from .girouette.yml, the file named by --config or
GIROUETTE_CONFIG_FILE, and GIROUETTE_<SECTION>_<OPTION> environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return initConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .girouette.yml, can also use GIROUETTE_CONFIG_FILE env var)")
	flags.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	flags.StringP("controllers", "c", "app", "directory scanned for controller files")
	flags.String("pattern", "", "regular expression selecting controller files by base name")

	bindFlags(flags, map[string]string{
		"log-level":   "log.level",
		"log-format":  "log.format",
		"controllers": "controllers.path",
		"pattern":     "controllers.pattern",
	})
}

func initConfig(cmd *cobra.Command) error {
	used, err := config.Init(viper.GetViper(), cfgFile)
	if err != nil {
		return err
	}
	if used != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "Using config file:", used)
	}
	return nil
}

// loadConfig reads the merged configuration for a command.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}
