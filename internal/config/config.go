// Package config provides configuration management for girouette using Viper
// for flexible loading from files, environment variables, and command-line
// flags.
//
// Settings are read from .girouette.yml (or the file named by --config or
// GIROUETTE_CONFIG_FILE), overridden by GIROUETTE_ prefixed environment
// variables such as GIROUETTE_CONTROLLERS_PATH or
// GIROUETTE_DEVELOPMENT_HOT_RELOAD. A .env file in the working directory is
// loaded into the environment first.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GIROUETTE"

// ConfigFileEnv names the environment variable pointing at a config file.
const ConfigFileEnv = "GIROUETTE_CONFIG_FILE"

type Config struct {
	Controllers ControllersConfig `mapstructure:"controllers" yaml:"controllers"`
	Development DevelopmentConfig `mapstructure:"development" yaml:"development"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
}

// ControllersConfig selects the controller files to load.
type ControllersConfig struct {
	Path       string   `mapstructure:"path" yaml:"path"`
	Suffixes   []string `mapstructure:"suffixes" yaml:"suffixes"`
	Extensions []string `mapstructure:"extensions" yaml:"extensions"`
	// Pattern replaces suffix matching with a regular expression on the
	// file's base name.
	Pattern string `mapstructure:"pattern" yaml:"pattern"`
}

type DevelopmentConfig struct {
	HotReload bool          `mapstructure:"hot_reload" yaml:"hot_reload"`
	Debounce  time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

type ServerConfig struct {
	Host    string `mapstructure:"host" yaml:"host"`
	Port    int    `mapstructure:"port" yaml:"port"`
	Router  string `mapstructure:"router" yaml:"router"`
	Metrics bool   `mapstructure:"metrics" yaml:"metrics"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("controllers.path", "app")
	v.SetDefault("controllers.suffixes", []string{"controller"})
	v.SetDefault("controllers.extensions", []string{"yaml", "yml", "json", "toml"})
	v.SetDefault("controllers.pattern", "")

	v.SetDefault("development.hot_reload", false)
	v.SetDefault("development.debounce", "100ms")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.router", RouterMux)
	v.SetDefault("server.metrics", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Init points v at the config file and the environment. A missing config
// file is not an error; the path of the file read is returned.
//
// Priority of the config file, highest first: cfgFile, GIROUETTE_CONFIG_FILE,
// .girouette.yml in the working directory.
func Init(v *viper.Viper, cfgFile string) (string, error) {
	// .env is optional.
	_ = godotenv.Load()

	SetDefaults(v)

	explicit := true
	switch {
	case cfgFile != "":
		v.SetConfigFile(cfgFile)
	case os.Getenv(ConfigFileEnv) != "":
		v.SetConfigFile(os.Getenv(ConfigFileEnv))
	default:
		explicit = false
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".girouette")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !explicit && asNotFound(err, &notFound) {
			return "", nil
		}
		return "", newConfigError("cannot read config file", err)
	}
	return v.ConfigFileUsed(), nil
}

// Load unmarshals and validates the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom unmarshals and validates v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, newConfigError("cannot decode configuration", err)
	}

	// Comma separated env values arrive as one element.
	config.Controllers.Suffixes = splitList(config.Controllers.Suffixes)
	config.Controllers.Extensions = splitList(config.Controllers.Extensions)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
			out = append(out, strings.TrimPrefix(part, "."))
		}
	}
	return out
}
