package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/breeze-rmm/host-inventory/internal/runner"
)

// EnvPrefix is prepended to every environment variable override,
// e.g. HOSTINV_LOG_FILE.
const EnvPrefix = "HOSTINV"

type Config struct {
	OutputPath     string            `mapstructure:"output" yaml:"output"`
	AppsPath       string            `mapstructure:"apps" yaml:"apps"`
	LogFile        string            `mapstructure:"log_file" yaml:"log_file"`
	LogLevel       string            `mapstructure:"log_level" yaml:"log_level"`
	LogFormat      string            `mapstructure:"log_format" yaml:"log_format"`
	LogMaxSizeMB   int               `mapstructure:"log_max_size_mb" yaml:"log_max_size_mb"`
	LogMaxBackups  int               `mapstructure:"log_max_backups" yaml:"log_max_backups"`
	CommandTimeout time.Duration     `mapstructure:"command_timeout" yaml:"command_timeout"`
	MaxOutputBytes int               `mapstructure:"max_output_bytes" yaml:"max_output_bytes"`
	Commands       map[string]string `mapstructure:"commands" yaml:"commands,omitempty"`
}

func Default() *Config {
	return &Config{
		OutputPath:     "host_inventory.json",
		AppsPath:       "installed_apps.json",
		LogFile:        "inventory.log",
		LogLevel:       "info",
		LogFormat:      "text",
		LogMaxSizeMB:   10,
		LogMaxBackups:  3,
		CommandTimeout: runner.DefaultTimeout,
		MaxOutputBytes: runner.DefaultMaxOutput,
	}
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"output":     "output",
	"apps":       "apps",
	"log-file":   "log_file",
	"log-level":  "log_level",
	"log-format": "log_format",
	"timeout":    "command_timeout",
}

// Load builds the effective configuration. Precedence, highest first:
// flags set on the command line, HOSTINV_* environment variables, the config
// file, then Default(). cfgFile may be empty, in which case
// host-inventory.yaml is looked up in the working directory and silently
// skipped when absent. flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("output", def.OutputPath)
	v.SetDefault("apps", def.AppsPath)
	v.SetDefault("log_file", def.LogFile)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_format", def.LogFormat)
	v.SetDefault("log_max_size_mb", def.LogMaxSizeMB)
	v.SetDefault("log_max_backups", def.LogMaxBackups)
	v.SetDefault("command_timeout", def.CommandTimeout)
	v.SetDefault("max_output_bytes", def.MaxOutputBytes)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("host-inventory")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

// CommandOverrides parses the commands section into argument vectors. Each
// entry is split the way a POSIX shell would split it, but nothing is
// expanded or executed by a shell.
func (c *Config) CommandOverrides() (map[string]runner.Command, error) {
	if len(c.Commands) == 0 {
		return nil, nil
	}

	overrides := make(map[string]runner.Command, len(c.Commands))
	for field, line := range c.Commands {
		argv, err := shlex.Split(line)
		if err != nil {
			return nil, fmt.Errorf("commands.%s: %w", field, err)
		}
		if len(argv) == 0 {
			return nil, fmt.Errorf("commands.%s: empty command", field)
		}
		overrides[strings.ToLower(field)] = runner.Cmd(argv[0], argv[1:]...)
	}
	return overrides, nil
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
