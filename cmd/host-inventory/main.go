package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/breeze-rmm/host-inventory/internal/collectors"
	"github.com/breeze-rmm/host-inventory/internal/config"
	"github.com/breeze-rmm/host-inventory/internal/inventory"
	"github.com/breeze-rmm/host-inventory/internal/logging"
	"github.com/breeze-rmm/host-inventory/internal/platform"
	"github.com/breeze-rmm/host-inventory/internal/privilege"
	"github.com/breeze-rmm/host-inventory/internal/report"
	"github.com/breeze-rmm/host-inventory/internal/runner"
)

var (
	version = "0.1.0"
	cfgFile string
)

// newWorkflow assembles a run from the loaded configuration. Tests swap it to
// pin the platform and the command runner.
var newWorkflow = func(r runner.Runner, log *logging.Logger, opts collectors.Options, stdout io.Writer) *inventory.Workflow {
	return &inventory.Workflow{
		Runner:    r,
		Log:       log,
		Collector: opts,
		Stdout:    stdout,
	}
}

func newRootCmd() *cobra.Command {
	def := config.Default()

	rootCmd := &cobra.Command{
		Use:   "host-inventory",
		Short: "Cross-platform host inventory tool",
		Long: `host-inventory collects hostname, OS version, CPU, IP address, firewall and
disk encryption status plus the installed applications on macOS, Linux and
Windows, and writes them to two JSON files.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInventory(cmd)
		},
	}

	flags := rootCmd.Flags()
	flags.String("output", def.OutputPath, "JSON file to write inventory data to")
	flags.String("apps", def.AppsPath, "JSON file to write installed applications/packages to")

	pflags := rootCmd.PersistentFlags()
	pflags.StringVar(&cfgFile, "config", "", "config file (default is ./host-inventory.yaml)")
	pflags.String("log-file", def.LogFile, "log file to append to")
	pflags.String("log-level", def.LogLevel, "log level: debug, info, warn, error")
	pflags.String("log-format", def.LogFormat, "log format: text or json")
	pflags.Duration("timeout", def.CommandTimeout, "timeout for each external command")

	rootCmd.AddCommand(newVersionCmd(), newConfigCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "host-inventory v%s\n", version)
		},
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			data, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

// exitError carries a process exit status through cobra.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	err := newRootCmd().Execute()
	if err == nil {
		return
	}

	var exitErr *exitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(exitErr.code)
}

// loadConfig merges flags, environment and config file, printing validation
// warnings to stderr. Fatal validation problems are returned as an error.
func loadConfig(cmd *cobra.Command, stderr io.Writer) (*config.Config, error) {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	result := cfg.ValidateTiered()
	for _, w := range result.Warnings {
		fmt.Fprintf(stderr, "Config warning: %v\n", w)
	}
	if result.HasFatals() {
		for _, f := range result.Fatals {
			fmt.Fprintf(stderr, "Config error: %v\n", f)
		}
		return nil, fmt.Errorf("invalid configuration")
	}
	return cfg, nil
}

func runInventory(cmd *cobra.Command) error {
	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	cfg, err := loadConfig(cmd, stderr)
	if err != nil {
		return err
	}

	overrides, err := cfg.CommandOverrides()
	if err != nil {
		return err
	}

	logger, err := logging.Open(logging.Options{
		FilePath:   cfg.LogFile,
		Format:     cfg.LogFormat,
		Level:      cfg.LogLevel,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logger.Close()

	logger.Info("logging initialized", "version", version, logging.KeyPath, cfg.LogFile)

	ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals...)
	defer stop()

	r := runner.New(logger.L("runner"),
		runner.WithTimeout(cfg.CommandTimeout),
		runner.WithMaxOutput(cfg.MaxOutputBytes),
	)

	w := newWorkflow(r, logger, collectorOptions(overrides), stdout)
	if _, err := w.Run(ctx, cfg.OutputPath, cfg.AppsPath); err != nil {
		var writeErr *report.WriteError
		switch {
		case errors.Is(err, platform.ErrUnsupported):
			// "Unsupported OS." has already been printed.
		case errors.As(err, &writeErr):
			fmt.Fprintf(stderr, "Failed to save %s: %v\n", writeErr.Path, writeErr.Err)
		default:
			fmt.Fprintln(stderr, err)
		}
		return &exitError{code: 1}
	}
	return nil
}

func collectorOptions(overrides map[string]runner.Command) collectors.Options {
	return collectors.Options{
		Elevated:  privilege.IsElevated(),
		Overrides: overrides,
	}
}
