package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"rarebird/lib/configutil"
	"rarebird/lib/credentials"
	"rarebird/lib/notify"
	"rarebird/lib/restyutil"
	"rarebird/lib/serviceutil"
	"rarebird/lib/telemetry"

	"github.com/spf13/cobra"
)

// EmailConfig enables the notable digest.
type EmailConfig struct {
	Smtp notify.SmtpConfig `json:"smtp"`
	To   []string          `json:"to"`
}

// Config is config.json, overridden field by field by config.local.json.
type Config struct {
	credentials.Config
	// Database is the history store dsn used when --db is not given.
	Database string       `json:"database"`
	Counties []string     `json:"counties"`
	Email    *EmailConfig `json:"email"`
}

var (
	verbose    bool
	configPath string
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging and dump HTTP exchanges to .dev/resty.")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json", "Path to the config file, a .local variant next to it overrides it.")
}

var rootCmd = &cobra.Command{
	Use:   "rarebird",
	Short: "rarebird fetches eBird observations and rare bird alerts and serves them to the bird map.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)
	},
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		serviceutil.Exit(1)
	}
}

// loadConfig reads the config file, a missing file is an empty config.
func loadConfig(path string) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("config file not found, checking environment variables", "path", path)
		return Config{}, nil
	}
	if err != nil {
		return Config{}, err
	}
	slog.Debug("loaded config", "path", path)
	return cfg, nil
}

func mustLoadConfig() Config {
	cfg, err := loadConfig(configPath)
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	return cfg
}

// httpOutput is where full HTTP exchanges are written in verbose mode.
func httpOutput() restyutil.InstrumentOutput {
	if !verbose {
		return nil
	}
	out, err := restyutil.NewFilesystemOutput(".dev/resty")
	if err != nil {
		slog.Warn("failed to create http dump directory", "err", err)
		return nil
	}
	return out
}
