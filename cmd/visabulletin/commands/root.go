package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"visabulletin/internal/components/chrono"
	"visabulletin/internal/components/telemetry"
	libtelemetry "visabulletin/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	dbOverride string
)

// app holds what every command needs, it is filled in before any command
// runs.
var app struct {
	config Config
	tel    telemetry.API
	time   chrono.API
	otel   libtelemetry.Telemetry
}

var rootCmd = &cobra.Command{
	Use:   "visabulletin",
	Short: "visabulletin tracks the US visa bulletin and emails subscribers when dates move.",
	// usage is noise when a command fails at runtime
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(os.Stderr, verbose)
		if verbose {
			slog.Debug("verbose logging enabled")
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			return err
		}
		if dbOverride != "" {
			config.Database.File = dbOverride
		}
		app.config = config
		app.tel = telemetry.NewSlogAPI(nil)
		app.time = chrono.NewStandardImpl()

		otel, err := libtelemetry.SetupFromEnv(cmd.Context(), "visabulletin")
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("no telemetry.json5 found, skipping otel setup")
			return nil
		}
		if err != nil {
			slog.Warn("failed to setup telemetry", "err", err)
			return nil
		}
		app.otel = otel
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		err := app.otel.Shutdown(context.Background())
		if err != nil {
			slog.Warn("failed to shutdown telemetry", "err", err)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging.")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "visabulletin.json5", "The config file, <name>.local.<ext> is merged over it.")
	rootCmd.PersistentFlags().StringVar(&dbOverride, "db", "", "Database path or libsql:// url, overrides database.file.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
