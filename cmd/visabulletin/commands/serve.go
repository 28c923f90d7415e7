package commands

import (
	"log/slog"
	"time"

	"visabulletin/internal/api"
	"visabulletin/lib/serviceutil"
	libtelemetry "visabulletin/lib/telemetry"

	"github.com/spf13/cobra"
)

var servePort int

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "The port to listen on, defaults to listen_port.")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve [-p <port>]",
	Short: "Serves the subscribe and unsubscribe endpoints.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		port := app.config.ListenPort
		if servePort > 0 {
			port = servePort
		}

		s, db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		err = libtelemetry.InstrumentPerfStats(ctx, 30*time.Second)
		if err != nil {
			slog.Warn("failed to instrument perf stats", "err", err)
		}
		return serviceutil.StartHttpServer(ctx, port, api.New(s, app.tel).Routes())
	},
}
