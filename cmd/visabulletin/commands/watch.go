package commands

import (
	"log/slog"
	"time"

	"visabulletin/internal/components/chrono"
	libtelemetry "visabulletin/lib/telemetry"

	"github.com/spf13/cobra"
)

var watchFlags struct {
	pipelineFlags
	schedule string
}

func init() {
	watchFlags.register(watchCmd)
	watchCmd.Flags().StringVar(&watchFlags.schedule, "schedule", "", "A 5 field cron spec in UTC, defaults to the configured schedule.")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch [--schedule <cron>] [--no-notify] [--updated-only] [--print-local]",
	Short: "Runs the pipeline on a schedule until interrupted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		schedule := watchFlags.schedule
		if schedule == "" {
			schedule = app.config.Schedule
		}
		err := chrono.ValidateSchedule(schedule)
		if err != nil {
			return err
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

		cron := chrono.NewStandardCron(app.tel, time.UTC)
		err = cron.Cron(schedule, func() {
			out, err := runPipeline(ctx, s, watchFlags.pipelineFlags)
			if err != nil {
				slog.Error("scheduled run failed", "err", err)
				return
			}
			slog.Info(
				"scheduled run complete",
				"id", out.RunID,
				"bulletin", out.Snapshot.BulletinDate,
				"changes", out.Result.TotalFieldChanges(),
				"sent", out.Stats.Sent,
			)
		})
		if err != nil {
			return err
		}

		slog.Info("watching for bulletin updates", "schedule", schedule)
		<-ctx.Done()
		slog.Info("stopping, waiting for a running job to finish")
		<-cron.Stop().Done()
		return nil
	},
}
