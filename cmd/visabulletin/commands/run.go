package commands

import (
	"context"
	"fmt"
	"log/slog"

	"visabulletin/internal/compare"
	"visabulletin/internal/store"
	"visabulletin/internal/tracker"

	"github.com/spf13/cobra"
)

type pipelineFlags struct {
	noNotify    bool
	updatedOnly bool
	printLocal  bool
}

func (f *pipelineFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.noNotify, "no-notify", false, "Skip the notification step, fetch and compare only.")
	cmd.Flags().BoolVar(&f.updatedOnly, "updated-only", false, "Only notify subscribers whose categories changed.")
	cmd.Flags().BoolVar(&f.printLocal, "print-local", false, "Save emails as html previews instead of sending them.")
}

var runFlags struct {
	pipelineFlags
	output string
}

func init() {
	runFlags.register(runCmd)
	runCmd.Flags().StringVarP(&runFlags.output, "output", "o", "", "Also write the extracted snapshot to this json file.")
	rootCmd.AddCommand(runCmd)
}

// runPipeline runs the tracker once against the official run history.
func runPipeline(ctx context.Context, s store.Store, flags pipelineFlags) (tracker.Outcome, error) {
	var notifier tracker.Notifier
	if !flags.noNotify {
		n, err := newNotifier(s, flags.printLocal)
		if err != nil {
			return tracker.Outcome{}, err
		}
		notifier = n
	}
	t, err := newTracker(s, notifier)
	if err != nil {
		return tracker.Outcome{}, err
	}
	return t.Run(ctx, tracker.Options{
		RunType:     store.RUN_OFFICIAL,
		Notify:      !flags.noNotify,
		UpdatedOnly: flags.updatedOnly,
	})
}

func reportOutcome(out tracker.Outcome) {
	if out.Compared {
		fmt.Print(compare.FormatReport(out.Result))
	} else {
		fmt.Println("No previous run to compare against, skipping comparison.")
	}
	if out.Notified {
		fmt.Printf(
			"Notifications complete. Sent: %d, Skipped: %d, Failed: %d\n",
			out.Stats.Sent, out.Stats.Skipped, out.Stats.Failed,
		)
	}
}

var runCmd = &cobra.Command{
	Use:   "run [--no-notify] [--updated-only] [--print-local] [-o <file.json>]",
	Short: "Runs the full pipeline: fetch, store, compare against the previous run and notify.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		out, err := runPipeline(ctx, s, runFlags.pipelineFlags)
		if err != nil {
			return err
		}
		slog.Info("run stored", "id", out.RunID, "bulletin", out.Snapshot.BulletinDate)

		if runFlags.output != "" {
			err = saveSnapshot(out.Snapshot, runFlags.output, false)
			if err != nil {
				return err
			}
		}
		reportOutcome(out)
		if out.Stats.Failed > 0 {
			return fmt.Errorf("%d notification(s) failed", out.Stats.Failed)
		}
		return nil
	},
}
