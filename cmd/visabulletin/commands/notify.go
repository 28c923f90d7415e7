package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"visabulletin/internal/compare"
	"visabulletin/internal/store"

	"github.com/spf13/cobra"
)

var notifyFlags struct {
	all         bool
	updatedOnly bool
	printLocal  bool
}

func init() {
	notifyCmd.Flags().BoolVar(&notifyFlags.all, "all", false, "Notify every active subscriber about the latest official run.")
	notifyCmd.Flags().BoolVar(&notifyFlags.updatedOnly, "updated-only", false, "With --all, only notify subscribers whose categories changed.")
	notifyCmd.Flags().BoolVar(&notifyFlags.printLocal, "print-local", false, "Save emails as html previews instead of sending them.")
	rootCmd.AddCommand(notifyCmd)
}

var notifyCmd = &cobra.Command{
	Use:   "notify [<email> | --all [--updated-only]] [--print-local]",
	Short: "Sends a test email to one address, or notifies every subscriber.",
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.MaximumNArgs(1)(cmd, args); err != nil {
			return err
		}
		if len(args) == 0 && !notifyFlags.all {
			return errors.New("provide an email address for a test send, or use --all")
		}
		if len(args) == 1 && notifyFlags.all {
			return errors.New("provide either an email address or --all, not both")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		notifier, err := newNotifier(s, notifyFlags.printLocal)
		if err != nil {
			return err
		}

		if len(args) == 1 {
			err = notifier.SendTest(ctx, args[0])
			if err != nil {
				return err
			}
			slog.Info("test email sent", "to", args[0], "preview", notifyFlags.printLocal)
			return nil
		}

		current, err := s.LastSuccessfulRun(ctx, store.RUN_OFFICIAL, 0)
		if errors.Is(err, store.ErrNotFound) {
			return errors.New("no successful official runs found, cannot notify")
		}
		if err != nil {
			return err
		}
		if current.Snapshot == nil {
			return fmt.Errorf("run %d has no stored bulletin", current.ID)
		}

		result := compare.Empty(*current.Snapshot, app.time.Now())
		previous, err := s.LastSuccessfulRun(ctx, store.RUN_OFFICIAL, current.ID)
		switch {
		case err == nil && previous.Snapshot != nil:
			result, err = newEngine().Compare(previous.Snapshot, current.Snapshot)
			if err != nil {
				return err
			}
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return err
		}

		stats, err := notifier.NotifyAll(ctx, result, *current.Snapshot, notifyFlags.updatedOnly)
		if err != nil {
			return err
		}
		fmt.Printf("Notifications complete. Sent: %d, Skipped: %d, Failed: %d\n", stats.Sent, stats.Skipped, stats.Failed)
		if stats.Failed > 0 {
			return fmt.Errorf("%d notification(s) failed", stats.Failed)
		}
		return nil
	},
}
