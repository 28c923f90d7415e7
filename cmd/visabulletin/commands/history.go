package commands

import (
	"errors"
	"fmt"
	"strconv"

	"visabulletin/internal/compare"
	"visabulletin/internal/store"

	"github.com/spf13/cobra"
)

var historyFlags struct {
	runType     string
	limit       int
	successOnly bool
}

func init() {
	historyCmd.Flags().StringVar(&historyFlags.runType, "type", "", "Only list runs of this type (official, test, benchmark, manual).")
	historyCmd.Flags().IntVarP(&historyFlags.limit, "limit", "n", 20, "The maximum number of runs to list.")
	historyCmd.Flags().BoolVar(&historyFlags.successOnly, "success-only", false, "Only list successful runs.")
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [--type <type>] [-n <limit>] [--success-only]",
	Short: "Lists recorded runs, newest first.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := store.RunFilter{
			Limit:       historyFlags.limit,
			SuccessOnly: historyFlags.successOnly,
		}
		if historyFlags.runType != "" {
			runType, err := store.ParseRunType(historyFlags.runType)
			if err != nil {
				return err
			}
			filter.Type = runType
		}

		s, db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := s.ListRuns(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}
		printRuns(runs)
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run id>",
	Short: "Prints the bulletin of one run and its stored comparison.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid run id %q", args[0])
		}

		s, db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		run, err := s.GetRun(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("run %d: %w", id, err)
		}
		printRuns([]store.Run{run})
		if run.Snapshot != nil {
			printSnapshot(*run.Snapshot)
		}

		comparison, err := s.ComparisonForRun(cmd.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			fmt.Println("No comparison stored for this run.")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Print(compare.FormatReport(comparison.Result))
		return nil
	},
}
