package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"visabulletin/internal/bulletin"
	"visabulletin/internal/compare"

	"github.com/spf13/cobra"
)

var compareFlags struct {
	runs    bool
	jsonOut bool
}

func init() {
	compareCmd.Flags().BoolVar(&compareFlags.runs, "runs", false, "Treat the arguments as run ids in the database instead of snapshot files.")
	compareCmd.Flags().BoolVar(&compareFlags.jsonOut, "json", false, "Print the comparison as json.")
	rootCmd.AddCommand(compareCmd)
}

func printResult(result compare.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	fmt.Print(compare.FormatReport(result))
	return nil
}

func loadPair(cmd *cobra.Command, args []string) (previous, current bulletin.Snapshot, err error) {
	if !compareFlags.runs {
		previous, err = readSnapshotFile(args[0])
		if err != nil {
			return
		}
		current, err = readSnapshotFile(args[1])
		return
	}

	s, db, err := openStore(cmd.Context())
	if err != nil {
		return
	}
	defer db.Close()

	snapshots := make([]bulletin.Snapshot, 2)
	for i, arg := range args {
		id, parseErr := strconv.ParseInt(arg, 10, 64)
		if parseErr != nil {
			err = fmt.Errorf("invalid run id %q", arg)
			return
		}
		run, getErr := s.GetRun(cmd.Context(), id)
		if getErr != nil {
			err = fmt.Errorf("run %d: %w", id, getErr)
			return
		}
		if run.Snapshot == nil {
			err = fmt.Errorf("run %d has no stored bulletin", id)
			return
		}
		snapshots[i] = *run.Snapshot
	}
	return snapshots[0], snapshots[1], nil
}

var compareCmd = &cobra.Command{
	Use:   "compare <previous> <current> [--runs] [--json]",
	Short: "Compares two bulletin snapshots, given as json files or run ids.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		previous, current, err := loadPair(cmd, args)
		if err != nil {
			return err
		}
		result, err := newEngine().Compare(&previous, &current)
		if err != nil {
			return err
		}
		return printResult(result, compareFlags.jsonOut)
	},
}
