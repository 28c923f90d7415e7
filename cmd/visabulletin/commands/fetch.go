package commands

import (
	"fmt"
	"log/slog"
	"os"

	"visabulletin/internal/bulletin"
	"visabulletin/internal/store"
	"visabulletin/internal/tracker"

	"github.com/spf13/cobra"
)

var fetchFlags struct {
	output    string
	timestamp bool
	display   bool
	debug     bool
	record    string
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchFlags.output, "output", "o", "visa_bulletin_data.json", "The file to write the extracted snapshot to.")
	fetchCmd.Flags().BoolVarP(&fetchFlags.timestamp, "timestamp", "t", false, "Write to data/visa_bulletin_<timestamp>.json instead of --output.")
	fetchCmd.Flags().BoolVar(&fetchFlags.display, "display", false, "Print the extracted categories.")
	fetchCmd.Flags().BoolVar(&fetchFlags.debug, "debug", false, "Save the fetched page to debug_page.html when nothing could be extracted.")
	fetchCmd.Flags().StringVar(&fetchFlags.record, "record", "", "Also record the run in the database under this run type (test, benchmark, manual).")
	rootCmd.AddCommand(fetchCmd)
}

func saveSnapshot(snapshot bulletin.Snapshot, output string, timestamp bool) error {
	path := output
	if timestamp {
		path = timestampedPath("data", app.time.Now())
	}
	err := writeJSONFile(path, snapshot)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	slog.Info("snapshot saved", "path", path, "categories", len(snapshot.Categories))
	return nil
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [-o <file.json>] [-t] [--display] [--debug] [--record <type>]",
	Short: "Fetches the current bulletin and extracts it.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		client, err := newFetchClient()
		if err != nil {
			return err
		}
		doc, err := client.Current(ctx)
		if err != nil {
			return err
		}

		var snapshot bulletin.Snapshot
		if fetchFlags.record != "" {
			runType, err := store.ParseRunType(fetchFlags.record)
			if err != nil {
				return err
			}
			s, db, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			t := tracker.New(staticFetcher{doc: doc}, newExtractor(), newEngine(), s, nil, app.tel, app.time)
			out, err := t.Process(ctx, tracker.Options{RunType: runType}, doc)
			if err != nil {
				saveDebugPage(doc)
				return err
			}
			slog.Info("run recorded", "id", out.RunID, "type", runType)
			snapshot = out.Snapshot
		} else {
			snapshot, err = newExtractor().Extract(doc)
			if err != nil {
				saveDebugPage(doc)
				return err
			}
			if snapshot.NotBulletin {
				saveDebugPage(doc)
				return tracker.ErrNotBulletin
			}
		}

		err = saveSnapshot(snapshot, fetchFlags.output, fetchFlags.timestamp)
		if err != nil {
			return err
		}
		if fetchFlags.display {
			printSnapshot(snapshot)
		}
		return nil
	},
}

func saveDebugPage(doc bulletin.RawDocument) {
	if !fetchFlags.debug {
		return
	}
	err := os.WriteFile("debug_page.html", []byte(doc.Content), 0644)
	if err != nil {
		slog.Warn("failed to save debug page", "err", err)
		return
	}
	slog.Info("page saved for inspection", "path", "debug_page.html", "source", doc.SourceURL)
}
