package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"visabulletin/internal/bulletin"

	"github.com/spf13/cobra"
)

// staticFetcher hands out a document that was already read.
type staticFetcher struct {
	doc bulletin.RawDocument
}

func (f staticFetcher) Current(context.Context) (bulletin.RawDocument, error) {
	return f.doc, nil
}

var parseFlags struct {
	output string
}

func init() {
	parseCmd.Flags().StringVarP(&parseFlags.output, "output", "o", "", "Write the snapshot as json to this file instead of printing a table.")
	rootCmd.AddCommand(parseCmd)
}

func readDocument(path string) (bulletin.RawDocument, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return bulletin.RawDocument{}, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return bulletin.RawDocument{
		Content:    string(content),
		SourceURL:  "file://" + filepath.ToSlash(abs),
		CapturedAt: app.time.Now(),
	}, nil
}

var parseCmd = &cobra.Command{
	Use:   "parse <page.html> [-o <file.json>]",
	Short: "Extracts a bulletin page saved on disk.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readDocument(args[0])
		if err != nil {
			return err
		}
		snapshot, err := newExtractor().Extract(doc)
		if err != nil {
			return err
		}
		if parseFlags.output == "" {
			printSnapshot(snapshot)
			return nil
		}
		err = writeJSONFile(parseFlags.output, snapshot)
		if err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
		return nil
	},
}
