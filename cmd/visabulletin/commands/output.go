package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"visabulletin/internal/bulletin"
	"visabulletin/internal/store"

	"github.com/jedib0t/go-pretty/v6/table"
)

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

// timestampedPath is data/visa_bulletin_20060102_150405.json under dir.
func timestampedPath(dir string, at time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("visa_bulletin_%s.json", at.Format("20060102_150405")))
}

func writeJSONFile(path string, value any) error {
	content, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if dir != "." {
		err = os.MkdirAll(dir, 0755)
		if err != nil {
			return err
		}
	}
	return os.WriteFile(path, append(content, '\n'), 0644)
}

func readSnapshotFile(path string) (bulletin.Snapshot, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return bulletin.Snapshot{}, err
	}
	var snapshot bulletin.Snapshot
	err = json.Unmarshal(content, &snapshot)
	if err != nil {
		return bulletin.Snapshot{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return snapshot, nil
}

func formatDates(record bulletin.CategoryRecord) string {
	var parts []string
	for _, key := range record.Keys() {
		parts = append(parts, fmt.Sprintf("%s: %s", key, record.Dates[key]))
	}
	return strings.Join(parts, "\n")
}

func printSnapshot(snapshot bulletin.Snapshot) {
	if snapshot.NotBulletin {
		fmt.Println("The document does not contain a visa bulletin.")
		return
	}
	fmt.Printf("Bulletin: %s (%d categories, %s tier)\n", snapshot.BulletinDate, len(snapshot.Categories), snapshot.Tier)

	t := newTable()
	t.AppendHeader(table.Row{"Category", "Group", "Dates"})
	for _, c := range snapshot.Categories {
		t.AppendRow(table.Row{c.Category, c.Group, formatDates(c)})
		t.AppendSeparator()
	}
	t.Render()
}

func printRuns(runs []store.Run) {
	t := newTable()
	t.AppendHeader(table.Row{"ID", "Type", "Started", "Success", "Bulletin", "Categories", "Error"})
	for _, r := range runs {
		success := "yes"
		if !r.Success {
			success = "no"
		}
		t.AppendRow(table.Row{
			r.ID,
			r.Type,
			r.StartedAt.Format(time.DateTime),
			success,
			r.BulletinDate,
			r.CategoriesCount,
			r.ErrorMessage,
		})
	}
	t.Render()
}

func printSubscriptions(subs []store.Subscription) {
	t := newTable()
	t.AppendHeader(table.Row{"ID", "Email", "Categories", "Subscribed"})
	for _, s := range subs {
		t.AppendRow(table.Row{s.ID, s.Email, strings.Join(s.Categories, ", "), s.SubscribedAt.Format(time.DateTime)})
	}
	t.Render()
}
