package compare

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

const reportRule = "============================================================"

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// FormatReport renders a result as a text report for the terminal.
func FormatReport(r Result) string {
	var out strings.Builder
	out.WriteString(reportRule + "\n")
	out.WriteString("BULLETIN COMPARISON\n")
	out.WriteString(reportRule + "\n")
	fmt.Fprintf(&out, "Previous: %s\n", orUnknown(r.PreviousPeriod))
	fmt.Fprintf(&out, "Current:  %s\n", orUnknown(r.CurrentPeriod))
	fmt.Fprintf(&out, "Compared: %s\n\n", r.ComparedAt.Format("2006-01-02T15:04:05"))

	if !r.HasChanges() {
		out.WriteString("No changes detected between the two bulletins.\n")
		out.WriteString(reportRule + "\n")
		return out.String()
	}

	out.WriteString("Changes detected:\n")
	fmt.Fprintf(&out, "  Categories added:    %d\n", len(r.Added))
	fmt.Fprintf(&out, "  Categories removed:  %d\n", len(r.Removed))
	fmt.Fprintf(&out, "  Categories changed:  %d\n", r.ChangedCategories)
	fmt.Fprintf(&out, "  Total field changes: %d\n", r.TotalFieldChanges())

	for _, label := range r.Added {
		fmt.Fprintf(&out, "\n  [ADDED]   %s", label)
	}
	for _, label := range r.Removed {
		fmt.Fprintf(&out, "\n  [REMOVED] %s", label)
	}
	if len(r.Added)+len(r.Removed) > 0 {
		out.WriteString("\n")
	}

	if len(r.Changes) > 0 {
		out.WriteString("\n")
		out.WriteString(ChangesTable(r.Changes))
		out.WriteString("\n")
	}
	out.WriteString(reportRule + "\n")
	return out.String()
}

// ChangesTable renders field changes as a table with a [DIRECTION] tag per
// row.
func ChangesTable(changes []FieldChange) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Category", "Country", "Previous", "Current", "Direction"})
	for _, c := range changes {
		t.AppendRow(table.Row{
			c.Category,
			c.Country,
			c.Previous.String(),
			c.Current.String(),
			fmt.Sprintf("[%s]", c.Direction),
		})
	}
	t.SetStyle(table.StyleRounded)
	return t.Render()
}
