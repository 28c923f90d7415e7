package bulletin

import (
	"fmt"
	"strconv"
	"strings"

	"visabulletin/internal/components/assert"
	"visabulletin/internal/components/telemetry"
	"visabulletin/lib/htmlutil"
	"visabulletin/lib/textutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_table_skip = "extract.table"
	report_table_row  = "extract.table-row"
)

const maxColspan = 32

// TableTier extracts records from <table> markup, one record per data row.
type TableTier struct {
	tel telemetry.API
}

func NewTableTier(tel telemetry.API) TableTier {
	assert.NotNil(tel)
	return TableTier{tel: tel}
}

func (TableTier) Name() TierName {
	return TIER_TABLE
}

func (t TableTier) Extract(doc *goquery.Document) ([]CategoryRecord, bool) {
	var records []CategoryRecord
	doc.Find("table").Each(func(i int, table *goquery.Selection) {
		records = append(records, t.extractTable(i, table)...)
	})
	return records, len(records) > 0
}

// tableRows returns the rows that belong to the table itself and not to a
// table nested inside one of its cells.
func tableRows(table *goquery.Selection) *goquery.Selection {
	return table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.Closest("table").IsSelection(table)
	})
}

// rowCells returns the text of every cell in a row, a cell spanning n columns
// is repeated n times so cells line up with the header.
func rowCells(row *goquery.Selection) []string {
	var cells []string
	row.ChildrenFiltered("td, th").Each(func(_ int, cell *goquery.Selection) {
		text := textutil.CollapseSpace(htmlutil.GetText(cell.Get(0)))
		span, err := strconv.Atoi(strings.TrimSpace(cell.AttrOr("colspan", "1")))
		if err != nil || span < 1 {
			span = 1
		}
		if span > maxColspan {
			span = maxColspan
		}
		for n := 0; n < span; n++ {
			cells = append(cells, text)
		}
	})
	return cells
}

type tableHeader struct {
	keys     []string
	labelIdx int
	text     string
}

// parseHeader normalizes the header row, ok is false when no column is a
// recognized date or country value, which means the table is not a bulletin
// chart. A lone "current" column does not count, navigation tables use it.
func parseHeader(cells []string) (tableHeader, bool) {
	header := tableHeader{
		keys:     make([]string, len(cells)),
		labelIdx: -1,
		text:     strings.Join(cells, " "),
	}

	values := 0
	for i, cell := range cells {
		key, ok := columnKey(cell)
		if ok && !IsLabelField(key) && key != FieldCurrent {
			values++
		}
		if key == "" {
			key = fmt.Sprintf("column_%d", i+1)
		}
		header.keys[i] = key
		if ok && header.labelIdx < 0 && IsLabelField(key) {
			header.labelIdx = i
		}
	}
	if header.labelIdx < 0 {
		header.labelIdx = 0
	}
	return header, values > 0
}

func (t TableTier) extractTable(tableIdx int, table *goquery.Selection) []CategoryRecord {
	rows := tableRows(table)
	if rows.Length() < 2 {
		t.tel.ReportDebug(report_table_skip, tableIdx, "fewer than 2 rows")
		return nil
	}

	header, ok := parseHeader(rowCells(rows.First()))
	if !ok {
		t.tel.ReportDebug(report_table_skip, tableIdx, "no recognized header")
		return nil
	}

	var records []CategoryRecord
	rows.Slice(1, rows.Length()).Each(func(rowIdx int, row *goquery.Selection) {
		cells := rowCells(row)
		if len(cells) == 0 {
			return
		}
		// rows that do not line up with the header cannot be zipped safely
		if len(cells) != len(header.keys) {
			t.tel.ReportWarning(
				report_table_row,
				fmt.Sprintf("table %d row %d", tableIdx, rowIdx+1),
				fmt.Sprintf("%d cells, header has %d", len(cells), len(header.keys)),
			)
			return
		}

		record, dropped, ok := header.record(cells)
		if !ok {
			return
		}
		if len(dropped) > 0 {
			t.tel.ReportWarning(
				report_table_row,
				fmt.Sprintf("table %d row %d", tableIdx, rowIdx+1),
				fmt.Sprintf("repeated columns dropped: %s", strings.Join(dropped, ", ")),
			)
		}
		records = append(records, record)
	})
	return records
}

// record zips a data row to the header, ok is false for rows without a label
// or without any value, and for header rows repeated inside the table. When
// the header repeats a key the first value wins, dropped lists the keys whose
// later values differed from it.
func (h tableHeader) record(cells []string) (record CategoryRecord, dropped []string, ok bool) {
	rawLabel := cells[h.labelIdx]
	if rawLabel == "" || IsLabelField(NormalizeHeader(rawLabel)) {
		return CategoryRecord{}, nil, false
	}

	group := GROUP_DIVERSITY
	if h.keys[h.labelIdx] != FieldRegion {
		group = ExtractVisaType(rawLabel)
		if group == GROUP_UNKNOWN {
			group = ExtractVisaType(h.text)
		}
	}

	dates := map[string]DateValue{}
	for i, cell := range cells {
		key := h.keys[i]
		if i == h.labelIdx || IsLabelField(key) || cell == "" {
			continue
		}
		value := ParseDateValue(cell)
		if kept, exists := dates[key]; exists {
			if !kept.Equal(value) {
				dropped = append(dropped, key)
			}
			continue
		}
		dates[key] = value
	}
	if len(dates) == 0 {
		return CategoryRecord{}, nil, false
	}

	return CategoryRecord{
		Category: CanonicalLabel(rawLabel, group),
		Group:    group,
		Dates:    dates,
	}, dropped, true
}
