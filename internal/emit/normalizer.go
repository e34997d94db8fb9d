package emit

import (
	"sort"
	"strings"
	"time"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
	"github.com/JakeFAU/parlcrawl/internal/extract"
)

const (
	lineBreakMarker   = "<br>"
	secondaryLocale   = "Fr"
	earliestDateField = "earliestDate"
)

// DefaultUnsupportedColumns are dropped unless Options says otherwise.
var DefaultUnsupportedColumns = []string{"Documents", "Senator"}

// Sort keys shared by every person-like table, then per kind.
var (
	personSortKeys = []string{"LastName", "UsedFirstName", "PersonId"}
	kindSortKeys   = map[crawler.RecordKind][]string{
		crawler.KindRole:         {"StartDate", "GraduationYear", "RoleId", "Start", "_RoleTitle"},
		crawler.KindTerm:         {"Parliament"},
		crawler.KindBill:         {"permalink"},
		crawler.KindBillProgress: {"permalink", "date"},
		crawler.KindSession:      {"date", "sourceUrl"},
		crawler.KindTalker:       {"date", "timestamp", "talkerId"},
		crawler.KindSpeech:       {"date", "time", "talkerId"},
	}
)

// Options tune the Normalizer.
type Options struct {
	// ValueDelimiter replaces inner line-break markers in multi-value cells.
	ValueDelimiter string
	// UnsupportedColumns are dropped from every table.
	UnsupportedColumns []string
	// DropEmptyColumns removes columns with no non-empty value.
	DropEmptyColumns bool
	// ColumnOrder lists leading columns per kind. Listed columns are always
	// present; the remaining ones follow in name order.
	ColumnOrder map[crawler.RecordKind][]string
}

// Normalizer turns grouped records into clean, ordered tables.
type Normalizer struct {
	opts        Options
	unsupported map[string]bool
}

// NewNormalizer applies defaults to opts.
func NewNormalizer(opts Options) *Normalizer {
	if opts.ValueDelimiter == "" {
		opts.ValueDelimiter = "|"
	}
	if opts.UnsupportedColumns == nil {
		opts.UnsupportedColumns = DefaultUnsupportedColumns
	}
	unsupported := make(map[string]bool, len(opts.UnsupportedColumns))
	for _, c := range opts.UnsupportedColumns {
		unsupported[c] = true
	}
	return &Normalizer{opts: opts, unsupported: unsupported}
}

// Normalize builds one table per kind, ordered by table name.
func (n *Normalizer) Normalize(groups map[crawler.RecordKind][]crawler.Record) []Table {
	tables := make(map[crawler.RecordKind]*Table, len(groups))
	for kind, records := range groups {
		if len(records) == 0 {
			continue
		}
		t := n.build(kind, records)
		tables[kind] = &t
	}

	if bills, ok := tables[crawler.KindBill]; ok {
		addEarliestDates(bills, tables[crawler.KindBillProgress])
	}

	out := make([]Table, 0, len(tables))
	for _, t := range tables {
		sortRows(t)
		dedupe(t)
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (n *Normalizer) build(kind crawler.RecordKind, records []crawler.Record) Table {
	t := Table{Name: TableName(kind), Kind: kind, Columns: n.columns(kind, records)}
	t.Rows = make([][]string, len(records))
	for i, r := range records {
		row := make([]string, len(t.Columns))
		for j, c := range t.Columns {
			row[j] = n.cell(c, r.Fields[c])
		}
		t.Rows[i] = row
	}

	t.dropColumns(func(c string, idx int) bool {
		switch {
		case strings.HasSuffix(c, secondaryLocale), n.unsupported[c]:
			return true
		case n.opts.DropEmptyColumns:
			return emptyColumn(t.Rows, idx)
		}
		return false
	})
	return t
}

// columns returns the configured leading columns followed by every other
// field name, sorted.
func (n *Normalizer) columns(kind crawler.RecordKind, records []crawler.Record) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, c := range n.opts.ColumnOrder[kind] {
		if !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}
	var rest []string
	for _, r := range records {
		for c := range r.Fields {
			if !seen[c] {
				seen[c] = true
				rest = append(rest, c)
			}
		}
	}
	sort.Strings(rest)
	return append(cols, rest...)
}

func (n *Normalizer) cell(column, value string) string {
	value = TrimMarkers(value, n.opts.ValueDelimiter)
	if IsDateColumn(column) {
		return FormatDate(value)
	}
	return value
}

// TrimMarkers strips line-break markers from both ends of a multi-value
// cell and replaces the inner ones with delim.
func TrimMarkers(s, delim string) string {
	for strings.HasPrefix(s, lineBreakMarker) {
		s = s[len(lineBreakMarker):]
	}
	for strings.HasSuffix(s, lineBreakMarker) {
		s = s[:len(s)-len(lineBreakMarker)]
	}
	return strings.ReplaceAll(s, lineBreakMarker, delim)
}

// IsDateColumn reports whether column holds dates.
func IsDateColumn(column string) bool {
	switch {
	case column == "date", column == "Start", column == "End":
		return true
	case strings.HasPrefix(column, "DateOf"):
		// DateOfBirthIsApproximate and friends are flags.
		return !strings.Contains(column, "Is")
	}
	return strings.HasSuffix(column, "Date")
}

// FormatDate renders a date cell as YYYY-MM-DD, dropping any time part.
// Values that are not dates are returned unchanged.
func FormatDate(value string) string {
	if value == "" {
		return ""
	}
	if len(value) >= len(extract.DateLayout) {
		if _, err := time.Parse(extract.DateLayout, value[:len(extract.DateLayout)]); err == nil {
			return value[:len(extract.DateLayout)]
		}
	}
	if out, err := extract.NormalizeDate(value); err == nil {
		return out
	}
	return value
}

// addEarliestDates sets earliestDate on each bill to the first progress
// event recorded for its permalink.
func addEarliestDates(bills, progress *Table) {
	earliest := make(map[string]string)
	if progress != nil {
		links := progress.Column("permalink")
		dates := progress.Column("date")
		for i := range links {
			if i >= len(dates) {
				break
			}
			if _, err := time.Parse(extract.DateLayout, dates[i]); err != nil {
				continue
			}
			if cur, ok := earliest[links[i]]; !ok || dates[i] < cur {
				earliest[links[i]] = dates[i]
			}
		}
	}
	links := bills.Column("permalink")
	if idx := bills.Index(earliestDateField); idx >= 0 {
		for i := range bills.Rows {
			bills.Rows[i][idx] = earliest[links[i]]
		}
		return
	}
	bills.addColumn(earliestDateField, func(i int) string {
		if links == nil {
			return ""
		}
		return earliest[links[i]]
	})
}

func sortRows(t *Table) {
	keys := append(append([]string(nil), personSortKeys...), kindSortKeys[t.Kind]...)
	idx := make([]int, 0, len(keys))
	for _, k := range keys {
		if i := t.Index(k); i >= 0 {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(t.Rows, func(a, b int) bool {
		ra, rb := t.Rows[a], t.Rows[b]
		for _, i := range idx {
			if c := compareCells(ra[i], rb[i]); c != 0 {
				return c < 0
			}
		}
		for i := range ra {
			if c := strings.Compare(ra[i], rb[i]); c != 0 {
				return c < 0
			}
		}
		return false
	})
}

// dedupe collapses identical adjacent rows; rows are sorted first.
func dedupe(t *Table) {
	if len(t.Rows) < 2 {
		return
	}
	out := t.Rows[:1]
	for _, row := range t.Rows[1:] {
		if !equalRows(out[len(out)-1], row) {
			out = append(out, row)
		}
	}
	t.Rows = out
}

func equalRows(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func emptyColumn(rows [][]string, idx int) bool {
	for _, row := range rows {
		if row[idx] != "" {
			return false
		}
	}
	return true
}
