package emit

import (
	"strconv"
	"strings"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
)

// Table is a rectangular view of records of one kind.
type Table struct {
	Name    string
	Kind    crawler.RecordKind
	Columns []string
	Rows    [][]string
}

var tableNames = map[crawler.RecordKind]string{
	crawler.KindPerson:       "people",
	crawler.KindTerm:         "terms",
	crawler.KindRole:         "roles",
	crawler.KindBill:         "bills",
	crawler.KindBillProgress: "bill_progress",
	crawler.KindSession:      "sessions",
	crawler.KindTalker:       "talkers",
	crawler.KindSpeech:       "speeches",
}

// TableName returns the output name for a record kind.
func TableName(kind crawler.RecordKind) string {
	if name, ok := tableNames[kind]; ok {
		return name
	}
	return string(kind)
}

// Len returns the number of rows.
func (t Table) Len() int {
	return len(t.Rows)
}

// Index returns the position of column, or -1.
func (t Table) Index(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Column returns every value of column, or nil when it is absent.
func (t Table) Column(column string) []string {
	idx := t.Index(column)
	if idx < 0 {
		return nil
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out
}

// Get returns the value of column in row i.
func (t Table) Get(i int, column string) string {
	idx := t.Index(column)
	if idx < 0 || i < 0 || i >= len(t.Rows) {
		return ""
	}
	return t.Rows[i][idx]
}

// dropColumns removes every column for which drop returns true.
func (t *Table) dropColumns(drop func(column string, idx int) bool) {
	keep := make([]int, 0, len(t.Columns))
	for i, c := range t.Columns {
		if !drop(c, i) {
			keep = append(keep, i)
		}
	}
	if len(keep) == len(t.Columns) {
		return
	}
	cols := make([]string, len(keep))
	for j, i := range keep {
		cols[j] = t.Columns[i]
	}
	for r, row := range t.Rows {
		out := make([]string, len(keep))
		for j, i := range keep {
			out[j] = row[i]
		}
		t.Rows[r] = out
	}
	t.Columns = cols
}

// addColumn appends a column filled by value(row index).
func (t *Table) addColumn(column string, value func(i int) string) {
	t.Columns = append(t.Columns, column)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], value(i))
	}
}

// compareCells orders numbers numerically and before text, and text
// lexically.
func compareCells(a, b string) int {
	if a == b {
		return 0
	}
	af, aerr := strconv.ParseFloat(a, 64)
	bf, berr := strconv.ParseFloat(b, 64)
	switch {
	case aerr == nil && berr == nil && af != bf:
		if af < bf {
			return -1
		}
		return 1
	case aerr == nil && berr != nil:
		return -1
	case aerr != nil && berr == nil:
		return 1
	}
	return strings.Compare(a, b)
}
