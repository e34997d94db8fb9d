package emit

import (
	"fmt"
	"sort"
)

const (
	// TermColumn tags person rows with the parliament they were listed in.
	TermColumn = "Parliament"

	combinedTermColumn = "parliament"
	combinedName       = "all_parliaments"
)

// Partition splits a people table by term into one
// "parliament-<id>-people" table per term, without the term column, plus
// the combined "all_parliaments" table whose first column is the term. ok
// is false when the table has no term column.
func Partition(people Table) (perTerm []Table, combined Table, ok bool) {
	col := people.Index(TermColumn)
	if col < 0 {
		return nil, Table{}, false
	}

	others := make([]string, 0, len(people.Columns)-1)
	for i, c := range people.Columns {
		if i != col {
			others = append(others, c)
		}
	}

	groups := make(map[string][][]string)
	var terms []string
	combined = Table{Name: combinedName, Kind: people.Kind, Columns: append([]string{combinedTermColumn}, others...)}
	for _, row := range people.Rows {
		term := row[col]
		rest := without(row, col)
		if _, seen := groups[term]; !seen {
			terms = append(terms, term)
		}
		groups[term] = append(groups[term], rest)
		combined.Rows = append(combined.Rows, append([]string{term}, rest...))
	}

	sort.SliceStable(terms, func(i, j int) bool { return compareCells(terms[i], terms[j]) < 0 })
	sort.SliceStable(combined.Rows, func(i, j int) bool {
		return compareCells(combined.Rows[i][0], combined.Rows[j][0]) < 0
	})
	for _, term := range terms {
		perTerm = append(perTerm, Table{
			Name:    fmt.Sprintf("parliament-%s-people", term),
			Kind:    people.Kind,
			Columns: others,
			Rows:    groups[term],
		})
	}
	return perTerm, combined, true
}

func without(row []string, idx int) []string {
	out := make([]string, 0, len(row)-1)
	out = append(out, row[:idx]...)
	return append(out, row[idx+1:]...)
}
