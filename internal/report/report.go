// Package report renders run results as terminal tables.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
	"github.com/JakeFAU/parlcrawl/internal/emit"
	"github.com/JakeFAU/parlcrawl/internal/rules/ca"
	"github.com/JakeFAU/parlcrawl/internal/scheduler"
)

// MaxWarnings caps the warnings listed by Summary; the count is always shown.
const MaxWarnings = 20

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	return t
}

// Summary writes the counts, failures and warnings of a run, followed by the
// artifacts it produced.
func Summary(w io.Writer, s scheduler.Summary, artifacts []emit.Artifact) {
	t := newTable(w, fmt.Sprintf("Run %s (%s)", s.RunID, s.Site))
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Duration", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond).String()},
		{"Dispatched", s.Dispatched},
		{"Fetched", s.Fetched},
		{"From store", s.FromStore},
		{"Duplicate profiles", s.DuplicateProfiles},
		{"Deduplicated", s.Deduplicated},
		{"Failures", len(s.Failures)},
		{"Warnings", len(s.Warnings)},
	})
	if s.Canceled {
		t.AppendRow(table.Row{"Canceled", fmt.Sprintf("%d requests left", s.Remaining)})
	}
	t.AppendSeparator()
	for _, kind := range s.Kinds() {
		t.AppendRow(table.Row{"Records: " + string(kind), s.Records[kind]})
	}
	t.Render()

	if len(s.Failures) > 0 {
		ft := newTable(w, "Failures")
		ft.AppendHeader(table.Row{"Type", "URL", "Error"})
		for _, f := range s.Failures {
			ft.AppendRow(table.Row{f.Type, f.URL, f.Error})
		}
		ft.Render()
	}

	if len(s.Warnings) > 0 {
		Warnings(w, s.Warnings)
	}

	if len(artifacts) > 0 {
		at := newTable(w, "Artifacts")
		at.AppendHeader(table.Row{"Table", "Format", "Rows", "URI"})
		for _, a := range artifacts {
			at.AppendRow(table.Row{a.Table, a.Format, a.Rows, a.URI})
		}
		at.Render()
	}
}

// Warnings lists up to MaxWarnings parse warnings.
func Warnings(w io.Writer, warnings []crawler.ParseWarning) {
	t := newTable(w, fmt.Sprintf("Warnings (%d)", len(warnings)))
	t.AppendHeader(table.Row{"URL", "Message"})
	for i, pw := range warnings {
		if i == MaxWarnings {
			t.AppendFooter(table.Row{"", fmt.Sprintf("%d more", len(warnings)-MaxWarnings)})
			break
		}
		t.AppendRow(table.Row{pw.URL, pw.Message})
	}
	t.Render()
}

// Terms lists parliament options in chronological order.
func Terms(w io.Writer, options []ca.Option) {
	t := newTable(w, "Parliaments")
	t.AppendHeader(table.Row{"Term", "Option", "Name", "Current"})
	for _, o := range options {
		current := ""
		if o.Current {
			current = "yes"
		}
		t.AppendRow(table.Row{o.Term(), o.OptionID, o.DisplayNameEn, current})
	}
	t.Render()
}

// Profiles lists stored profile keys.
func Profiles(w io.Writer, keys []crawler.ProfileKey) {
	t := newTable(w, fmt.Sprintf("Profiles (%d)", len(keys)))
	t.AppendHeader(table.Row{"Type", "Entity", "Name"})
	for _, k := range keys {
		t.AppendRow(table.Row{k.Type(), k.Entity(), k.DisplayName})
	}
	t.Render()
}
