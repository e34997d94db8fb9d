package extract

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// DateLayout is the output format of every normalized date.
const DateLayout = "2006-01-02"

const afterMidnight = "(after midnight)"

var dayFirstLayouts = []string{
	DateLayout,
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2 January 2006",
	"02 January 2006",
	"2 Jan 2006",
	"Mon, 2 Jan 2006",
	"Monday, 2 January 2006",
	"2/1/2006",
	"02/01/2006",
	"2-1-2006",
	"2.1.2006",
}

// StripAfterMidnight removes the "(after midnight)" annotation that sitting
// records append to dates.
func StripAfterMidnight(s string) string {
	return Clean(strings.ReplaceAll(s, afterMidnight, ""))
}

// ParseDayFirst parses a date, reading ambiguous numeric forms as day first.
func ParseDayFirst(s string) (time.Time, error) {
	s = StripAfterMidnight(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	t, err := dateparse.ParseAny(s, dateparse.PreferMonthFirst(false))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// NormalizeDate parses s day first and formats it as YYYY-MM-DD.
func NormalizeDate(s string) (string, error) {
	t, err := ParseDayFirst(s)
	if err != nil {
		return "", err
	}
	return t.Format(DateLayout), nil
}
