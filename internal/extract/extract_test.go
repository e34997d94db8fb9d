package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestZipPairsTruncatesToShorter(t *testing.T) {
	t.Parallel()

	pairs := ZipPairs([]string{"Party", "Electorate", "Orphan"}, []string{"Labor", "Sydney"})
	require.Equal(t, []Pair{{"Party", "Labor"}, {"Electorate", "Sydney"}}, pairs)
	require.Empty(t, ZipPairs(nil, []string{"x"}))
}

func TestLabelReducerSpanResetsKeyParagraphAppends(t *testing.T) {
	t.Parallel()

	r := NewLabelReducer("||")
	r.Content("stray")
	r.Label("Qualifications")
	r.Content("BA (Syd)")
	r.Content("LLB (Syd)")
	r.Label("Occupation")
	r.Content("Barrister")
	r.Label("Qualifications")
	r.Content("PhD")

	require.Equal(t, map[string]string{
		MissingLabel:     "stray",
		"Qualifications": "BA (Syd)||LLB (Syd)||PhD",
		"Occupation":     "Barrister",
	}, r.Fields())
	require.Equal(t, []string{MissingLabel, "Qualifications", "Occupation"}, r.Keys())
}

func TestNormalizeDate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"3 March 2020 (after midnight)", "2020-03-03"},
		{"3 March 2020", "2020-03-03"},
		{"03/04/2020", "2020-04-03"},
		{"2020-01-15", "2020-01-15"},
		{"1947-02-23T00:00:00", "1947-02-23"},
		{"12 Feb 2019", "2019-02-12"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := NormalizeDate(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}

	_, err := NormalizeDate("not a date")
	require.Error(t, err)
	_, err = NormalizeDate("   ")
	require.Error(t, err)
}

func TestTextCleansWhitespace(t *testing.T) {
	t.Parallel()

	root, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<div><p class="a">  Hon.&nbsp;Jane
		Smith </p><p class="a">MP</p><a href="/x">x</a><a>none</a></div>`))
	require.NoError(t, err)
	require.Equal(t, "Hon. Jane Smith", Text(root.Find("p.a").First()))
	require.Equal(t, []string{"Hon. Jane Smith", "MP"}, Texts(root.Find("p.a")))
	require.Equal(t, "", Text(root.Find("h1")))
	require.Equal(t, []string{"https://example.test/x"}, Hrefs("https://example.test/page", root.Find("a")))
}
