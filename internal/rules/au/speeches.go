package au

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
	"github.com/JakeFAU/parlcrawl/internal/extract"
)

// ExtractSpeeches follows the Hansard XML of every listed speech dated on or
// after the cutoff. This is the listing-level cutoff check; the session rule
// repeats it against the XML header.
func ExtractSpeeches(rc crawler.RunContext, doc crawler.Document) (crawler.Extraction, error) {
	var ext crawler.Extraction
	root, err := extract.ParseHTML(doc)
	if err != nil {
		return ext, err
	}
	base := extract.BaseURL(doc)

	root.Find("ul.search-filter-results li").Each(func(_ int, li *goquery.Selection) {
		date := ""
		for _, p := range extract.ZipPairs(extract.Texts(li.Find("dt")), extract.Texts(li.Find("dd"))) {
			if strings.EqualFold(p.Key, "DATE") {
				date = p.Value
			}
		}

		ctx := doc.Request.Context
		if date != "" {
			t, err := extract.ParseDayFirst(date)
			switch {
			case err != nil:
				ext.Warn(base, "unparseable speech date %q", date)
			case rc.BeforeCutoff(t):
				return
			default:
				ctx = ctx.WithDate(t.Format(extract.DateLayout))
			}
		}

		for _, href := range extract.Hrefs(base, li.Find(`a[title="XML format"]`)) {
			req := crawler.NewRequest(href, crawler.DocAUSession)
			req.Context = ctx
			ext.Follow(req)
		}
	})

	if next, ok := nextPage(base, root.Find(".results-pagination").First()); ok {
		req := crawler.NewRequest(next, crawler.DocAUSpeeches)
		req.Context = doc.Request.Context
		ext.Follow(req)
	}
	return ext, nil
}
