package au

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
	"github.com/JakeFAU/parlcrawl/internal/extract"
)

const (
	progressHeadingClass = "bills-progress-heading"
	progressItemClass    = "bills-progress-item"
)

// ExtractBills follows every bill on a search results page and the "Next
// Page" navigation link when there is one.
func ExtractBills(_ crawler.RunContext, doc crawler.Document) (crawler.Extraction, error) {
	var ext crawler.Extraction
	root, err := extract.ParseHTML(doc)
	if err != nil {
		return ext, err
	}
	base := extract.BaseURL(doc)

	for _, href := range extract.Hrefs(base, root.Find(".result .sumLink a")) {
		ext.Follow(crawler.NewRequest(href, crawler.DocAUBill))
	}

	root.Find(".resultsNav a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if a.Find("img").AttrOr("alt", "") != "Next Page" {
			return true
		}
		if hrefs := extract.Hrefs(base, a); len(hrefs) > 0 {
			ext.Follow(crawler.NewRequest(hrefs[0], crawler.DocAUBills))
		}
		return false
	})
	return ext, nil
}

// ExtractBill parses a bill home page into a Bill record and one
// BillProgress record per progress table item.
func ExtractBill(_ crawler.RunContext, doc crawler.Document) (crawler.Extraction, error) {
	var ext crawler.Extraction
	root, err := extract.ParseHTML(doc)
	if err != nil {
		return ext, err
	}
	base := extract.BaseURL(doc)

	permalink := base
	if hrefs := extract.Hrefs(base, root.Find("a.permalink").First()); len(hrefs) > 0 {
		permalink = hrefs[0]
	} else {
		ext.Warn(base, "bill has no permalink")
	}

	bill := crawler.NewRecord(crawler.KindBill).
		Set("permalink", permalink).
		Set("title", extract.Text(root.Find("short-title").First())).
		Set("summary", extract.Text(root.Find("summary").First()))

	if props := root.Find("h1 ~ table").First(); props.Length() > 0 {
		bill.Set("type", extract.Text(props.Find("type").First())).
			Set("originatingChamber", extract.Text(props.Find("originating-chamber").First())).
			Set("status", extract.Text(props.Find("status").First())).
			Set("sponsor", extract.Text(props.Find("sponsor").First()))
	} else {
		ext.Warn(base, "bill has no properties table")
	}
	ext.Emit(bill)

	progress := root.Find("table.bills-progress").First()
	if progress.Length() == 0 {
		return ext, nil
	}
	heading := ""
	progress.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		class, ok := tr.Attr("class")
		switch {
		case !ok || class == "":
			// Spacer rows carry no class.
		case class == progressHeadingClass:
			heading = extract.Text(tr.Find("td"))
		case class == progressItemClass:
			cells := extract.Texts(tr.Find("td"))
			if len(cells) != 3 {
				ext.Warn(base, "progress row has %d cells, want 3", len(cells))
				return
			}
			date, err := extract.NormalizeDate(cells[1])
			if err != nil {
				ext.Warn(base, "progress row %q: %v", cells[0], err)
				date = extract.StripAfterMidnight(cells[1])
			}
			ext.Emit(crawler.NewRecord(crawler.KindBillProgress).
				Set("permalink", permalink).
				Set("heading", heading).
				Set("label", cells[0]).
				Set("date", date).
				Set("note", cells[2]))
		default:
			ext.Warn(base, "unknown class in bills-progress row: %s", class)
		}
	})
	return ext, nil
}
