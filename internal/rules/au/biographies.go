package au

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
	"github.com/JakeFAU/parlcrawl/internal/extract"
)

// ExtractBiographies turns the handbook member picker into one biography
// profile request per member code.
func ExtractBiographies(_ crawler.RunContext, doc crawler.Document) (crawler.Extraction, error) {
	var ext crawler.Extraction
	root, err := extract.ParseHTML(doc)
	if err != nil {
		return ext, err
	}

	root.Find("#memberList option").Each(func(_ int, opt *goquery.Selection) {
		code := strings.TrimSpace(opt.AttrOr("value", ""))
		if code == "" {
			return
		}
		req := crawler.NewRequest(fmt.Sprintf(biographyURLFormat, code), crawler.DocAUBiography)
		req.Context = doc.Request.Context.WithEntity(code, displayName(extract.Text(opt), code))
		ext.Follow(req)
	})
	return ext, nil
}

// ExtractBiography parses a handbook biography. The free text after the
// box rule is a run of span labels each followed by paragraphs; it is folded
// with a LabelReducer.
func ExtractBiography(_ crawler.RunContext, doc crawler.Document) (crawler.Extraction, error) {
	var ext crawler.Extraction
	root, err := extract.ParseHTML(doc)
	if err != nil {
		return ext, err
	}

	person := crawler.NewRecord(crawler.KindPerson).
		Set("PersonId", doc.Request.Context.EntityID).
		Set("url", doc.Request.URL)

	if ps := root.Find(".box .sumLink p"); ps.Length() >= 2 {
		person.Set("party", extract.Text(ps.Eq(1)))
	}

	for _, p := range extract.ZipPairs(extract.Texts(root.Find("dl dt")), extract.Texts(root.Find("dl dd"))) {
		if key := snake(p.Key); key != "" {
			person.Set(key, p.Value)
		}
	}
	if title, ok := person.Fields["title"]; ok {
		person.Set("title", strings.TrimSpace(strings.Replace(title, "Biography for ", "", 1)))
	}

	reducer := extract.NewLabelReducer(multiValueJoin)
	root.Find(".box hr ~ *").Each(func(_ int, sib *goquery.Selection) {
		labelsAndContent(sib).Each(func(_ int, el *goquery.Selection) {
			if goquery.NodeName(el) == "span" {
				reducer.Label(extract.Text(el))
				return
			}
			reducer.Content(extract.Text(el))
		})
	})
	fields := reducer.Fields()
	for _, key := range reducer.Keys() {
		value := fields[key]
		if existing, ok := person.Fields[key]; ok {
			value = existing + multiValueJoin + value
		}
		person.Set(key, value)
	}

	ext.Emit(person)
	return ext, nil
}

// labelsAndContent returns sel itself when it is a span or p, followed by its
// span and p descendants in document order.
func labelsAndContent(sel *goquery.Selection) *goquery.Selection {
	const match = "span, p"
	found := sel.Find(match)
	if sel.Is(match) {
		return sel.AddSelection(found)
	}
	return found
}
