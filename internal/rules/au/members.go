package au

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
	"github.com/JakeFAU/parlcrawl/internal/extract"
)

// ExtractMembers follows every parliamentarian on a members search page.
func ExtractMembers(_ crawler.RunContext, doc crawler.Document) (crawler.Extraction, error) {
	var ext crawler.Extraction
	root, err := extract.ParseHTML(doc)
	if err != nil {
		return ext, err
	}
	base := extract.BaseURL(doc)

	root.Find(".sumLink a").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		abs, err := crawler.ResolveURL(base, href)
		if err != nil {
			ext.Warn(base, "member link %q: %v", href, err)
			return
		}
		id := memberID(abs)
		if id == "" {
			ext.Warn(base, "member link %q has no MPID", href)
			return
		}
		req := crawler.NewRequest(abs, crawler.DocAUParliamentarian)
		req.Context = doc.Request.Context.WithEntity(id, displayName(extract.Text(a), id))
		ext.Follow(req)
	})

	if next, ok := nextPage(base, root.Find(".results-pagination").First()); ok {
		ext.Follow(crawler.NewRequest(next, crawler.DocAUMembers))
	}
	return ext, nil
}

// ExtractParliamentarian parses an aph.gov.au member profile.
func ExtractParliamentarian(_ crawler.RunContext, doc crawler.Document) (crawler.Extraction, error) {
	var ext crawler.Extraction
	root, err := extract.ParseHTML(doc)
	if err != nil {
		return ext, err
	}
	base := extract.BaseURL(doc)

	id := doc.Request.Context.EntityID
	person := crawler.NewRecord(crawler.KindPerson).
		Set("PersonId", id).
		Set("url", doc.Request.URL).
		Set("name", extract.Text(root.Find(".profile h1").First())).
		Set("title", extract.Text(root.Find(".profile h3").First())).
		Set("electorate", extract.Text(root.Find(`section[aria-label="Electorate details"] h3`).First()))

	profile := root.Find(".profile").First()
	for _, p := range extract.ZipPairs(extract.Texts(profile.Find("dl dt")), extract.Texts(profile.Find("dl dd"))) {
		if p.Key == "" {
			continue
		}
		person.Set(strings.ToLower(p.Key), p.Value)
	}

	if bio := root.Find("article h2 + dl").First(); bio.Length() > 0 {
		var values []string
		bio.Find("dd").Each(func(_ int, dd *goquery.Selection) {
			values = append(values, strings.Join(extract.Texts(dd.Find("li")), multiValueJoin))
		})
		for _, p := range extract.ZipPairs(extract.Texts(bio.Find("dt")), values) {
			person.Set("biography_"+snake(p.Key), p.Value)
		}
	}
	ext.Emit(person)

	root.Find(`a[aria-label="Browse all speeches (Hansard)"]`).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		abs, err := crawler.ResolveURL(base, href+speechesPageSize)
		if err != nil {
			ext.Warn(base, "speeches link %q: %v", href, err)
			return
		}
		req := crawler.NewRequest(abs, crawler.DocAUSpeeches)
		req.Context = crawler.RequestContext{TalkerID: id}
		ext.Follow(req)
	})
	return ext, nil
}

// nextPage returns the enabled next-page link inside a pagination block.
func nextPage(base string, pagination *goquery.Selection) (string, bool) {
	li := pagination.Find("li.next").First()
	if li.Length() == 0 || li.HasClass("disabled") {
		return "", false
	}
	a := li.Find("a").First()
	if a.HasClass("disabled") {
		return "", false
	}
	if v, ok := a.Attr("aria-disabled"); ok && v == "true" {
		return "", false
	}
	hrefs := extract.Hrefs(base, a)
	if len(hrefs) == 0 {
		return "", false
	}
	return hrefs[0], true
}

// memberID returns the MPID query parameter of a profile link.
func memberID(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	for key, values := range u.Query() {
		if strings.EqualFold(key, "MPID") && len(values) > 0 {
			return strings.TrimSpace(values[0])
		}
	}
	return ""
}

func displayName(text, fallback string) string {
	if text == "" {
		return fallback
	}
	return text
}

func snake(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}
