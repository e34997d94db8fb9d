package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
)

// ParseHTML parses a fetched HTML document.
func ParseHTML(doc crawler.Document) (*goquery.Document, error) {
	root, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", doc.Request.URL, err)
	}
	return root, nil
}

// Clean replaces non-breaking spaces, collapses runs of whitespace and trims.
func Clean(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

// Text returns the cleaned text content of the selection.
func Text(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	return Clean(sel.Text())
}

// Texts returns the cleaned text of each element in the selection.
func Texts(sel *goquery.Selection) []string {
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, Clean(s.Text()))
	})
	return out
}

// Hrefs returns the href of each element in the selection resolved against
// base. Elements without a usable href are skipped.
func Hrefs(base string, sel *goquery.Selection) []string {
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		abs, err := crawler.ResolveURL(base, href)
		if err != nil {
			return
		}
		out = append(out, abs)
	})
	return out
}

// BaseURL returns the URL relative links in doc resolve against: the final
// response URL when known, otherwise the request URL.
func BaseURL(doc crawler.Document) string {
	if doc.URL != "" {
		return doc.URL
	}
	return doc.Request.URL
}
