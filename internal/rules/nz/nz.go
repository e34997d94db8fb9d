// Package nz parses the parliament.nz member listings and profiles.
package nz

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
	"github.com/JakeFAU/parlcrawl/internal/extract"
)

// Seed URLs.
const (
	CurrentMembersURL = "https://www.parliament.nz/en/mps-and-electorates/members-of-parliament"
	FormerMembersURL  = "https://www.parliament.nz/en/mps-and-electorates/former-members-of-parliament"
)

// Role tables are only read under these headings. The empty string stands
// for tables that appear before any heading.
var roleSections = map[string]bool{
	"":              true,
	"Current Roles": true,
	"Former Roles":  true,
}

// Rules returns the rule for every New Zealand document type.
func Rules() map[crawler.DocumentType]crawler.Rule {
	return map[crawler.DocumentType]crawler.Rule{
		crawler.DocNZMembers: crawler.RuleFunc(ExtractMembers),
		crawler.DocNZProfile: crawler.RuleFunc(ExtractProfile),
	}
}

// ExtractMembers follows every member linked from a listing table. The last
// path segment of the profile URL is the entity id.
func ExtractMembers(_ crawler.RunContext, doc crawler.Document) (crawler.Extraction, error) {
	var ext crawler.Extraction
	root, err := extract.ParseHTML(doc)
	if err != nil {
		return ext, err
	}
	base := extract.BaseURL(doc)

	root.Find("td a").Each(func(_ int, a *goquery.Selection) {
		hrefs := extract.Hrefs(base, a)
		if len(hrefs) == 0 {
			return
		}
		slug := Slug(hrefs[0])
		if slug == "" {
			ext.Warn(base, "member link %q has no slug", hrefs[0])
			return
		}
		name := extract.Text(a)
		if name == "" {
			name = slug
		}
		req := crawler.NewRequest(hrefs[0], crawler.DocNZProfile)
		req.Context = doc.Request.Context.WithEntity(slug, name)
		ext.Follow(req)
	})
	return ext, nil
}

// Slug returns the last non-empty path segment of a profile URL.
func Slug(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	seg := path.Base(strings.TrimRight(u.Path, "/"))
	if seg == "." || seg == "/" {
		return ""
	}
	return seg
}

// ExtractProfile parses a member profile into a Person record and one Role
// record per row of every role table.
func ExtractProfile(_ crawler.RunContext, doc crawler.Document) (crawler.Extraction, error) {
	var ext crawler.Extraction
	root, err := extract.ParseHTML(doc)
	if err != nil {
		return ext, err
	}
	base := extract.BaseURL(doc)

	main := root.Find(".main").First()
	if main.Length() == 0 {
		return ext, fmt.Errorf("profile %s has no .main section", base)
	}
	cf := main.Find(".cf").First()

	id := doc.Request.Context.EntityID
	name := extract.Text(main.Find("h1").First())
	person := crawler.NewRecord(crawler.KindPerson).
		Set("PersonId", id).
		Set("url", doc.Request.URL).
		Set("name", name).
		Set("title", extract.Text(cf.Find("h2").First()))

	cf.Find("h2+ul li").Each(func(_ int, li *goquery.Selection) {
		key, value, ok := strings.Cut(extract.Text(li), ": ")
		if !ok {
			ext.Warn(base, "profile item %q has no key", key)
			return
		}
		person.Set(key, value)
	})
	ext.Emit(person)

	section := ""
	cf.Find("h2, table, button.accordion__header").Each(func(i int, el *goquery.Selection) {
		if i == 0 {
			// The first heading is the title read above.
			return
		}
		if goquery.NodeName(el) != "table" {
			section = extract.Text(el)
			return
		}
		if !roleSections[section] {
			return
		}
		for _, role := range parseRoles(&ext, base, el) {
			role.Set("PersonId", id).Set("name", name)
			ext.Emit(role)
		}
	})
	return ext, nil
}

// parseRoles reads a role table. The first column heading names the role
// type and its cells become the role title.
func parseRoles(ext *crawler.Extraction, base string, table *goquery.Selection) []crawler.Record {
	headings := extract.Texts(table.Find("thead td"))
	if len(headings) == 0 {
		return nil
	}
	var roles []crawler.Record
	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		role := crawler.NewRecord(crawler.KindRole)
		for _, p := range extract.ZipPairs(headings, extract.Texts(tr.Find("td"))) {
			key := p.Key
			switch key {
			case headings[0]:
				role.Set("_RoleType", key)
				key = "_RoleTitle"
			case "Finish":
				key = "End"
			}
			role.Set(key, p.Value)
		}
		for _, key := range []string{"Start", "End"} {
			raw, ok := role.Fields[key]
			if !ok || raw == "" {
				continue
			}
			date, err := extract.NormalizeDate(raw)
			if err != nil {
				ext.Warn(base, "role %s date: %v", key, err)
				continue
			}
			role.Set(key, date)
		}
		roles = append(roles, role)
	})
	return roles
}
