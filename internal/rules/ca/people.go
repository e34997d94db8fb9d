package ca

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
	"github.com/JakeFAU/parlcrawl/internal/extract"
)

// ExtractPeople emits a Person record per search result, tagged with the
// parliament of the request, and follows each person's profile.
func ExtractPeople(_ crawler.RunContext, doc crawler.Document) (crawler.Extraction, error) {
	var ext crawler.Extraction
	var people []map[string]any
	if err := decode(doc.Body, &people); err != nil {
		return ext, fmt.Errorf("decode people %s: %w", doc.Request.URL, err)
	}
	base := extract.BaseURL(doc)
	term := doc.Request.Context.Term

	for _, p := range people {
		person := crawler.NewRecord(crawler.KindPerson).Set("Parliament", term)
		for _, col := range RegularColumns {
			person.Set(col, stringify(p[col]))
		}
		if death, ok := p["Death"].(map[string]any); ok {
			for _, col := range DeathColumns {
				person.Set(col, stringify(death[col]))
			}
		}
		ext.Emit(person)

		id := person.Get("PersonId")
		if id == "" {
			ext.Warn(base, "person without PersonId: %s", person.Get("StraightDisplayName"))
			continue
		}
		abs, err := crawler.ResolveURL(base, "GetPersonWebProfile/"+id)
		if err != nil {
			return ext, fmt.Errorf("profile url for %s: %w", id, err)
		}
		ctx := doc.Request.Context.WithEntity(id, ProfileName(person.Get("LastName"), person.Get("UsedFirstName")))
		ext.Follow(jsonRequest(abs, crawler.DocCAProfile, ctx))
	}
	return ext, nil
}

// ProfileName is the display part of a stored profile name:
// "<LastName>,<UsedFirstName>" with spaces in the first name underscored.
func ProfileName(last, first string) string {
	return last + "," + strings.ReplaceAll(first, " ", "_")
}
