package ca

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
	"github.com/JakeFAU/parlcrawl/internal/extract"
)

var personColumns = []string{"PersonId", "LastName", "UsedFirstName"}

// ExtractProfile emits one Role record per entry of each role field the run
// asks for. Profiles are stored whole, so a later run can extract other
// fields from the store without fetching again.
func ExtractProfile(rc crawler.RunContext, doc crawler.Document) (crawler.Extraction, error) {
	var ext crawler.Extraction
	var profile map[string]any
	if err := decode(doc.Body, &profile); err != nil {
		return ext, fmt.Errorf("decode profile %s: %w", doc.Request.URL, err)
	}
	base := extract.BaseURL(doc)

	person, _ := profile["Person"].(map[string]any)
	if person == nil {
		ext.Warn(base, "profile has no Person object")
	}

	for _, field := range rc.RoleFields {
		raw, ok := profile[field]
		if !ok {
			ext.Warn(base, "profile has no %s field", field)
			continue
		}
		roles, _ := raw.([]any)
		for _, item := range roles {
			role, ok := item.(map[string]any)
			if !ok {
				ext.Warn(base, "%s entry is not an object", field)
				continue
			}
			ext.Emit(roleRecord(person, field, role))
		}
	}
	return ext, nil
}

func roleRecord(person map[string]any, field string, role map[string]any) crawler.Record {
	rec := crawler.NewRecord(crawler.KindRole)
	for _, col := range personColumns {
		rec.Set(col, stringify(person[col]))
	}
	rec.Set("RoleField", field)

	// Role keys override person columns of the same name.
	for key, value := range role {
		switch key {
		case "Classes":
			if classes, ok := value.([]any); ok {
				rec.Set(key, classNames(classes))
				continue
			}
		case "MemberOfParliament":
			if mp, ok := value.(map[string]any); ok {
				rec.Set(key, stringify(mp["OccupationTypeEn"]))
				continue
			}
		}
		rec.Set(key, stringify(value))
	}
	return rec
}

func classNames(classes []any) string {
	names := make([]string, 0, len(classes))
	for _, c := range classes {
		m, ok := c.(map[string]any)
		if !ok {
			continue
		}
		if name := stringify(m["RoleClassNameEn"]); name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, classJoin)
}
